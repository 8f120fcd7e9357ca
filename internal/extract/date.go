package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// 东八区，站点发布日期均按北京时间理解
var LocEast8 *time.Location

func init() {
	LocEast8, _ = time.LoadLocation("Asia/Shanghai")
	if LocEast8 == nil {
		LocEast8 = time.FixedZone("CST", 8*3600)
	}
}

var (
	textDateRe = regexp.MustCompile(`(20\d{2})[-/年](\d{1,2})[-/月](\d{1,2})`)
	urlDateRe  = regexp.MustCompile(`(20\d{2})[/-](\d{1,2})[/-](\d{1,2})`)
	// <meta content="2026-02-23T10:00:00+08:00"> 一类的属性值
	metaDateRe = regexp.MustCompile(`content="([^"]*202\d[-/]\d{1,2}[-/]\d{1,2}[^"]*)"`)
	spacesRe   = regexp.MustCompile(`\s+`)
)

var dateLayouts = []string{
	"2006-1-2",
	"2006-1-2 15:04",
	"2006-1-2 15:04:05",
}

// ParseDate 解析 "2026年2月23日"、"2026/02/23 10:30" 等形式的日期，失败返回 false
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	r := strings.NewReplacer("年", "-", "月", "-", "日", "", "/", "-")
	s = spacesRe.ReplaceAllString(r.Replace(s), " ")
	if rs := []rune(s); len(rs) > 19 {
		s = string(rs[:19])
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, LocEast8); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateFromTextOrURL 先从正文找日期，找不到再从 URL 路径里找，返回 YYYY-MM-DD 或空串
func DateFromTextOrURL(text, url string) string {
	if m := textDateRe.FindStringSubmatch(text); m != nil {
		return formatYMD(m[1], m[2], m[3])
	}
	if m := urlDateRe.FindStringSubmatch(url); m != nil {
		return formatYMD(m[1], m[2], m[3])
	}
	return ""
}

// MetaDate 兜底：从 HTML 属性（通常是 meta 标签）里找日期
func MetaDate(html string) string {
	m := metaDateRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return DateFromTextOrURL(m[1], "")
}

func formatYMD(y, m, d string) string {
	mi, _ := strconv.Atoi(m)
	di, _ := strconv.Atoi(d)
	return fmt.Sprintf("%s-%02d-%02d", y, mi, di)
}
