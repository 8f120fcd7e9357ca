package extract

import (
	"html"
	"regexp"
	"sort"
	"strings"
)

// Candidate 是待探测的文章链接
type Candidate struct {
	Title string
	URL   string
	// Date 来自 feed 等渠道的日期提示（YYYY-MM-DD），详情页取不到日期时使用
	Date string
}

// LinkPatterns 描述某个站点文章链接在源码中的形态。
// Absolute 匹配完整 URL，Relative 匹配站内路径（有捕获组时取最后一个组）。
type LinkPatterns struct {
	Absolute []*regexp.Regexp
	Relative []*regexp.Regexp
}

// Empty 没有配置任何兜底正则
func (p LinkPatterns) Empty() bool {
	return len(p.Absolute) == 0 && len(p.Relative) == 0
}

// LinksFromHTML 在渲染结果里拿不到足够链接时，直接从源码中按正则兜底提取文章 URL。
// 结果按 URL 排序，保证同一份源码每次得到相同顺序。
func LinksFromHTML(p LinkPatterns, entry, rawHTML string) []Candidate {
	if rawHTML == "" || p.Empty() {
		return nil
	}
	h := strings.ReplaceAll(html.UnescapeString(rawHTML), `\/`, "/")

	urls := make(map[string]struct{})
	for _, re := range p.Absolute {
		for _, m := range re.FindAllStringSubmatch(h, -1) {
			urls[lastGroup(m)] = struct{}{}
		}
	}
	for _, re := range p.Relative {
		for _, m := range re.FindAllStringSubmatch(h, -1) {
			urls[resolve(entry, lastGroup(m))] = struct{}{}
		}
	}

	out := make([]Candidate, 0, len(urls))
	for u := range urls {
		if IsArticleURL(u) {
			out = append(out, Candidate{Title: PlaceholderTitle, URL: u})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out
}

func lastGroup(m []string) string {
	if len(m) > 1 {
		return m[len(m)-1]
	}
	return m[0]
}
