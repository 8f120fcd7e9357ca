package extract

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	absURLRe     = regexp.MustCompile(`https?://[^"'\s<>]+`)
	hasSchemeRe  = regexp.MustCompile(`^https?://`)
	wrappedURLRe = regexp.MustCompile(`^https?://[^/]+/(https?://.+)$`)
	datedHTMLRe  = regexp.MustCompile(`/20\d{2}/\d{1,2}/\d+\.html$`)
)

var nonArticleMarks = []string{
	"/tag/", "/tags/", "/category/", "/author/", "javascript:", "#",
	"/meet/", "ai_shortlist", "/short_urls/",
}

// NormalizeURL 把页面中的 href 规范成绝对地址。
// 部分站点会把跳转目标拼在另一个 URL 后面（如 "https://a.com/https://b.com/1"），
// 这种情况下取最后一个真实目标。
func NormalizeURL(base, raw string) string {
	if raw == "" {
		return ""
	}
	u := strings.ReplaceAll(strings.TrimSpace(raw), `\/`, "/")

	abs := absURLRe.FindAllString(u, -1)
	switch {
	case len(abs) >= 2:
		u = abs[len(abs)-1]
	case len(abs) == 1 && !strings.HasPrefix(u, abs[0]):
		u = abs[0]
	}

	if !hasSchemeRe.MatchString(u) {
		u = resolve(base, u)
	}
	if m := wrappedURLRe.FindStringSubmatch(u); m != nil {
		u = m[1]
	}

	u, _, _ = strings.Cut(u, "#")
	return strings.TrimSpace(u)
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// IsArticleURL 粗略判断一个链接是否指向文章详情页，而不是栏目、标签或作者页
func IsArticleURL(raw string) bool {
	u := strings.ToLower(strings.TrimSpace(raw))
	pu, err := url.Parse(u)
	if err != nil {
		return false
	}

	if pu.Path == "" || pu.Path == "/" {
		return false
	}
	if pu.RawQuery != "" && strings.Contains(pu.RawQuery, "author=") {
		return false
	}
	for _, mark := range nonArticleMarks {
		if strings.Contains(u, mark) {
			return false
		}
	}

	if datedHTMLRe.MatchString(u) || strings.HasSuffix(u, ".html") {
		return true
	}
	if i := strings.LastIndex(u, "/articles/"); i != -1 && len(u[i+len("/articles/"):]) > 3 {
		return true
	}

	depth := 0
	for _, seg := range strings.Split(pu.Path, "/") {
		if seg != "" {
			depth++
		}
	}
	return depth >= 3
}

// HostMatches 判断 rawURL 的主机是否属于 domains 中的某个域名（含子域名），
// 用于挑出"站内链接"
func HostMatches(rawURL string, domains []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, d := range domains {
		d = strings.TrimPrefix(strings.ToLower(d), "www.")
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
