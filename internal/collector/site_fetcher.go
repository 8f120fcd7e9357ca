package collector

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/LJTian/AINewsDigest/internal/extract"
	"github.com/LJTian/AINewsDigest/internal/site"
	"github.com/LJTian/AINewsDigest/internal/sitemap"
)

const (
	defaultLimit = 10
	// 入口页链接少于这个数就启用源码兜底 / feed 补充
	minEntryCandidates = 5
	// 每个 sitemap 最多展开的 URL 数
	sitemapMaxURLs = 500
	abstractRunes  = 800
)

// SiteFetcher 按站点配置执行：入口页 -> 候选链接 -> 详情页 -> 过滤
type SiteFetcher struct {
	Site     *site.Site
	Renderer Renderer
	// Sitemaps / Feeds 为空时跳过对应的兜底步骤
	Sitemaps *sitemap.Crawler
	Feeds    *FeedReader
	// Limit 每个来源保留条数
	Limit int
	Debug bool
	Now   func() time.Time
}

func (f *SiteFetcher) Name() string {
	return f.Site.Code
}

func (f *SiteFetcher) debugf(format string, args ...any) {
	if f.Debug {
		log.Printf(format, args...)
	}
}

func (f *SiteFetcher) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f *SiteFetcher) limit() int {
	if f.Limit <= 0 {
		return defaultLimit
	}
	return f.Limit
}

func (f *SiteFetcher) Fetch(ctx context.Context, w Window) ([]Article, error) {
	candidates, entryErr := f.collectCandidates(ctx)
	if len(candidates) == 0 && entryErr != nil {
		return nil, entryErr
	}

	candidates = dedupCandidates(candidates)
	f.debugf("[%s] candidates=%d", f.Site.Code, len(candidates))

	rankCandidates(candidates)
	if probe := max(f.limit(), 10); len(candidates) > probe {
		candidates = candidates[:probe]
	}
	f.debugf("[%s] probe=%d", f.Site.Code, len(candidates))

	return f.probe(ctx, candidates, w)
}

// collectCandidates 汇总入口页、源码兜底、feed 与 sitemap 得到的候选链接。
// 只有所有入口页都失败时才返回 error。
func (f *SiteFetcher) collectCandidates(ctx context.Context) ([]extract.Candidate, error) {
	var (
		candidates []extract.Candidate
		failed     int
		lastErr    error
	)

	for _, entry := range f.Site.Entries {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}
		f.debugf("[OPEN] %s", entry)
		page, err := f.Renderer.Render(ctx, entry, entryRenderOptions)
		if err != nil {
			f.debugf("[ENTRY-ERR] %s -> %v", entry, err)
			failed++
			lastErr = err
			continue
		}

		for _, l := range page.Links {
			href := extract.NormalizeURL(entry, l.Href)
			if href == "" || !extract.HostMatches(href, f.Site.Domains) || !extract.IsArticleURL(href) {
				continue
			}
			title := extract.Clean(l.Text)
			if extract.RuneLen(title) < 2 {
				title = extract.PlaceholderTitle
			}
			candidates = append(candidates, extract.Candidate{Title: title, URL: href})
		}

		// 渲染结果里链接太少时，启用源码兜底
		if len(candidates) < minEntryCandidates {
			candidates = append(candidates, extract.LinksFromHTML(f.Site.Patterns(), entry, page.HTML)...)
		}
	}

	if len(candidates) < minEntryCandidates && f.Feeds != nil {
		for _, feedURL := range f.Site.Feeds {
			items, err := f.Feeds.Candidates(ctx, feedURL)
			if err != nil {
				f.debugf("[FEED-ERR] %s -> %v", feedURL, err)
				continue
			}
			candidates = append(candidates, items...)
		}
	}

	// 入口抓不到时，走 robots + sitemap
	if len(candidates) == 0 && f.Site.SitemapFallback && f.Sitemaps != nil {
		candidates = append(candidates, f.sitemapCandidates(ctx)...)
	}

	if failed > 0 && failed == len(f.Site.Entries) {
		return candidates, fmt.Errorf("%s: all %d entries failed: %w", f.Site.Code, failed, lastErr)
	}
	return candidates, nil
}

func (f *SiteFetcher) sitemapCandidates(ctx context.Context) []extract.Candidate {
	if len(f.Site.Entries) == 0 {
		return nil
	}
	base := f.Site.Entries[0]

	var out []extract.Candidate
	for _, sm := range f.Sitemaps.FromRobots(ctx, base) {
		for _, u := range f.Sitemaps.Crawl(ctx, sm, sitemapMaxURLs) {
			nu := extract.NormalizeURL(base, u)
			if nu != "" && extract.IsArticleURL(nu) {
				out = append(out, extract.Candidate{Title: extract.PlaceholderTitle, URL: nu})
			}
		}
		if len(out) > 0 {
			break
		}
	}
	f.debugf("[%s] sitemap candidates=%d", f.Site.Code, len(out))
	return out
}

func dedupCandidates(in []extract.Candidate) []extract.Candidate {
	out := make([]extract.Candidate, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		if _, ok := seen[c.URL]; ok {
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, c)
	}
	return out
}

// rankCandidates 有日期的排前面，日期越新越靠前；同等条件保持原顺序
func rankCandidates(cs []extract.Candidate) {
	type ranked struct {
		dt    time.Time
		dated bool
	}
	keys := make(map[string]ranked, len(cs))
	for _, c := range cs {
		d := extract.DateFromTextOrURL("", c.URL)
		if d == "" {
			d = c.Date
		}
		dt, ok := extract.ParseDate(d)
		keys[c.URL] = ranked{dt: dt, dated: ok}
	}
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := keys[cs[i].URL], keys[cs[j].URL]
		if a.dated != b.dated {
			return a.dated
		}
		return a.dt.After(b.dt)
	})
}

// probe 逐个抓取详情页，直到凑够 limit 条
func (f *SiteFetcher) probe(ctx context.Context, candidates []extract.Candidate, w Window) ([]Article, error) {
	var results []Article
	now := f.now()

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		page, err := f.Renderer.Render(ctx, c.URL, RenderOptions{})
		if err != nil {
			f.debugf("[ARTICLE-ERR] %s -> %v", c.URL, err)
			continue
		}

		markdown, err := extract.ToMarkdown(page.HTML, c.URL)
		if err != nil {
			f.debugf("[ARTICLE-ERR] %s -> %v", c.URL, err)
			continue
		}

		pubDate := extract.DateFromTextOrURL(markdown, c.URL)
		if pubDate == "" {
			// 兜底：从 HTML meta 中正则提取
			pubDate = extract.MetaDate(page.HTML)
		}
		if pubDate == "" {
			pubDate = c.Date
		}
		dt, dated := extract.ParseDate(pubDate)
		if !w.Keep(dt, dated, f.Site.AllowDateless, now) {
			continue
		}

		title, ok := f.finalTitle(c.Title, page.Title, markdown)
		if !ok {
			continue
		}

		results = append(results, Article{
			Title:       title,
			URL:         c.URL,
			Source:      f.Site.Code,
			PubDate:     pubDate,
			PublishedAt: dt,
			Abstract:    extract.Abstract(markdown, abstractRunes),
			Markdown:    markdown,
			RawData: map[string]any{
				"site_name":            f.Site.Name,
				"source_type":          "commentary",
				"is_secondary":         true,
				"paper_ref_confidence": 0.35,
			},
		})
		f.debugf("[KEEP] [%s] %s... %s", f.Site.Code, headRunes(title, 28), orNA(pubDate))

		if len(results) >= f.limit() {
			break
		}
	}
	return results, nil
}

// finalTitle 用详情页标题修正候选标题，并过滤栏目页、404 页与空模板页
func (f *SiteFetcher) finalTitle(candidate, pageTitle, markdown string) (string, bool) {
	title := candidate
	if pageTitle != "" {
		pt := extract.PageTitle(pageTitle)
		if extract.RuneLen(pt) > extract.RuneLen(title) || title == extract.PlaceholderTitle {
			title = pt
		}
	}

	if f.Site.HasBadTitle(title) {
		return "", false
	}
	if f.Site.MinBodyRunes > 0 && extract.RuneLen(extract.Clean(markdown)) < f.Site.MinBodyRunes {
		return "", false
	}

	if title == extract.PlaceholderTitle || extract.RuneLen(title) < 4 {
		return "", false
	}
	if strings.Contains(title, "找不到您请求的页面") || strings.Contains(strings.ToLower(title), "404") {
		return "", false
	}
	return title, true
}

func headRunes(s string, n int) string {
	rs := []rune(s)
	if len(rs) > n {
		return string(rs[:n])
	}
	return s
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
