package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/AINewsDigest/internal/extract"
	"github.com/LJTian/AINewsDigest/internal/site"
	"github.com/LJTian/AINewsDigest/internal/sitemap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer 按 URL 返回预置页面，未登记的 URL 返回错误
type fakeRenderer struct {
	mu    sync.Mutex
	pages map[string]*Page
	calls []string
}

func (r *fakeRenderer) Render(_ context.Context, url string, _ RenderOptions) (*Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, url)
	p, ok := r.pages[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return p, nil
}

var longBody = strings.Repeat("人工智能行业持续升温，各家公司纷纷发布新的模型与产品。", 15)

func articleHTML(extra string) string {
	return `<html><body><article><h1>标题</h1><p>` + extra + `</p><p>` + longBody + `</p></article></body></html>`
}

func testSite(t *testing.T) *site.Site {
	t.Helper()
	s := &site.Site{
		Code:    "test",
		Name:    "测试站",
		Entries: []string{"https://www.example.com/"},
		Domains: []string{"example.com"},
	}
	s.Fallback.Relative = []string{`(/20\d{2}/\d{2}/\d{2}/[a-z]+/)`}
	require.NoError(t, s.Compile())
	return s
}

func testRenderer() *fakeRenderer {
	return &fakeRenderer{pages: map[string]*Page{
		"https://www.example.com/": {
			URL:  "https://www.example.com/",
			HTML: `<script>var next = "/2026/02/24/delta/";</script>`,
			Links: []Link{
				{Href: "/2026/02/23/alpha/", Text: "Alpha 模型发布了新版本"},
				{Href: "/2026/02/20/beta/", Text: "Beta"},
				{Href: "https://other.com/2026/02/23/x/", Text: "外站文章"},
				{Href: "/tag/ai/", Text: "标签"},
				{Href: "/2026/02/22/gamma/", Text: ""},
				{Href: "/2026/02/23/alpha/#comments", Text: "评论"},
			},
		},
		"https://www.example.com/2026/02/23/alpha/": {
			Title: "Alpha 模型发布了新版本 | 测试站",
			HTML:  articleHTML("发布时间：2026年2月23日"),
		},
		"https://www.example.com/2026/02/20/beta/": {
			Title: "Beta 评测：全面对比 - 测试站",
			HTML:  articleHTML("Beta 评测正文"),
		},
		"https://www.example.com/2026/02/22/gamma/": {
			Title: "Gamma 公司融资十亿",
			HTML:  articleHTML("Gamma 正文"),
		},
	}}
}

func fixedNow() time.Time {
	return time.Date(2026, 2, 24, 12, 0, 0, 0, extract.LocEast8)
}

func titles(items []Article) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func TestSiteFetcherRecentDays(t *testing.T) {
	r := testRenderer()
	f := &SiteFetcher{Site: testSite(t), Renderer: r, Limit: 10, Now: fixedNow}

	items, err := f.Fetch(context.Background(), Window{Days: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha 模型发布了新版本", "Gamma 公司融资十亿"}, titles(items))

	alpha := items[0]
	assert.Equal(t, "https://www.example.com/2026/02/23/alpha/", alpha.URL)
	assert.Equal(t, "test", alpha.Source)
	assert.Equal(t, "2026-02-23", alpha.PubDate)
	assert.True(t, alpha.PublishedAt.Equal(time.Date(2026, 2, 23, 0, 0, 0, 0, extract.LocEast8)))
	assert.NotEmpty(t, alpha.Markdown)
	assert.LessOrEqual(t, extract.RuneLen(alpha.Abstract), 800)
	assert.Equal(t, "commentary", alpha.RawData["source_type"])

	// 源码兜底得到的 delta 链接排在最前面（日期最新），但详情页抓取失败
	require.NotEmpty(t, r.calls)
	assert.Equal(t, "https://www.example.com/", r.calls[0])
	assert.Equal(t, "https://www.example.com/2026/02/24/delta/", r.calls[1])
}

func TestSiteFetcherNoFilterKeepsOlderAndFixesTitle(t *testing.T) {
	f := &SiteFetcher{Site: testSite(t), Renderer: testRenderer(), Now: fixedNow}

	items, err := f.Fetch(context.Background(), Window{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha 模型发布了新版本", "Gamma 公司融资十亿", "Beta 评测：全面对比"}, titles(items))
}

func TestSiteFetcherTargetDay(t *testing.T) {
	f := &SiteFetcher{Site: testSite(t), Renderer: testRenderer(), Now: fixedNow}

	items, err := f.Fetch(context.Background(), Yesterday(time.Date(2026, 2, 23, 9, 0, 0, 0, extract.LocEast8)))
	require.NoError(t, err)
	assert.Equal(t, []string{"Gamma 公司融资十亿"}, titles(items))
}

func TestSiteFetcherLimit(t *testing.T) {
	f := &SiteFetcher{Site: testSite(t), Renderer: testRenderer(), Limit: 1, Now: fixedNow}

	items, err := f.Fetch(context.Background(), Window{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha 模型发布了新版本"}, titles(items))
}

func TestSiteFetcherAllEntriesFail(t *testing.T) {
	f := &SiteFetcher{Site: testSite(t), Renderer: &fakeRenderer{}, Now: fixedNow}

	items, err := f.Fetch(context.Background(), Window{})
	assert.Error(t, err)
	assert.Empty(t, items)
}

func TestSiteFetcherSitemapFallbackAndFilters(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nSitemap: %s/sitemap.xml\n", srv.URL)
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc>%[1]s/articles/library</loc></url>
<url><loc>%[1]s/articles/longread</loc></url>
<url><loc>%[1]s/articles/shortpage</loc></url>
<url><loc>%[1]s/</loc></url>
</urlset>`, srv.URL)
	})

	s := &site.Site{
		Code:             "jq",
		Name:             "机器之心",
		Entries:          []string{srv.URL + "/"},
		SitemapFallback:  true,
		AllowDateless:    true,
		BadTitleKeywords: []string{"文章库", "404"},
		MinBodyRunes:     200,
	}
	require.NoError(t, s.Compile())

	r := &fakeRenderer{pages: map[string]*Page{
		srv.URL + "/":                  {HTML: "<html><body>empty shell</body></html>"},
		srv.URL + "/articles/library":  {Title: "文章库 | 机器之心", HTML: articleHTML("列表")},
		srv.URL + "/articles/longread": {Title: "一篇足够长的文章标题 | 机器之心", HTML: articleHTML("正文")},
		srv.URL + "/articles/shortpage": {
			Title: "短页面的文章标题",
			HTML:  "<html><body><p>太短</p></body></html>",
		},
	}}

	f := &SiteFetcher{
		Site:     s,
		Renderer: r,
		Sitemaps: sitemap.NewCrawler("", false),
		Now:      fixedNow,
	}
	items, err := f.Fetch(context.Background(), Window{Days: 7})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "一篇足够长的文章标题", items[0].Title)
	assert.Equal(t, "", items[0].PubDate)

	// 指定日期时，无日期文章一律丢弃
	items, err = f.Fetch(context.Background(), Yesterday(fixedNow()))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRankCandidates(t *testing.T) {
	cs := []extract.Candidate{
		{URL: "https://x.com/a/b/nodate"},
		{URL: "https://x.com/2026/01/05/a"},
		{URL: "https://x.com/p/hinted", Date: "2026-03-01"},
		{URL: "https://x.com/2026/02/01/b"},
		{URL: "https://x.com/c/d/nodate2"},
	}
	rankCandidates(cs)
	got := make([]string, 0, len(cs))
	for _, c := range cs {
		got = append(got, c.URL)
	}
	assert.Equal(t, []string{
		"https://x.com/p/hinted",
		"https://x.com/2026/02/01/b",
		"https://x.com/2026/01/05/a",
		"https://x.com/a/b/nodate",
		"https://x.com/c/d/nodate2",
	}, got)
}

func TestWindowKeep(t *testing.T) {
	now := fixedNow()
	day := func(d int) time.Time { return time.Date(2026, 2, d, 0, 0, 0, 0, extract.LocEast8) }

	assert.True(t, Window{}.Keep(day(1), true, false, now))
	assert.False(t, Window{}.Keep(time.Time{}, false, false, now))
	assert.True(t, Window{}.Keep(time.Time{}, false, true, now))

	w := Window{Days: 1}
	assert.True(t, w.Keep(now.Add(-23*time.Hour), true, false, now))
	assert.False(t, w.Keep(day(22), true, false, now))

	y := Yesterday(now)
	assert.True(t, y.HasTarget())
	assert.True(t, y.Keep(day(23).Add(23*time.Hour), true, false, now))
	assert.False(t, y.Keep(day(24), true, false, now))
	assert.False(t, y.Keep(time.Time{}, false, true, now))
}

func TestDedup(t *testing.T) {
	in := []Article{
		{Title: "A", URL: "u1"},
		{Title: "A", URL: "u1", Source: "dup"},
		{Title: "B", URL: "u1"},
	}
	out := Dedup(in)
	require.Len(t, out, 2)
	assert.Equal(t, "", out[0].Source)
	assert.Equal(t, "B", out[1].Title)
}

func TestSiteFetcherFeedCandidatesAndDateHint(t *testing.T) {
	var feedHits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		feedHits++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>测试站</title><link>https://www.example.com/</link>
<item><title>Feed 里的独家报道</title><link>https://www.example.com/p/news/feed-story</link>
<pubDate>Mon, 23 Feb 2026 02:00:00 +0000</pubDate></item>
</channel></rss>`)
	}))
	defer srv.Close()

	s := testSite(t)
	s.Feeds = []string{srv.URL + "/feed"}

	// 入口页只有一条链接，不足以跳过 feed 补充
	r := &fakeRenderer{pages: map[string]*Page{
		"https://www.example.com/": {
			URL:   "https://www.example.com/",
			Links: []Link{{Href: "/2026/02/23/alpha/", Text: "Alpha 模型发布了新版本"}},
		},
		"https://www.example.com/2026/02/23/alpha/": {
			Title: "Alpha 模型发布了新版本 | 测试站",
			HTML:  articleHTML("Alpha 正文"),
		},
		// 详情页与 URL 都没有日期，只能用 feed 给出的日期
		"https://www.example.com/p/news/feed-story": {
			HTML: articleHTML("独家报道正文"),
		},
	}}

	f := &SiteFetcher{
		Site:     s,
		Renderer: r,
		Feeds:    NewFeedReader("test-agent"),
		Now:      fixedNow,
	}
	items, err := f.Fetch(context.Background(), Window{Days: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha 模型发布了新版本", "Feed 里的独家报道"}, titles(items))
	mu.Lock()
	assert.Equal(t, 1, feedHits)
	mu.Unlock()

	story := items[1]
	assert.Equal(t, "https://www.example.com/p/news/feed-story", story.URL)
	assert.Equal(t, "2026-02-23", story.PubDate)
	assert.True(t, story.PublishedAt.Equal(time.Date(2026, 2, 23, 0, 0, 0, 0, extract.LocEast8)))
	assert.Contains(t, r.calls, "https://www.example.com/p/news/feed-story")

	// 指定日期时同样按 feed 日期判断
	items, err = f.Fetch(context.Background(), Yesterday(fixedNow()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha 模型发布了新版本", "Feed 里的独家报道"}, titles(items))
}
