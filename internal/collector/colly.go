package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

const collyMaxBodyBytes = 10 << 20 // 10MB

// CollyRenderer 用 colly 做静态抓取，不执行 JS
type CollyRenderer struct {
	base *colly.Collector
}

// NewCollyRenderer 创建静态抓取器；每次 Render 从 base 克隆一个 collector，
// 共享底层 HTTP 客户端但回调互不干扰，可并发使用
func NewCollyRenderer(userAgent string, timeout time.Duration) *CollyRenderer {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
		colly.DetectCharset(),
	)
	c.MaxBodySize = collyMaxBodyBytes
	c.SetRequestTimeout(timeout)
	return &CollyRenderer{base: c}
}

func (r *CollyRenderer) Render(ctx context.Context, url string, _ RenderOptions) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := r.base.Clone()
	var mu sync.Mutex
	page := &Page{URL: url}

	c.OnResponse(func(resp *colly.Response) {
		mu.Lock()
		defer mu.Unlock()
		page.URL = resp.Request.URL.String()
		page.HTML = string(resp.Body)
	})
	c.OnHTML("title", func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		if page.Title == "" {
			page.Title = strings.TrimSpace(e.Text)
		}
	})
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		page.Links = append(page.Links, Link{Href: e.Attr("href"), Text: strings.TrimSpace(e.Text)})
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("colly: visit %s: %w", url, err)
	}
	return page, nil
}
