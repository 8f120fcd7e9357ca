package collector

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Link 页面上的一个超链接
type Link struct {
	Href string
	Text string
}

// Page 是一次页面抓取（或渲染）的结果
type Page struct {
	URL   string
	HTML  string
	Title string
	Links []Link
}

// RenderOptions 只对浏览器渲染有意义，静态抓取会忽略
type RenderOptions struct {
	// Scroll 滚到底部两次，触发列表懒加载
	Scroll bool
	// Wait 返回 HTML 前的额外等待
	Wait time.Duration
}

// Renderer 抽象页面获取方式：静态抓取或无头浏览器渲染
type Renderer interface {
	Render(ctx context.Context, url string, opts RenderOptions) (*Page, error)
}

// 入口页：滚动 + 等待 5 秒，尽量拿到懒加载出来的列表
var entryRenderOptions = RenderOptions{Scroll: true, Wait: 5 * time.Second}

// pageFromHTML 用 goquery 从 HTML 中补齐标题与链接
func pageFromHTML(url, html, title string) (*Page, error) {
	page := &Page{URL: url, HTML: html, Title: strings.TrimSpace(title)}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if page.Title == "" {
		if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok {
			page.Title = strings.TrimSpace(og)
		}
	}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		page.Links = append(page.Links, Link{Href: href, Text: strings.TrimSpace(s.Text())})
	})
	return page, nil
}
