// Package sitemap 通过 robots.txt 找到站点地图，并递归展开 sitemap index，
// 用于入口页抓不到文章链接时的兜底发现。
package sitemap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/klauspost/compress/gzip"
	"github.com/temoto/robotstxt"
)

const (
	DefaultMaxURLs   = 800
	clientTimeout    = 12 * time.Second
	maxResponseBytes = 20 << 20 // 20MB
	defaultUserAgent = "Mozilla/5.0"
)

// 不依赖命名空间前缀，兼容带/不带 sitemaps.org 命名空间的文件
const (
	sitemapLocXPath = "//*[local-name()='sitemap']/*[local-name()='loc']"
	urlLocXPath     = "//*[local-name()='url']/*[local-name()='loc']"
)

// Crawler 负责 robots.txt 与 sitemap 的抓取解析
type Crawler struct {
	Client    *http.Client
	UserAgent string
	Debug     bool
}

// NewCrawler 创建一个带默认超时的 Crawler
func NewCrawler(userAgent string, debug bool) *Crawler {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Crawler{
		Client:    &http.Client{Timeout: clientTimeout},
		UserAgent: userAgent,
		Debug:     debug,
	}
}

func (c *Crawler) debugf(format string, args ...any) {
	if c.Debug {
		log.Printf(format, args...)
	}
}

// FromRobots 读取 base 站点 robots.txt 中声明的 Sitemap；
// 没有声明（或 robots.txt 不可用）时返回常见的几个默认位置。
func (c *Crawler) FromRobots(ctx context.Context, base string) []string {
	var urls []string

	body, status, err := c.get(ctx, resolve(base, "/robots.txt"))
	if err != nil {
		c.debugf("[ROBOTS-ERR] %s -> %v", base, err)
	} else if status >= 200 && status < 300 {
		robots, err := robotstxt.FromStatusAndBytes(status, body)
		if err != nil {
			c.debugf("[ROBOTS-ERR] %s -> %v", base, err)
		} else {
			for _, sm := range robots.Sitemaps {
				if sm = strings.TrimSpace(sm); sm != "" {
					urls = append(urls, sm)
				}
			}
		}
	}

	if len(urls) == 0 {
		urls = []string{
			resolve(base, "/sitemap.xml"),
			resolve(base, "/sitemap_index.xml"),
			resolve(base, "/sitemap-index.xml"),
		}
	}
	return urls
}

// Crawl 从 root 开始广度优先展开 sitemap，最多收集 limit 个页面 URL。
// 单个 sitemap 抓取或解析失败只记录日志并跳过。
func (c *Crawler) Crawl(ctx context.Context, root string, limit int) []string {
	if limit <= 0 {
		limit = DefaultMaxURLs
	}
	var out []string
	queue := []string{root}
	seen := make(map[string]struct{})

	for len(queue) > 0 && len(out) < limit {
		if ctx.Err() != nil {
			break
		}
		u := queue[0]
		queue = queue[1:]
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}

		nested, locs, err := c.fetchOne(ctx, u)
		if err != nil {
			c.debugf("[SITEMAP-ERR] %s -> %v", u, err)
			continue
		}
		queue = append(queue, nested...)
		for _, loc := range locs {
			out = append(out, loc)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// fetchOne 抓取并解析单个 sitemap，返回嵌套的 sitemap 地址与页面地址
func (c *Crawler) fetchOne(ctx context.Context, u string) ([]string, []string, error) {
	raw, status, err := c.get(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	if status < 200 || status >= 300 {
		c.debugf("[SITEMAP-HTTP] %s -> %d", u, status)
		return nil, nil, nil
	}

	if strings.HasSuffix(strings.ToLower(u), ".gz") || isGzip(raw) {
		if raw, err = gunzip(raw); err != nil {
			return nil, nil, fmt.Errorf("gunzip: %w", err)
		}
	}

	text := strings.TrimSpace(strings.TrimPrefix(strings.ToValidUTF8(string(raw), "\uFFFD"), "\ufeff"))
	if !strings.HasPrefix(text, "<") {
		head := text
		if len(head) > 80 {
			head = head[:80]
		}
		c.debugf("[SITEMAP-NOT-XML] %s -> head=%q", u, head)
		return nil, nil, nil
	}

	return ParseXML(text)
}

// ParseXML 解析 sitemap 或 sitemap index 文本
func ParseXML(text string) (nested []string, locs []string, err error) {
	doc, err := xmlquery.Parse(strings.NewReader(text))
	if err != nil {
		return nil, nil, fmt.Errorf("parse xml: %w", err)
	}
	for _, n := range xmlquery.Find(doc, sitemapLocXPath) {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			nested = append(nested, loc)
		}
	}
	for _, n := range xmlquery.Find(doc, urlLocXPath) {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			locs = append(locs, loc)
		}
	}
	return nested, locs, nil
}

func (c *Crawler) get(ctx context.Context, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func isGzip(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1f && b[1] == 0x8b
}

func gunzip(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxResponseBytes))
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
