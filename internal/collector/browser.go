package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	browserMaxResponseBytes = 16 << 20 // 16MB
	browserClientTimeout    = 60 * time.Second
)

// RenderRequest / RenderResponse 是 cmd/browser-scraper 的 /render 接口协议
type RenderRequest struct {
	URL    string `json:"url"`
	Scroll bool   `json:"scroll"`
	WaitMs int    `json:"waitMs"`
}

type RenderResponse struct {
	OK    bool   `json:"ok"`
	HTML  string `json:"html,omitempty"`
	Title string `json:"title,omitempty"`
	Error string `json:"error,omitempty"`
}

// BrowserRenderer 把渲染交给独立的 headless 浏览器服务（cmd/browser-scraper），
// 适合入口页依赖 JS 加载列表的站点
type BrowserRenderer struct {
	Endpoint string
	Client   *http.Client
}

func NewBrowserRenderer(endpoint string) *BrowserRenderer {
	return &BrowserRenderer{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Client:   &http.Client{Timeout: browserClientTimeout},
	}
}

func (b *BrowserRenderer) Render(ctx context.Context, url string, opts RenderOptions) (*Page, error) {
	if b.Endpoint == "" {
		return nil, errors.New("browser: endpoint not configured")
	}
	body, err := json.Marshal(RenderRequest{
		URL:    url,
		Scroll: opts.Scroll,
		WaitMs: int(opts.Wait / time.Millisecond),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("browser: render %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("browser: render %s: unexpected status %d", url, resp.StatusCode)
	}

	var out RenderResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, browserMaxResponseBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("browser: decode response: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("browser: render %s: %s", url, out.Error)
	}
	return pageFromHTML(url, out.HTML, out.Title)
}
