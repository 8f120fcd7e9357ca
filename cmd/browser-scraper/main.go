package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/LJTian/AINewsDigest/internal/collector"
	"github.com/chromedp/chromedp"
)

const (
	renderTimeout = 45 * time.Second
	// 单次请求允许的最长额外等待
	maxWait     = 15 * time.Second
	scrollPause = 1200 * time.Millisecond
)

// scrollJS 滚到页面底部，返回当前页面高度
const scrollJS = `window.scrollTo(0, document.body.scrollHeight); document.body.scrollHeight;`

func main() {
	headless := true
	if v, err := strconv.ParseBool(getEnv("HEADLESS", "true")); err == nil {
		headless = v
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.UserAgent(getEnv("USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")),
	)

	// 创建浏览器执行器与顶层上下文，整个进程复用一个浏览器实例
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// 预热浏览器，避免首个请求耗时过长
	if err := chromedp.Run(browserCtx); err != nil {
		log.Printf("warn: warmup chromedp failed: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/render", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req collector.RenderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, collector.RenderResponse{OK: false, Error: "invalid json"})
			return
		}
		if req.URL == "" {
			writeJSON(w, http.StatusBadRequest, collector.RenderResponse{OK: false, Error: "url is required"})
			return
		}

		// 每个请求开一个新标签页，复用同一个 browserCtx
		tabCtx, cancelTab := chromedp.NewContext(browserCtx)
		defer cancelTab()
		ctx, cancel := context.WithTimeout(tabCtx, renderTimeout)
		defer cancel()

		html, title, err := render(ctx, req)
		if err != nil {
			log.Printf("render error: %v (url=%s)", err, req.URL)
			writeJSON(w, http.StatusOK, collector.RenderResponse{OK: false, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, collector.RenderResponse{OK: true, HTML: html, Title: title})
	})

	addr := ":" + getEnv("PORT", "4000")
	log.Printf("browser-scraper listening on %s (headless=%v)", addr, headless)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("http server error: %v", err)
	}
}

// render 打开页面；需要时滚动两次触发懒加载，再等待 WaitMs 后取整页 HTML
func render(ctx context.Context, req collector.RenderRequest) (string, string, error) {
	var (
		html, title string
		height      float64
	)

	tasks := chromedp.Tasks{
		chromedp.Navigate(req.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if req.Scroll {
		tasks = append(tasks,
			chromedp.Evaluate(scrollJS, &height),
			chromedp.Sleep(scrollPause),
			chromedp.Evaluate(scrollJS, &height),
		)
	}
	if wait := time.Duration(req.WaitMs) * time.Millisecond; wait > 0 {
		tasks = append(tasks, chromedp.Sleep(min(wait, maxWait)))
	}
	tasks = append(tasks,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Title(&title),
	)

	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", "", err
	}
	return html, title, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
