package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/AINewsDigest/internal/collector"
	"github.com/LJTian/AINewsDigest/internal/config"
	"github.com/LJTian/AINewsDigest/internal/extract"
	"github.com/LJTian/AINewsDigest/internal/output"
	"github.com/LJTian/AINewsDigest/internal/processor"
	"github.com/LJTian/AINewsDigest/internal/scheduler"
	"github.com/LJTian/AINewsDigest/internal/site"
	"github.com/LJTian/AINewsDigest/internal/sitemap"
	"github.com/LJTian/AINewsDigest/internal/storage"
)

const staticTimeout = 30 * time.Second

// 一个仅执行一次采集任务的命令行入口：抓取选定站点，打印清单，可选写 Markdown / 入库
func main() {
	cfg := config.Load()

	var (
		days      = flag.Int("days", cfg.CrawlDays, "只保留最近 N 天的文章，0 表示不过滤")
		limit     = flag.Int("limit", cfg.CrawlLimit, "每个来源最多保留的条数")
		debug     = flag.Bool("debug", cfg.Debug, "输出调试日志")
		show      = flag.Bool("show", false, "使用浏览器渲染服务（以 HEADLESS=false 启动 browser-scraper 可看到窗口）")
		yesterday = flag.Bool("yesterday", false, "只保留前一天（东八区）的文章，忽略 --days")
		sites     = flag.String("sites", "", "逗号分隔的站点 code，all 表示全部；默认 qbitai,xinzhiyuan")
		sitesFile = flag.String("sites-file", cfg.SitesFile, "站点配置 YAML，覆盖或追加内置站点")
		outDir    = flag.String("out", cfg.OutputDir, "Markdown 输出目录，为空则不写文件")
		digest    = flag.String("digest", "", "汇总 Markdown 的输出文件")
		save      = flag.Bool("save", false, "写入数据库")
		render    = flag.String("render", "static", "页面获取方式: static / browser")
	)
	flag.Parse()

	reg := site.NewRegistry()
	if *sitesFile != "" {
		if err := reg.LoadFile(*sitesFile); err != nil {
			log.Fatalf("load sites failed: %v", err)
		}
	}
	selected, err := reg.Select(*sites)
	if err != nil {
		log.Fatalf("select sites failed: %v", err)
	}

	var renderer collector.Renderer
	switch {
	case *show || *render == "browser":
		if cfg.BrowserEndpoint == "" {
			log.Fatalf("browser renderer requires BROWSER_ENDPOINT")
		}
		renderer = collector.NewBrowserRenderer(cfg.BrowserEndpoint)
	case *render == "static":
		renderer = collector.NewCollyRenderer(cfg.UserAgent, staticTimeout)
	default:
		log.Fatalf("unknown --render %q", *render)
	}

	sitemaps := sitemap.NewCrawler(cfg.UserAgent, *debug)
	feeds := collector.NewFeedReader(cfg.UserAgent)

	fetchers := make([]collector.Fetcher, 0, len(selected))
	for _, s := range selected {
		fetchers = append(fetchers, &collector.SiteFetcher{
			Site:     s,
			Renderer: renderer,
			Sitemaps: sitemaps,
			Feeds:    feeds,
			Limit:    *limit,
			Debug:    *debug,
		})
	}
	if *debug {
		log.Printf("[CONFIG] sites=%d days=%d limit=%d yesterday=%v render=%s", len(selected), *days, *limit, *yesterday, *render)
	}

	var (
		saver  scheduler.Saver
		closer io.Closer
	)
	if *save {
		store, err := storage.NewStore(cfg.DBDriver, cfg.PostgresDSN, cfg.RedisAddr)
		if err != nil {
			log.Fatalf("init store failed: %v", err)
		}
		// 确保各个来源存在（与 cmd/api 保持一致）
		for _, s := range selected {
			if _, err := store.EnsureSource(s.Code, s.Name, s.Entries[0]); err != nil {
				_ = store.Close()
				log.Fatalf("ensure source %s failed: %v", s.Code, err)
			}
		}
		saver, closer = store, store
	}

	window := func(now time.Time) collector.Window {
		if *yesterday {
			return collector.Yesterday(now)
		}
		return collector.Window{Days: *days}
	}

	sch, err := newOneShot(fetchers, saver, scheduler.Options{
		Window:    window,
		OutputDir: *outDir,
	})
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = collectOnce(ctx, sch, closer, *digest, os.Stdout)
	stop()
	if err != nil {
		log.Fatalf("collect failed: %v", err)
	}
}

// newOneShot 只用来执行一轮采集，不依赖 CRON_SPEC
func newOneShot(fetchers []collector.Fetcher, saver scheduler.Saver, opts scheduler.Options) (*scheduler.Scheduler, error) {
	return scheduler.New(scheduler.DefaultSpec, fetchers, processor.NewSimpleProcessor(), saver, opts)
}

// collectOnce 执行一轮采集，打印清单并按需写出汇总；返回前关闭 closer
func collectOnce(ctx context.Context, sch *scheduler.Scheduler, closer io.Closer, digestPath string, w io.Writer) error {
	items, runErr := sch.RunOnce(ctx)
	output.PrintSummary(w, items, output.DefaultSummaryMax)

	errs := []error{runErr}
	if digestPath != "" {
		title := "AI 资讯汇总 " + time.Now().In(extract.LocEast8).Format("2006-01-02")
		if err := os.WriteFile(digestPath, []byte(output.Digest(items, title)), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write digest: %w", err))
		}
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
