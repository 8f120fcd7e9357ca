package main

import (
	"log"
	"time"

	"github.com/LJTian/AINewsDigest/internal/api"
	"github.com/LJTian/AINewsDigest/internal/collector"
	"github.com/LJTian/AINewsDigest/internal/config"
	"github.com/LJTian/AINewsDigest/internal/extract"
	"github.com/LJTian/AINewsDigest/internal/processor"
	"github.com/LJTian/AINewsDigest/internal/scheduler"
	"github.com/LJTian/AINewsDigest/internal/site"
	"github.com/LJTian/AINewsDigest/internal/sitemap"
	"github.com/LJTian/AINewsDigest/internal/storage"
	"github.com/gin-gonic/gin"
)

// 延迟执行首轮采集，避免与服务启动争抢资源
const startupDelay = 15 * time.Second

func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.DBDriver, cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	reg := site.NewRegistry()
	if cfg.SitesFile != "" {
		if err := reg.LoadFile(cfg.SitesFile); err != nil {
			log.Fatalf("load sites failed: %v", err)
		}
	}

	// 定时任务抓取全部站点，并确保各个来源存在
	sites := reg.All()
	for _, s := range sites {
		if _, err := store.EnsureSource(s.Code, s.Name, s.Entries[0]); err != nil {
			log.Fatalf("ensure source %s failed: %v", s.Code, err)
		}
	}

	var renderer collector.Renderer = collector.NewCollyRenderer(cfg.UserAgent, 30*time.Second)
	if cfg.BrowserEndpoint != "" {
		renderer = collector.NewBrowserRenderer(cfg.BrowserEndpoint)
	}
	sitemaps := sitemap.NewCrawler(cfg.UserAgent, cfg.Debug)
	feeds := collector.NewFeedReader(cfg.UserAgent)

	fetchers := make([]collector.Fetcher, 0, len(sites))
	for _, s := range sites {
		fetchers = append(fetchers, &collector.SiteFetcher{
			Site:     s,
			Renderer: renderer,
			Sitemaps: sitemaps,
			Feeds:    feeds,
			Limit:    cfg.CrawlLimit,
			Debug:    cfg.Debug,
		})
	}

	// 每天抓取前一天的文章
	p := processor.NewSimpleProcessor()
	s, err := scheduler.New(cfg.CronSpec, fetchers, p, store, scheduler.Options{
		OutputDir:    cfg.OutputDir,
		StartupDelay: startupDelay,
	})
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()
	defer s.Stop()
	for _, e := range s.Entries() {
		log.Printf("collect job scheduled (%s), next run at %s", cfg.CronSpec, e.Next.In(extract.LocEast8).Format("2006-01-02 15:04:05"))
	}

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(store, s)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
