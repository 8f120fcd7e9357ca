package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LJTian/AINewsDigest/internal/collector"
	"github.com/LJTian/AINewsDigest/internal/extract"
	"github.com/LJTian/AINewsDigest/internal/output"
	"github.com/LJTian/AINewsDigest/internal/processor"
	"github.com/robfig/cron/v3"
)

// DefaultSpec 每天早上 8 点（东八区）抓取前一天的文章
const DefaultSpec = "0 8 * * *"

// ErrBusy 已有一轮采集在执行（定时或手动触发）
var ErrBusy = errors.New("scheduler: collect job is running")

// Saver 持久化一批处理后的文章，storage.Store 实现了它
type Saver interface {
	SaveBatch(ctx context.Context, items []processor.ProcessedArticle) error
}

type Options struct {
	// Window 根据当前时间决定本轮的时间窗口，默认只抓前一天
	Window func(now time.Time) collector.Window
	// OutputDir 非空时把文章写成 Markdown 文件
	OutputDir string
	// StartupDelay 大于 0 时，Start 之后延迟执行一轮
	StartupDelay time.Duration
	Now          func() time.Time
}

type Scheduler struct {
	cron      *cron.Cron
	fetchers  []collector.Fetcher
	processor *processor.SimpleProcessor
	store     Saver
	opts      Options

	// running 定时任务、手动触发与 RunOnce 共用，同一时间只跑一轮
	running sync.Mutex
}

func New(spec string, fetchers []collector.Fetcher, p *processor.SimpleProcessor, store Saver, opts Options) (*Scheduler, error) {
	if opts.Window == nil {
		opts.Window = collector.Yesterday
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := cron.New(cron.WithLocation(extract.LocEast8))

	s := &Scheduler{
		cron:      c,
		fetchers:  fetchers,
		processor: p,
		store:     store,
		opts:      opts,
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("scheduler: invalid spec %q: %w", spec, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	if s.opts.StartupDelay > 0 {
		time.AfterFunc(s.opts.StartupDelay, func() {
			go s.runOnce()
		})
	}
}

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Entries 返回已注册的定时任务，便于展示下一次执行时间
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

// runOnce 是定时任务入口：上一轮没跑完时跳过本轮，避免同一站点被并发抓取
func (s *Scheduler) runOnce() {
	_, err := s.TryRunOnce(context.Background())
	switch {
	case errors.Is(err, ErrBusy):
		log.Printf("collect job skipped: previous run still in progress")
	case err != nil:
		log.Printf("collect job error: %v", err)
	}
}

// RunOnce 执行一轮采集，有其他采集在跑时等待其结束
func (s *Scheduler) RunOnce(ctx context.Context) ([]processor.ProcessedArticle, error) {
	s.running.Lock()
	defer s.running.Unlock()
	return s.run(ctx)
}

// TryRunOnce 同 RunOnce，但已有采集在跑时立即返回 ErrBusy
func (s *Scheduler) TryRunOnce(ctx context.Context) ([]processor.ProcessedArticle, error) {
	if !s.running.TryLock() {
		return nil, ErrBusy
	}
	defer s.running.Unlock()
	return s.run(ctx)
}

// Trigger 在后台启动一轮采集，供手动触发使用；已有采集在跑时返回 ErrBusy
func (s *Scheduler) Trigger() error {
	if !s.running.TryLock() {
		return ErrBusy
	}
	go func() {
		defer s.running.Unlock()
		if _, err := s.run(context.Background()); err != nil {
			log.Printf("manual collect error: %v", err)
		}
	}()
	return nil
}

// run 执行一轮采集：各站点并发抓取，按注册顺序合并、去重后入库并写出 Markdown
func (s *Scheduler) run(ctx context.Context) ([]processor.ProcessedArticle, error) {
	w := s.opts.Window(s.opts.Now())
	log.Printf("start collect job... days=%d target=%s", w.Days, targetLabel(w))

	results := make([][]collector.Article, len(s.fetchers))
	var wg sync.WaitGroup
	for i, f := range s.fetchers {
		wg.Add(1)
		go func(i int, fetcher collector.Fetcher) {
			defer wg.Done()
			name := fetcher.Name()
			log.Printf("fetch from %s...", name)
			items, err := fetcher.Fetch(ctx, w)
			if err != nil {
				log.Printf("fetch %s error: %v", name, err)
			}
			if len(items) == 0 {
				log.Printf("fetch %s got 0 items", name)
				return
			}
			results[i] = items
			log.Printf("%s done, fetched=%d items", name, len(items))
		}(i, f)
	}
	wg.Wait()

	var all []collector.Article
	for _, items := range results {
		all = append(all, items...)
	}
	processed := s.processor.Process(collector.Dedup(all))

	var errs []error
	if s.store != nil && len(processed) > 0 {
		if err := s.store.SaveBatch(ctx, processed); err != nil {
			errs = append(errs, err)
		} else {
			// 条数 = 本轮解析到的数量（非"新增数"，已存在会更新）
			log.Printf("saved=%d items", len(processed))
		}
	}
	if s.opts.OutputDir != "" && len(processed) > 0 {
		paths, err := output.WriteMarkdown(s.opts.OutputDir, processed)
		if err != nil {
			errs = append(errs, err)
		}
		log.Printf("markdown written: %d files under %s", len(paths), s.opts.OutputDir)
	}

	log.Printf("collect job done (all sources), total=%d", len(processed))
	return processed, errors.Join(errs...)
}

func targetLabel(w collector.Window) string {
	if !w.HasTarget() {
		return "-"
	}
	return w.Target.Format("2006-01-02")
}
