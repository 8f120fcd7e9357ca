package collector

import (
	"context"
	"time"

	"github.com/LJTian/AINewsDigest/internal/extract"
)

// Article 统一采集后的文章结构
type Article struct {
	Title  string
	URL    string
	Source string
	// PubDate 形如 2006-01-02；部分站点允许为空
	PubDate     string
	PublishedAt time.Time
	// Abstract 直接用清理过的 Markdown 前 800 字
	Abstract string
	Markdown string
	RawData  map[string]any
}

// Fetcher 抽象每一个数据源
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, w Window) ([]Article, error)
}

// Window 描述本轮采集需要的时间范围
type Window struct {
	// Days 近几天，<=0 表示不过滤
	Days int
	// Target 非零时只保留这一天（东八区）的文章，优先于 Days
	Target time.Time
}

// Yesterday 返回"昨天 00:00-23:59"的窗口，用于每日推送
func Yesterday(now time.Time) Window {
	y := now.In(extract.LocEast8).AddDate(0, 0, -1)
	return Window{Target: time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, extract.LocEast8)}
}

// HasTarget 是否按具体日期过滤
func (w Window) HasTarget() bool {
	return !w.Target.IsZero()
}

// Keep 判断发布时间 dt 是否落在窗口内。dated=false 表示没取到日期。
func (w Window) Keep(dt time.Time, dated, allowDateless bool, now time.Time) bool {
	if w.HasTarget() {
		if !dated {
			return false
		}
		return sameDay(dt, w.Target)
	}
	if !dated {
		return allowDateless
	}
	if w.Days <= 0 {
		return true
	}
	return !dt.Before(now.Add(-time.Duration(w.Days) * 24 * time.Hour))
}

func sameDay(a, b time.Time) bool {
	a, b = a.In(extract.LocEast8), b.In(extract.LocEast8)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// Dedup 按 (标题, URL) 去重，保留首次出现的顺序
func Dedup(items []Article) []Article {
	type key struct{ title, url string }
	out := make([]Article, 0, len(items))
	seen := make(map[key]struct{}, len(items))
	for _, it := range items {
		k := key{it.Title, it.URL}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}
