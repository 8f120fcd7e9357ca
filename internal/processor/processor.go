package processor

import (
	"strings"
	"time"

	"github.com/LJTian/AINewsDigest/internal/collector"
	"github.com/google/uuid"
)

// 列表页展示用的简介长度（按 rune 计）
const descriptionRunes = 200

// ProcessedArticle 是写入存储层 / 输出层前的统一结构
type ProcessedArticle struct {
	ID          string
	Title       string
	URL         string
	Source      string
	Description string
	Markdown    string
	// PubDate 为 YYYY-MM-DD；取不到发布日期时为空
	PubDate     string
	PublishedAt time.Time
	RawData     map[string]any
}

// SimpleProcessor 做基础清洗、ID 生成与按 URL 去重
type SimpleProcessor struct{}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{}
}

func (p *SimpleProcessor) Process(items []collector.Article) []ProcessedArticle {
	out := make([]ProcessedArticle, 0, len(items))
	seen := make(map[string]struct{})

	for _, it := range items {
		id := hashURL(it.URL)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		title := strings.TrimSpace(it.Title)
		desc := truncateRunes(strings.TrimSpace(it.Abstract), descriptionRunes)
		if desc == "" {
			desc = title
		}

		out = append(out, ProcessedArticle{
			ID:          id,
			Title:       title,
			URL:         it.URL,
			Source:      it.Source,
			Description: desc,
			Markdown:    it.Markdown,
			PubDate:     it.PubDate,
			PublishedAt: it.PublishedAt,
			RawData:     it.RawData,
		})
	}

	return out
}

// hashURL 基于 URL 生成稳定的文章 ID（UUID v5）
func hashURL(url string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(url)).String()
}

// truncateRunes 按 rune 截断，超出时追加省略号
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if limit <= 0 || len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}
