package processor

import (
	"strings"
	"testing"
	"time"

	"github.com/LJTian/AINewsDigest/internal/collector"
)

func TestHashURLDeterministicAndDistinct(t *testing.T) {
	url1 := "https://www.qbitai.com/2026/02/1.html"
	url2 := "https://www.qbitai.com/2026/02/2.html"

	h1a := hashURL(url1)
	h1b := hashURL(url1)
	h2 := hashURL(url2)

	if h1a != h1b {
		t.Fatalf("hashURL not deterministic: %q vs %q", h1a, h1b)
	}
	if h1a == h2 {
		t.Fatalf("hashURL should differ for different URLs: %q", h1a)
	}
	if len(h1a) != 36 {
		t.Fatalf("hashURL should be a uuid string, got %q", h1a)
	}
}

func TestTruncateRunesHandlesChineseAndEllipsis(t *testing.T) {
	s := "你好，世界，这是一个很长的中文句子，用来测试截断逻辑。"
	out := truncateRunes(s, 5)
	if len([]rune(out)) != 6 { // 5 个字符 + 1 个省略号
		t.Fatalf("truncateRunes length = %d, want 6 (including ellipsis): %q", len([]rune(out)), out)
	}
	if !strings.HasSuffix(out, "…") {
		t.Fatalf("truncateRunes should append ellipsis: %q", out)
	}

	// limit 大于长度时不应截断
	full := truncateRunes("短文本", 10)
	if full != "短文本" {
		t.Fatalf("truncateRunes should keep original when under limit: %q", full)
	}
}

func TestSimpleProcessorDeduplicateAndFillDescription(t *testing.T) {
	p := NewSimpleProcessor()
	now := time.Now()

	items := []collector.Article{
		{
			Title:       " Title 1 ",
			URL:         "https://example.com/1",
			Source:      "test",
			Abstract:    "desc 1",
			Markdown:    "# Title 1\n\ndesc 1",
			PubDate:     "2026-02-23",
			PublishedAt: now,
		},
		{
			Title:    "Title 1 duplicate by URL",
			URL:      "https://example.com/1",
			Source:   "test",
			Abstract: "desc 1 dup",
		},
		{
			Title:  "Title 2 no abstract",
			URL:    "https://example.com/2",
			Source: "test",
		},
		{
			Title:    "Title 3 long",
			URL:      "https://example.com/3",
			Source:   "test",
			Abstract: strings.Repeat("长", 500),
		},
	}

	out := p.Process(items)
	if len(out) != 3 {
		t.Fatalf("expected 3 processed items after dedupe, got %d", len(out))
	}

	if out[0].Title != "Title 1" || out[0].Description != "desc 1" {
		t.Fatalf("first item should be trimmed and keep abstract: %+v", out[0])
	}
	if out[0].PubDate != "2026-02-23" || out[0].Markdown == "" {
		t.Fatalf("first item should carry pub date and markdown: %+v", out[0])
	}

	// 没有摘要时用标题兜底
	if out[1].Description != "Title 2 no abstract" {
		t.Fatalf("unexpected fallback description: %q", out[1].Description)
	}

	if n := len([]rune(out[2].Description)); n != descriptionRunes+1 {
		t.Fatalf("long description should be truncated to %d runes + ellipsis, got %d", descriptionRunes, n)
	}
}
