package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LJTian/AINewsDigest/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sample() []processor.ProcessedArticle {
	return []processor.ProcessedArticle{
		{
			ID:          "0b6a3f1c-0000-5000-8000-000000000001",
			Title:       "大模型新进展",
			URL:         "https://www.qbitai.com/2026/02/12345.html",
			Source:      "qbitai",
			Description: "一段简介",
			Markdown:    "# 大模型新进展\n\n正文内容\n",
			PubDate:     "2026-02-23",
			RawData:     map[string]any{"source_type": "commentary", "site_name": "量子位"},
		},
		{
			ID:          "9f00aa11-0000-5000-8000-000000000002",
			Title:       "无日期文章",
			URL:         "https://www.jiqizhixin.com/articles/2026-02-20-3?from=feed",
			Source:      "jiqizhixin",
			Description: "无日期文章",
			Markdown:    "正文",
		},
		{
			ID:      "77aa0000-0000-5000-8000-000000000003",
			Title:   "第二篇",
			URL:     "https://www.qbitai.com/2026/02/12346.html",
			Source:  "qbitai",
			PubDate: "2026-02-22",
			RawData: map[string]any{"site_name": "量子位"},
		},
	}
}

func TestWriteMarkdown(t *testing.T) {
	dir := t.TempDir()
	paths, err := WriteMarkdown(dir, sample())
	require.NoError(t, err)
	require.Len(t, paths, 3)

	assert.Equal(t, filepath.Join(dir, "2026-02-23", "qbitai", "12345-0b6a3f1c.md"), paths[0])
	assert.Equal(t, filepath.Join(dir, "undated", "jiqizhixin", "2026-02-20-3-9f00aa11.md"), paths[1])

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	text := string(data)
	require.True(t, strings.HasPrefix(text, "---\n"))

	parts := strings.SplitN(text, "---\n", 3)
	require.Len(t, parts, 3)
	var fm frontMatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "大模型新进展", fm.Title)
	assert.Equal(t, "2026-02-23", fm.PubDate)
	assert.Equal(t, "commentary", fm.SourceType)
	assert.Equal(t, "量子位", fm.SiteName)
	assert.Equal(t, "\n# 大模型新进展\n\n正文内容\n", parts[2])
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "abc-12345678", Slug(processor.ProcessedArticle{ID: "12345678-aaaa", URL: "https://x.com/p/abc/"}))
	assert.Equal(t, "12345678", Slug(processor.ProcessedArticle{ID: "12345678-aaaa", URL: "https://x.com/"}))
	assert.Equal(t, "a-b", Slug(processor.ProcessedArticle{URL: "https://x.com/a%20b.html"}))
}

func TestDigest(t *testing.T) {
	d := Digest(sample(), "AI 资讯 2026-02-23")
	assert.True(t, strings.HasPrefix(d, "# AI 资讯 2026-02-23\n"))
	assert.Contains(t, d, "## 量子位 (qbitai)\n\n- [大模型新进展](https://www.qbitai.com/2026/02/12345.html) (2026-02-23)\n  > 一段简介\n- [第二篇]")
	assert.Contains(t, d, "## jiqizhixin\n\n- [无日期文章](https://www.jiqizhixin.com/articles/2026-02-20-3?from=feed) (N/A)\n")
	assert.NotContains(t, d, "> 无日期文章")

	assert.Contains(t, Digest(nil, "空"), "暂无文章")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	items := sample()
	items[2].Title = strings.Repeat("长", 50)
	PrintSummary(&buf, items, 0)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "抓取完成，共 3 条", lines[0])
	assert.Equal(t, "01. [qbitai] 大模型新进展 [2026-02-23]", lines[1])
	assert.Equal(t, "    https://www.qbitai.com/2026/02/12345.html", lines[2])
	assert.Equal(t, "02. [jiqizhixin] 无日期文章 [N/A]", lines[3])
	assert.Equal(t, "    https://www.jiqizhixin.com/articles/2026-02-20-3?from=feed", lines[4])
	assert.True(t, strings.HasSuffix(lines[5], "… [2026-02-22]"))
	assert.Equal(t, "    https://www.qbitai.com/2026/02/12346.html", lines[6])

	buf.Reset()
	PrintSummary(&buf, items, 1)
	assert.Equal(t, "抓取完成，共 3 条\n01. [qbitai] 大模型新进展 [2026-02-23]\n    https://www.qbitai.com/2026/02/12345.html\n", buf.String())
}
