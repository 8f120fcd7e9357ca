// Package output 把处理后的文章写成 Markdown 文件、汇总摘要和控制台清单
package output

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/LJTian/AINewsDigest/internal/processor"
	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultSummaryMax 控制台最多列出的条数
	DefaultSummaryMax = 60
	summaryTitleWidth = 80
	undatedDir        = "undated"
)

var slugUnsafeRe = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

type frontMatter struct {
	Title      string `yaml:"title"`
	URL        string `yaml:"url"`
	Source     string `yaml:"source"`
	PubDate    string `yaml:"pub_date,omitempty"`
	SourceType string `yaml:"source_type,omitempty"`
	SiteName   string `yaml:"site_name,omitempty"`
}

// WriteMarkdown 每篇文章写一个文件：dir/<日期|undated>/<source>/<slug>.md，
// 返回写出的文件路径
func WriteMarkdown(dir string, articles []processor.ProcessedArticle) ([]string, error) {
	paths := make([]string, 0, len(articles))
	for _, a := range articles {
		day := a.PubDate
		if day == "" {
			day = undatedDir
		}
		folder := filepath.Join(dir, day, safeName(a.Source))
		if err := os.MkdirAll(folder, 0o755); err != nil {
			return paths, fmt.Errorf("output: mkdir %s: %w", folder, err)
		}

		body, err := renderArticle(a)
		if err != nil {
			return paths, err
		}
		p := filepath.Join(folder, Slug(a)+".md")
		if err := os.WriteFile(p, body, 0o644); err != nil {
			return paths, fmt.Errorf("output: write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func renderArticle(a processor.ProcessedArticle) ([]byte, error) {
	fm := frontMatter{
		Title:   a.Title,
		URL:     a.URL,
		Source:  a.Source,
		PubDate: a.PubDate,
	}
	if v, ok := a.RawData["source_type"].(string); ok {
		fm.SourceType = v
	}
	if v, ok := a.RawData["site_name"].(string); ok {
		fm.SiteName = v
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("output: front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n\n")
	buf.WriteString(strings.TrimSpace(a.Markdown))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// Slug 由 URL 最后一段路径和 ID 前缀组成，保证同目录下不重名
func Slug(a processor.ProcessedArticle) string {
	base := ""
	if u, err := url.Parse(a.URL); err == nil {
		if p := strings.TrimRight(u.Path, "/"); p != "" {
			base = path.Base(p)
			base = strings.TrimSuffix(base, path.Ext(base))
		}
	}
	base = strings.Trim(slugUnsafeRe.ReplaceAllString(base, "-"), "-")
	if len(base) > 60 {
		base = base[:60]
	}

	id := a.ID
	if len(id) > 8 {
		id = id[:8]
	}
	switch {
	case base == "":
		return safeName(id)
	case id == "":
		return base
	}
	return base + "-" + id
}

func safeName(s string) string {
	s = strings.Trim(slugUnsafeRe.ReplaceAllString(s, "-"), "-")
	if s == "" {
		return "unknown"
	}
	return s
}

// Digest 生成按来源分组的 Markdown 汇总
func Digest(articles []processor.ProcessedArticle, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", title)
	if len(articles) == 0 {
		b.WriteString("\n暂无文章\n")
		return b.String()
	}

	var order []string
	groups := make(map[string][]processor.ProcessedArticle)
	for _, a := range articles {
		if _, ok := groups[a.Source]; !ok {
			order = append(order, a.Source)
		}
		groups[a.Source] = append(groups[a.Source], a)
	}

	for _, src := range order {
		fmt.Fprintf(&b, "\n## %s\n\n", sourceLabel(groups[src][0]))
		for _, a := range groups[src] {
			fmt.Fprintf(&b, "- [%s](%s) (%s)\n", a.Title, a.URL, orNA(a.PubDate))
			if a.Description != "" && a.Description != a.Title {
				fmt.Fprintf(&b, "  > %s\n", a.Description)
			}
		}
	}
	return b.String()
}

func sourceLabel(a processor.ProcessedArticle) string {
	if name, ok := a.RawData["site_name"].(string); ok && name != "" {
		return fmt.Sprintf("%s (%s)", name, a.Source)
	}
	return a.Source
}

// PrintSummary 输出抓取结果清单，每条一行标题、一行链接，最多列出 max 条（<=0 时取默认值）
func PrintSummary(w io.Writer, articles []processor.ProcessedArticle, max int) {
	if max <= 0 {
		max = DefaultSummaryMax
	}
	fmt.Fprintf(w, "抓取完成，共 %d 条\n", len(articles))
	for i, a := range articles {
		if i >= max {
			break
		}
		title := runewidth.Truncate(a.Title, summaryTitleWidth, "…")
		fmt.Fprintf(w, "%02d. [%s] %s [%s]\n", i+1, a.Source, title, orNA(a.PubDate))
		fmt.Fprintf(w, "    %s\n", a.URL)
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
