package extract

import (
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-shiori/go-readability"
)

// ToMarkdown 把详情页 HTML 转成精简的 Markdown：
// 先用 readability 找出正文区域，失败或为空时退回整页转换。
func ToMarkdown(rawHTML, pageURL string) (string, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return "", nil
	}

	var domain string
	var parsed *url.URL
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		parsed = u
		domain = u.Scheme + "://" + u.Host
	}

	content := rawHTML
	if article, err := readability.FromReader(strings.NewReader(rawHTML), parsed); err == nil {
		if strings.TrimSpace(article.TextContent) != "" {
			content = article.Content
		}
	}

	conv := md.NewConverter(domain, true, nil)
	out, err := conv.ConvertString(content)
	if err != nil {
		return "", fmt.Errorf("extract: convert markdown: %w", err)
	}
	return strings.TrimSpace(out), nil
}
