// Package site 描述需要抓取的 AI 资讯站点：入口页、兜底提链正则与过滤规则
package site

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/LJTian/AINewsDigest/internal/extract"
	"gopkg.in/yaml.v3"
)

// Site 是一个资讯来源的抓取配置
type Site struct {
	Code    string   `yaml:"code"`
	Name    string   `yaml:"name"`
	Entries []string `yaml:"entries"`
	// Domains 用于判断站内链接；为空时取入口页主机名
	Domains []string `yaml:"domains"`
	Feeds   []string `yaml:"feeds"`

	Fallback struct {
		Absolute []string `yaml:"absolute"`
		Relative []string `yaml:"relative"`
	} `yaml:"fallback"`

	// SitemapFallback 入口页一条候选都没有时，走 robots.txt + sitemap
	SitemapFallback bool `yaml:"sitemap_fallback"`
	// AllowDateless 取不到发布日期的文章也保留（仅在未指定具体日期时生效）
	AllowDateless    bool     `yaml:"allow_dateless"`
	BadTitleKeywords []string `yaml:"bad_title_keywords"`
	// MinBodyRunes 正文过短（通常是空模板页）时丢弃
	MinBodyRunes int `yaml:"min_body_runes"`

	patterns extract.LinkPatterns
}

// Compile 编译兜底正则，并补全默认的站内域名
func (s *Site) Compile() error {
	if s.Code == "" {
		return fmt.Errorf("site: empty code")
	}
	if len(s.Entries) == 0 {
		return fmt.Errorf("site %s: no entries", s.Code)
	}

	var p extract.LinkPatterns
	for _, expr := range s.Fallback.Absolute {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("site %s: absolute pattern %q: %w", s.Code, expr, err)
		}
		p.Absolute = append(p.Absolute, re)
	}
	for _, expr := range s.Fallback.Relative {
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("site %s: relative pattern %q: %w", s.Code, expr, err)
		}
		p.Relative = append(p.Relative, re)
	}
	s.patterns = p

	if len(s.Domains) == 0 {
		for _, e := range s.Entries {
			if host := hostOf(e); host != "" {
				s.Domains = append(s.Domains, host)
			}
		}
	}
	return nil
}

// Patterns 返回编译后的兜底正则，需先调用 Compile
func (s *Site) Patterns() extract.LinkPatterns {
	return s.patterns
}

// HasBadTitle 标题命中站点的"栏目页/404 页"关键字
func (s *Site) HasBadTitle(title string) bool {
	for _, kw := range s.BadTitleKeywords {
		if kw != "" && strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Builtin 返回内置站点：量子位、新智元、机器之心
func Builtin() []*Site {
	qbitai := &Site{
		Code:    "qbitai",
		Name:    "量子位",
		Entries: []string{"https://www.qbitai.com/"},
		Domains: []string{"qbitai.com"},
		Feeds:   []string{"https://www.qbitai.com/feed"},
	}
	qbitai.Fallback.Absolute = []string{`https?://(?:www\.)?qbitai\.com/20\d{2}/\d{2}/\d+\.html`}
	qbitai.Fallback.Relative = []string{`(/20\d{2}/\d{2}/\d+\.html)`}

	// aiera 常见路径：/2026/02/23/...
	xinzhiyuan := &Site{
		Code:    "xinzhiyuan",
		Name:    "新智元",
		Entries: []string{"https://www.aiera.com.cn/", "https://aiera.com.cn/"},
		Domains: []string{"aiera.com.cn"},
		Feeds:   []string{"https://www.aiera.com.cn/feed"},
	}
	xinzhiyuan.Fallback.Absolute = []string{`https?://(?:www\.)?aiera\.com\.cn/20\d{2}/\d{2}/\d{2}/[^"'<>\s]+`}
	xinzhiyuan.Fallback.Relative = []string{`(/20\d{2}/\d{2}/\d{2}/[^"'<>\s]+)`}

	// 机器之心入口页基本靠 JS 渲染，经常拿不到链接，因此开启 sitemap 兜底；
	// 文章页日期也不稳定，允许无日期文章通过
	jiqizhixin := &Site{
		Code:             "jiqizhixin",
		Name:             "机器之心",
		Entries:          []string{"https://www.jiqizhixin.com/"},
		Domains:          []string{"jiqizhixin.com"},
		SitemapFallback:  true,
		AllowDateless:    true,
		BadTitleKeywords: []string{"文章库", "找不到您请求的页面", "404"},
		MinBodyRunes:     200,
	}
	jiqizhixin.Fallback.Absolute = []string{`https?://(?:www\.)?jiqizhixin\.com/articles/[^"'<>\s]+`}
	jiqizhixin.Fallback.Relative = []string{`(/articles/[^"'<>\s]+)`}

	sites := []*Site{qbitai, xinzhiyuan, jiqizhixin}
	for _, s := range sites {
		if err := s.Compile(); err != nil {
			panic(err)
		}
	}
	return sites
}

// DefaultCodes 不指定 --sites 时抓取的站点
var DefaultCodes = []string{"qbitai", "xinzhiyuan"}

type fileConfig struct {
	Sites []*Site `yaml:"sites"`
}

// Registry 按 code 管理站点，保留注册顺序
type Registry struct {
	order []string
	sites map[string]*Site
}

// NewRegistry 用内置站点初始化
func NewRegistry() *Registry {
	r := &Registry{sites: make(map[string]*Site)}
	for _, s := range Builtin() {
		r.put(s)
	}
	return r
}

func (r *Registry) put(s *Site) {
	if _, ok := r.sites[s.Code]; !ok {
		r.order = append(r.order, s.Code)
	}
	r.sites[s.Code] = s
}

// LoadFile 从 YAML 文件加载站点；与内置站点同 code 的整体覆盖，其余追加
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("site: read %s: %w", path, err)
	}
	return r.LoadYAML(data)
}

// LoadYAML 同 LoadFile，直接接收文件内容
func (r *Registry) LoadYAML(data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("site: parse yaml: %w", err)
	}
	for _, s := range fc.Sites {
		if s == nil {
			continue
		}
		if err := s.Compile(); err != nil {
			return err
		}
		r.put(s)
	}
	return nil
}

// Get 按 code 查找站点
func (r *Registry) Get(code string) (*Site, bool) {
	s, ok := r.sites[code]
	return s, ok
}

// All 按注册顺序返回全部站点
func (r *Registry) All() []*Site {
	out := make([]*Site, 0, len(r.order))
	for _, code := range r.order {
		out = append(out, r.sites[code])
	}
	return out
}

// Select 解析逗号分隔的站点列表；为空时返回默认站点
func (r *Registry) Select(list string) ([]*Site, error) {
	codes := DefaultCodes
	if strings.TrimSpace(list) != "" {
		codes = nil
		for _, c := range strings.Split(list, ",") {
			if c = strings.TrimSpace(c); c != "" {
				codes = append(codes, c)
			}
		}
	}
	if len(codes) == 1 && codes[0] == "all" {
		return r.All(), nil
	}

	out := make([]*Site, 0, len(codes))
	for _, c := range codes {
		s, ok := r.sites[c]
		if !ok {
			return nil, fmt.Errorf("site: unknown site %q", c)
		}
		out = append(out, s)
	}
	return out, nil
}
