package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/AINewsDigest/internal/extract"
	"github.com/mmcdole/gofeed"
)

const feedTimeout = 15 * time.Second

// FeedReader 从站点的 RSS/Atom 输出里取候选文章，作为入口页链接不足时的补充
type FeedReader struct {
	parser *gofeed.Parser
}

func NewFeedReader(userAgent string) *FeedReader {
	p := gofeed.NewParser()
	p.UserAgent = userAgent
	return &FeedReader{parser: p}
}

// Candidates 解析 feedURL，返回文章候选（带 feed 中的发布日期提示）
func (r *FeedReader) Candidates(ctx context.Context, feedURL string) ([]extract.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, feedTimeout)
	defer cancel()

	feed, err := r.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("feed: parse %s: %w", feedURL, err)
	}

	out := make([]extract.Candidate, 0, len(feed.Items))
	for _, it := range feed.Items {
		link := extract.NormalizeURL(feedURL, it.Link)
		if link == "" || !extract.IsArticleURL(link) {
			continue
		}
		title := extract.Clean(it.Title)
		if extract.RuneLen(title) < 2 {
			title = extract.PlaceholderTitle
		}
		date := ""
		switch {
		case it.PublishedParsed != nil:
			date = it.PublishedParsed.In(extract.LocEast8).Format("2006-01-02")
		case it.UpdatedParsed != nil:
			date = it.UpdatedParsed.In(extract.LocEast8).Format("2006-01-02")
		}
		out = append(out, extract.Candidate{Title: title, URL: link, Date: date})
	}
	return out, nil
}
