package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/mmcdole/gofeed"
)

// Feed treats the query as an RSS or Atom feed URL
type Feed struct {
	parser  *gofeed.Parser
	timeout time.Duration
}

var _ Source = (*Feed)(nil)

type FeedOption func(*Feed)

func WithFeedUserAgent(ua string) FeedOption {
	return func(f *Feed) {
		if ua != "" {
			f.parser.UserAgent = ua
		}
	}
}

func WithFeedTimeout(d time.Duration) FeedOption {
	return func(f *Feed) {
		f.timeout = d
	}
}

func NewFeed(opts ...FeedOption) *Feed {
	parser := gofeed.NewParser()
	parser.UserAgent = defaultRedditUserAgent

	f := &Feed{
		parser:  parser,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Search fetches the feed at query. Feeds have no server-side ordering, so sort is ignored.
func (f *Feed) Search(ctx context.Context, query string, limit int, _ string) []*model.Item {
	items, err := f.fetch(ctx, query, limit)
	if err != nil {
		logging.From(ctx).Error("failed to fetch feed", "error", err, "url", query)
		return []*model.Item{}
	}
	return items
}

func (f *Feed) fetch(ctx context.Context, feedURL string, limit int) ([]*model.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse feed", goerr.V("url", feedURL))
	}

	limit = normalizeLimit(limit)
	items := make([]*model.Item, 0, min(limit, len(feed.Items)))
	for _, entry := range feed.Items {
		if len(items) >= limit {
			break
		}
		items = append(items, feedEntryToItem(feed, entry))
	}

	return items, nil
}

func feedEntryToItem(feed *gofeed.Feed, entry *gofeed.Item) *model.Item {
	id := entry.GUID
	if id == "" {
		id = entry.Link
	}
	if id == "" {
		sum := sha256.Sum256([]byte(entry.Title + entry.Published))
		id = hex.EncodeToString(sum[:8])
	}

	item := &model.Item{
		ID:        model.ItemID(id),
		Title:     entry.Title,
		Category:  feed.Title,
		URL:       entry.Link,
		Permalink: entry.Link,
		Body:      entry.Description,
	}
	if entry.Content != "" {
		item.Body = entry.Content
	}
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		item.Author = entry.Authors[0].Name
	}
	switch {
	case entry.PublishedParsed != nil:
		item.CreatedAt = entry.PublishedParsed.UTC()
	case entry.UpdatedParsed != nil:
		item.CreatedAt = entry.UpdatedParsed.UTC()
	}

	return item
}
