package adapter

import (
	"context"

	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Source discovers items for a query. A fetch failure is logged by the implementation and
// yields an empty slice, so a transient outage looks like "nothing new".
type Source interface {
	Search(ctx context.Context, query string, limit int, sort string) []*model.Item
}

// SourceType selects a Source implementation
type SourceType string

const (
	SourceReddit SourceType = "reddit"
	SourceFeed   SourceType = "feed"
)

// Sort orders accepted by Reddit search
var redditSorts = map[string]struct{}{
	"hot":       {},
	"new":       {},
	"rising":    {},
	"top":       {},
	"relevance": {},
}

const (
	DefaultLimit = 25
	DefaultSort  = "hot"
	MaxLimit     = 100
)

// ValidateSort checks that sort is one of hot, new, rising, top or relevance
func ValidateSort(sort string) error {
	if _, ok := redditSorts[sort]; !ok {
		return goerr.Wrap(model.ErrInvalidInput, "unsupported sort", goerr.V("sort", sort))
	}
	return nil
}

// ValidateSourceSort checks sort only for sources that honor it. Feeds ignore sort.
func ValidateSourceSort(typ SourceType, sort string) error {
	if typ == SourceFeed {
		return nil
	}
	return ValidateSort(sort)
}

// NewSource creates the configured Source
func NewSource(typ SourceType, userAgent string) (Source, error) {
	switch typ {
	case SourceReddit, "":
		return NewReddit(WithUserAgent(userAgent)), nil
	case SourceFeed:
		return NewFeed(WithFeedUserAgent(userAgent)), nil
	default:
		return nil, goerr.New("unsupported source", goerr.V("source", typ))
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
