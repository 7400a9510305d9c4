package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	defaultRedditBaseURL   = "https://www.reddit.com"
	defaultRedditUserAgent = "gleaner/1.0"
)

// Reddit searches posts through the public search.json endpoint
type Reddit struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

var _ Source = (*Reddit)(nil)

type RedditOption func(*Reddit)

func WithUserAgent(ua string) RedditOption {
	return func(r *Reddit) {
		if ua != "" {
			r.userAgent = ua
		}
	}
}

func WithRedditBaseURL(u string) RedditOption {
	return func(r *Reddit) {
		r.baseURL = u
	}
}

func WithHTTPClient(client *http.Client) RedditOption {
	return func(r *Reddit) {
		r.client = client
	}
}

func NewReddit(opts ...RedditOption) *Reddit {
	r := &Reddit{
		baseURL:   defaultRedditBaseURL,
		userAgent: defaultRedditUserAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	URL         string  `json:"url"`
	Selftext    string  `json:"selftext"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
}

func (p *redditPost) toItem() *model.Item {
	sec := int64(p.CreatedUTC)
	nsec := int64((p.CreatedUTC - float64(sec)) * float64(time.Second))
	return &model.Item{
		ID:          model.ItemID(p.ID),
		Title:       p.Title,
		Author:      p.Author,
		Category:    p.Subreddit,
		Score:       p.Score,
		NumComments: p.NumComments,
		URL:         p.URL,
		Permalink:   "https://reddit.com" + p.Permalink,
		Body:        p.Selftext,
		CreatedAt:   time.Unix(sec, nsec).UTC(),
	}
}

func (r *Reddit) Search(ctx context.Context, query string, limit int, sort string) []*model.Item {
	items, err := r.search(ctx, query, limit, sort)
	if err != nil {
		logging.From(ctx).Error("failed to search reddit", "error", err, "query", query)
		return []*model.Item{}
	}
	return items
}

func (r *Reddit) search(ctx context.Context, query string, limit int, sort string) ([]*model.Item, error) {
	if sort == "" {
		sort = DefaultSort
	}
	if err := ValidateSort(sort); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(normalizeLimit(limit)))
	params.Set("sort", sort)
	endpoint := r.baseURL + "/search.json?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", endpoint))
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to request reddit", goerr.V("url", endpoint))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, goerr.New("unexpected status from reddit",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)),
			goerr.V("url", endpoint))
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, goerr.Wrap(err, "failed to decode reddit response", goerr.V("url", endpoint))
	}

	items := make([]*model.Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if child.Data.ID == "" {
			continue
		}
		items = append(items, child.Data.toItem())
	}

	return items, nil
}
