package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrInvalidInput is the root of every validation failure raised at the trigger boundary.
	ErrInvalidInput = goerr.New("invalid input")
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = goerr.New("not found")
)

// ItemID is the identity of an item, unique within its source
type ItemID string

func (id ItemID) String() string { return string(id) }

// Item is one discovered content unit. Identity is the only equality key.
type Item struct {
	ID          ItemID    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Category    string    `json:"category"`
	Score       int       `json:"score"`
	NumComments int       `json:"num_comments"`
	URL         string    `json:"url,omitempty"`
	Permalink   string    `json:"permalink,omitempty"`
	Body        string    `json:"body,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks that the item carries an identity
func (x *Item) Validate() error {
	if x == nil {
		return goerr.Wrap(ErrInvalidInput, "item is required")
	}
	if x.ID == "" {
		return goerr.Wrap(ErrInvalidInput, "item id is required", goerr.V("title", x.Title))
	}
	return nil
}

// Ref returns the light identifying metadata of the item
func (x *Item) Ref() ItemRef {
	return ItemRef{
		ID:       x.ID,
		Title:    x.Title,
		Category: x.Category,
	}
}

// ItemRef identifies an item considered by an analysis without carrying its body
type ItemRef struct {
	ID       ItemID `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// Snapshot is the full item list observed by the latest fetch of a query
type Snapshot struct {
	Query     string    `json:"query"`
	Items     []*Item   `json:"items"`
	FetchedAt time.Time `json:"fetched_at"`
}
