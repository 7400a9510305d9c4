// Package cache provides idempotent get-or-compute enrichment keyed by item identity.
package cache

import (
	"context"
	"time"

	"github.com/m-mizutani/gleaner/pkg/enricher"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Status tells whether Enrich served a stored record or computed a new one
type Status string

const (
	StatusHit  Status = "hit"
	StatusMiss Status = "miss"
)

const (
	DefaultCallTimeout  = 60 * time.Second
	DefaultStoreTimeout = 10 * time.Second
)

// Store is the part of the repository the cache depends on
type Store interface {
	GetEnrichment(ctx context.Context, id model.ItemID) (*model.EnrichmentRecord, error)
	PutEnrichment(ctx context.Context, record *model.EnrichmentRecord) error
}

// Cache wraps an Analyzer so that each item identity is analyzed at most once
type Cache struct {
	store        Store
	analyzer     enricher.Analyzer
	callTimeout  time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

type Option func(*Cache)

// WithCallTimeout bounds each analyzer call
func WithCallTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.callTimeout = d
	}
}

// WithStoreTimeout bounds each store read and write
func WithStoreTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.storeTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func New(store Store, analyzer enricher.Analyzer, opts ...Option) *Cache {
	c := &Cache{
		store:        store,
		analyzer:     analyzer,
		callTimeout:  DefaultCallTimeout,
		storeTimeout: DefaultStoreTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enrich returns the stored record of item, or analyzes, persists and returns it. Analyzer
// failures produce a degraded record which is stored like any other; only store failures
// are returned as errors.
func (c *Cache) Enrich(ctx context.Context, item *model.Item) (*model.EnrichmentRecord, Status, error) {
	if err := item.Validate(); err != nil {
		return nil, "", err
	}

	existing, err := c.get(ctx, item.ID)
	if err != nil {
		return nil, "", err
	}
	if existing != nil {
		logging.From(ctx).Debug("enrichment cache hit", "item_id", item.ID)
		return existing, StatusHit, nil
	}

	enrichment := c.analyze(ctx, item)

	now := c.now().UTC()
	record := &model.EnrichmentRecord{
		ItemID:     item.ID,
		Item:       item,
		Enrichment: enrichment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.put(ctx, record); err != nil {
		return nil, "", err
	}

	// return what a later hit would return
	stored, err := c.get(ctx, item.ID)
	if err != nil {
		return nil, "", err
	}
	if stored == nil {
		return nil, "", goerr.New("enrichment disappeared after write", goerr.V("item_id", item.ID))
	}

	return stored, StatusMiss, nil
}

func (c *Cache) analyze(ctx context.Context, item *model.Item) *model.Enrichment {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	enrichment, err := c.analyzer.Analyze(callCtx, item)
	if err != nil {
		logging.From(ctx).Warn("enrichment failed, storing degraded record",
			"item_id", item.ID,
			"error", err)
		enrichment = model.NewDegradedEnrichment("enrichment failed: "+err.Error(), "")
		enrichment.Model = c.analyzer.ModelName()
		enrichment.EnrichedAt = c.now().UTC()
		return enrichment
	}
	if enrichment == nil {
		enrichment = model.NewDegradedEnrichment("enrichment returned nothing", "")
		enrichment.Model = c.analyzer.ModelName()
		enrichment.EnrichedAt = c.now().UTC()
	}
	if enrichment.Degraded {
		logging.From(ctx).Warn("degraded enrichment", "item_id", item.ID, "note", enrichment.Note)
	}
	return enrichment
}

func (c *Cache) get(ctx context.Context, id model.ItemID) (*model.EnrichmentRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()

	record, err := c.store.GetEnrichment(ctx, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read enrichment", goerr.V("item_id", id))
	}
	return record, nil
}

func (c *Cache) put(ctx context.Context, record *model.EnrichmentRecord) error {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()

	if err := c.store.PutEnrichment(ctx, record); err != nil {
		return goerr.Wrap(err, "failed to store enrichment", goerr.V("item_id", record.ItemID))
	}
	return nil
}
