// Package batch runs enrichment over many items with bounded concurrency and paced chunks.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/gleaner/pkg/cache"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 3
	DefaultPacing      = time.Second
)

// EnrichFunc processes one item. (*cache.Cache).Enrich satisfies it.
type EnrichFunc func(ctx context.Context, item *model.Item) (*model.EnrichmentRecord, cache.Status, error)

// Outcome is the result for the input at Index
type Outcome struct {
	Index  int
	Item   *model.Item
	Record *model.EnrichmentRecord
	Status cache.Status
	Err    error
}

// Succeeded reports whether the item produced a record
func (o *Outcome) Succeeded() bool {
	return o.Err == nil && o.Record != nil
}

// Scheduler splits items into chunks of Concurrency, runs a chunk concurrently and waits
// Pacing between chunks.
type Scheduler struct {
	concurrency int
	pacing      time.Duration
}

type Option func(*Scheduler)

func WithConcurrency(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithPacing(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.pacing = d
		}
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		concurrency: DefaultConcurrency,
		pacing:      DefaultPacing,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Concurrency is the chunk size
func (s *Scheduler) Concurrency() int {
	return s.concurrency
}

// Pacing is the delay between chunks
func (s *Scheduler) Pacing() time.Duration {
	return s.pacing
}

// Run returns exactly one Outcome per item, in input order. An error or panic of fn is kept in
// the item's Outcome and never aborts other items. Cancelling ctx stops waiting between chunks;
// items of chunks not yet started get the context error.
func (s *Scheduler) Run(ctx context.Context, items []*model.Item, fn EnrichFunc) []Outcome {
	logger := logging.From(ctx)
	outcomes := make([]Outcome, len(items))
	for i, item := range items {
		outcomes[i] = Outcome{Index: i, Item: item}
	}

	chunks := (len(items) + s.concurrency - 1) / s.concurrency
	for c := 0; c < chunks; c++ {
		start := c * s.concurrency
		end := min(start+s.concurrency, len(items))

		if c > 0 && s.pacing > 0 {
			if err := wait(ctx, s.pacing); err != nil {
				logger.Warn("batch interrupted", "error", err, "remaining", len(items)-start)
				for i := start; i < len(items); i++ {
					outcomes[i].Err = goerr.Wrap(err, "batch interrupted before item was dispatched",
						goerr.V("item_id", items[i].ID))
				}
				break
			}
		}

		var eg errgroup.Group
		for i := start; i < end; i++ {
			eg.Go(func() error {
				return s.runOne(ctx, &outcomes[i], fn)
			})
		}

		if err := eg.Wait(); err != nil {
			logger.Error("batch chunk had failures",
				"error", err,
				"chunk", c+1,
				"chunks", chunks,
				"range", fmt.Sprintf("%d-%d", start, end-1))
			continue
		}

		logger.Info("batch chunk done", "chunk", c+1, "chunks", chunks, "items", end-start)
	}

	return outcomes
}

func (s *Scheduler) runOne(ctx context.Context, o *Outcome, fn EnrichFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("panic while enriching item",
				goerr.V("item_id", itemID(o.Item)),
				goerr.V("panic", fmt.Sprint(r)))
			o.Err = err
		}
	}()

	if o.Item == nil {
		o.Err = goerr.Wrap(model.ErrInvalidInput, "nil item", goerr.V("index", o.Index))
		return o.Err
	}

	record, status, err := fn(ctx, o.Item)
	if err != nil {
		o.Err = goerr.Wrap(err, "failed to enrich item", goerr.V("item_id", o.Item.ID))
		return o.Err
	}
	o.Record = record
	o.Status = status
	return nil
}

func itemID(item *model.Item) model.ItemID {
	if item == nil {
		return ""
	}
	return item.ID
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
