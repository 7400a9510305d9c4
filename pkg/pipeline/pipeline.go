// Package pipeline composes discovery, freshness, enrichment and persistence for a query.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/gleaner/pkg/adapter"
	"github.com/m-mizutani/gleaner/pkg/batch"
	"github.com/m-mizutani/gleaner/pkg/cache"
	"github.com/m-mizutani/gleaner/pkg/freshness"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// SnapshotStore keeps the last observed item list per query
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, query string) (*model.Snapshot, error)
	PutSnapshot(ctx context.Context, snapshot *model.Snapshot) error
}

// Enricher is the get-or-compute step applied to each fresh item
type Enricher interface {
	Enrich(ctx context.Context, item *model.Item) (*model.EnrichmentRecord, cache.Status, error)
}

// Report summarizes one run of a query
type Report struct {
	Query            string          `json:"query"`
	Fetched          int             `json:"fetched"`
	Fresh            int             `json:"fresh"`
	Hits             int             `json:"hits"`
	Misses           int             `json:"misses"`
	Degraded         int             `json:"degraded"`
	Failed           int             `json:"failed"`
	SnapshotReplaced bool            `json:"snapshot_replaced"`
	Outcomes         []batch.Outcome `json:"-"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
}

// Records returns the records of successful outcomes in input order
func (r *Report) Records() []*model.EnrichmentRecord {
	records := make([]*model.EnrichmentRecord, 0, len(r.Outcomes))
	for i := range r.Outcomes {
		if r.Outcomes[i].Succeeded() {
			records = append(records, r.Outcomes[i].Record)
		}
	}
	return records
}

type Pipeline struct {
	source       adapter.Source
	snapshots    SnapshotStore
	enricher     Enricher
	scheduler    *batch.Scheduler
	limit        int
	sort         string
	pacing       time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

type Option func(*Pipeline)

// WithLimit sets the number of items fetched per query
func WithLimit(n int) Option {
	return func(p *Pipeline) {
		p.limit = n
	}
}

// WithSort sets the source sort order
func WithSort(sort string) Option {
	return func(p *Pipeline) {
		if sort != "" {
			p.sort = sort
		}
	}
}

// WithPacing sets the delay between queries of RunAll
func WithPacing(d time.Duration) Option {
	return func(p *Pipeline) {
		p.pacing = d
	}
}

func WithStoreTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.storeTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

func New(source adapter.Source, snapshots SnapshotStore, enricher Enricher, scheduler *batch.Scheduler, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:       source,
		snapshots:    snapshots,
		enricher:     enricher,
		scheduler:    scheduler,
		limit:        adapter.DefaultLimit,
		sort:         adapter.DefaultSort,
		pacing:       batch.DefaultPacing,
		storeTimeout: cache.DefaultStoreTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run fetches query, enriches the items not seen in the previous snapshot and replaces the
// snapshot with the fetched list. When any fresh item failed, the snapshot is kept so those
// items stay fresh for the next run, and an error is returned together with the report.
func (p *Pipeline) Run(ctx context.Context, query string) (*Report, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "query is required")
	}

	logger := logging.From(ctx).With("query", query)
	ctx = logging.With(ctx, logger)

	report := &Report{Query: query, StartedAt: p.now().UTC()}

	current := p.source.Search(ctx, query, p.limit, p.sort)
	report.Fetched = len(current)

	previous, err := p.getSnapshot(ctx, query)
	if err != nil {
		return nil, err
	}
	var previousItems []*model.Item
	if previous != nil {
		previousItems = previous.Items
	}

	fresh := freshness.Diff(current, previousItems)
	report.Fresh = len(fresh)
	logger.Info("fetched items", "fetched", report.Fetched, "fresh", report.Fresh)

	if len(fresh) > 0 {
		report.Outcomes = p.scheduler.Run(ctx, fresh, p.enricher.Enrich)
	}

	var failures []error
	for i := range report.Outcomes {
		o := &report.Outcomes[i]
		switch {
		case o.Err != nil:
			report.Failed++
			failures = append(failures, o.Err)
		case o.Status == cache.StatusHit:
			report.Hits++
		default:
			report.Misses++
		}
		if o.Record != nil && o.Record.Degraded() {
			report.Degraded++
		}
	}

	if len(failures) > 0 {
		report.FinishedAt = p.now().UTC()
		logger.Error("run finished with failures, keeping previous snapshot",
			"failed", report.Failed,
			"fresh", report.Fresh)
		return report, goerr.Wrap(errors.Join(failures...), "failed to process fresh items",
			goerr.V("query", query),
			goerr.V("failed", report.Failed))
	}

	if err := p.putSnapshot(ctx, &model.Snapshot{
		Query:     query,
		Items:     current,
		FetchedAt: report.StartedAt,
	}); err != nil {
		return report, err
	}
	report.SnapshotReplaced = true
	report.FinishedAt = p.now().UTC()

	logger.Info("run finished",
		"hits", report.Hits,
		"misses", report.Misses,
		"degraded", report.Degraded)

	return report, nil
}

// RunAll runs every query in order, waiting the pacing delay between queries. A failed query
// does not stop the others; the returned error joins every failure.
func (p *Pipeline) RunAll(ctx context.Context, queries []string) ([]*Report, error) {
	var (
		reports []*Report
		errs    []error
	)

	for i, query := range queries {
		if i > 0 && p.pacing > 0 {
			select {
			case <-ctx.Done():
				errs = append(errs, goerr.Wrap(ctx.Err(), "run interrupted", goerr.V("remaining", len(queries)-i)))
				return reports, errors.Join(errs...)
			case <-time.After(p.pacing):
			}
		}

		report, err := p.Run(ctx, query)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			logging.From(ctx).Error("query failed", "query", query, "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return reports, errors.Join(errs...)
	}
	return reports, nil
}

func (p *Pipeline) getSnapshot(ctx context.Context, query string) (*model.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	snapshot, err := p.snapshots.GetSnapshot(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load snapshot", goerr.V("query", query))
	}
	return snapshot, nil
}

func (p *Pipeline) putSnapshot(ctx context.Context, snapshot *model.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	if err := p.snapshots.PutSnapshot(ctx, snapshot); err != nil {
		return goerr.Wrap(err, "failed to replace snapshot", goerr.V("query", snapshot.Query))
	}
	return nil
}
