package pipeline_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gleaner/pkg/batch"
	"github.com/m-mizutani/gleaner/pkg/cache"
	"github.com/m-mizutani/gleaner/pkg/freshness"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/pipeline"
	"github.com/m-mizutani/gleaner/pkg/repository"
	"github.com/m-mizutani/gt"
)

type mockSource struct {
	mu      sync.Mutex
	results map[string][]*model.Item
	queries []string
}

func (m *mockSource) Search(ctx context.Context, query string, limit int, sort string) []*model.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if items, ok := m.results[query]; ok {
		return items
	}
	return []*model.Item{}
}

func (m *mockSource) set(query string, ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]*model.Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, &model.Item{ID: model.ItemID(id), Title: "title " + id})
	}
	if m.results == nil {
		m.results = map[string][]*model.Item{}
	}
	m.results[query] = items
}

type mockAnalyzer struct {
	calls       atomic.Int32
	analyzeFunc func(ctx context.Context, item *model.Item) (*model.Enrichment, error)
}

func (m *mockAnalyzer) Analyze(ctx context.Context, item *model.Item) (*model.Enrichment, error) {
	m.calls.Add(1)
	if m.analyzeFunc != nil {
		return m.analyzeFunc(ctx, item)
	}
	return &model.Enrichment{
		Analysis:    "ok",
		Sentiment:   model.SentimentNeutral,
		Credibility: model.CredibilityMedium,
		Relevance:   5,
	}, nil
}

func (m *mockAnalyzer) Summarize(ctx context.Context, items []*model.Item, instruction string) (string, error) {
	return "", nil
}

func (m *mockAnalyzer) ModelName() string { return "mock" }

func setup(t *testing.T, source *mockSource, analyzer *mockAnalyzer) (*pipeline.Pipeline, *repository.Repository) {
	backend, err := repository.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "pipeline.db"))
	gt.NoError(t, err)
	repo := repository.New(backend)
	t.Cleanup(func() { _ = repo.Close() })

	c := cache.New(repo, analyzer)
	s := batch.New(batch.WithConcurrency(3), batch.WithPacing(0))
	return pipeline.New(source, repo, c, s, pipeline.WithPacing(0)), repo
}

func TestRunIncremental(t *testing.T) {
	ctx := context.Background()
	source := &mockSource{}
	analyzer := &mockAnalyzer{}
	p, repo := setup(t, source, analyzer)

	source.set("bitcoin", "A", "B")
	report, err := p.Run(ctx, "bitcoin")
	gt.NoError(t, err)
	gt.Equal(t, report.Fetched, 2)
	gt.Equal(t, report.Fresh, 2)
	gt.Equal(t, report.Misses, 2)
	gt.True(t, report.SnapshotReplaced)
	gt.A(t, report.Records()).Length(2)

	source.set("bitcoin", "A", "B", "C")
	report, err = p.Run(ctx, "bitcoin")
	gt.NoError(t, err)
	gt.Equal(t, report.Fresh, 1)
	gt.Equal(t, report.Outcomes[0].Item.ID, model.ItemID("C"))
	gt.Equal(t, analyzer.calls.Load(), int32(3))

	snap, err := repo.GetSnapshot(ctx, "bitcoin")
	gt.NoError(t, err)
	gt.Equal(t, freshness.IDs(snap.Items), []model.ItemID{"A", "B", "C"})

	rec, err := repo.GetEnrichment(ctx, "C")
	gt.NoError(t, err)
	gt.V(t, rec).NotNil()
}

func TestRunZeroFresh(t *testing.T) {
	ctx := context.Background()
	source := &mockSource{}
	analyzer := &mockAnalyzer{}
	p, _ := setup(t, source, analyzer)

	source.set("eth", "A")
	_, err := p.Run(ctx, "eth")
	gt.NoError(t, err)

	report, err := p.Run(ctx, "eth")
	gt.NoError(t, err)
	gt.Equal(t, report.Fresh, 0)
	gt.A(t, report.Outcomes).Length(0)
	gt.True(t, report.SnapshotReplaced)
	gt.Equal(t, analyzer.calls.Load(), int32(1))
}

func TestRunReappearingItemIsCacheHit(t *testing.T) {
	ctx := context.Background()
	source := &mockSource{}
	analyzer := &mockAnalyzer{}
	p, _ := setup(t, source, analyzer)

	source.set("q", "A", "B")
	_, err := p.Run(ctx, "q")
	gt.NoError(t, err)

	source.set("q", "B")
	_, err = p.Run(ctx, "q")
	gt.NoError(t, err)

	// A is fresh again after dropping out of one fetch, but served from the store
	source.set("q", "A", "B")
	report, err := p.Run(ctx, "q")
	gt.NoError(t, err)
	gt.Equal(t, report.Fresh, 1)
	gt.Equal(t, report.Hits, 1)
	gt.Equal(t, analyzer.calls.Load(), int32(2))
}

func TestRunDegradedIsSuccess(t *testing.T) {
	ctx := context.Background()
	source := &mockSource{}
	analyzer := &mockAnalyzer{
		analyzeFunc: func(ctx context.Context, item *model.Item) (*model.Enrichment, error) {
			if item.ID == "bad" {
				return nil, errors.New("service unavailable")
			}
			return &model.Enrichment{Sentiment: model.SentimentBullish, Credibility: model.CredibilityHigh, Relevance: 7}, nil
		},
	}
	p, _ := setup(t, source, analyzer)

	source.set("q", "good", "bad")
	report, err := p.Run(ctx, "q")
	gt.NoError(t, err)
	gt.Equal(t, report.Degraded, 1)
	gt.Equal(t, report.Failed, 0)
	gt.True(t, report.SnapshotReplaced)
}

type flakyStore struct {
	*repository.Repository
	failPut atomic.Bool
}

func (f *flakyStore) PutEnrichment(ctx context.Context, record *model.EnrichmentRecord) error {
	if f.failPut.Load() && record.ItemID == "C" {
		return errors.New("write failed")
	}
	return f.Repository.PutEnrichment(ctx, record)
}

func TestRunStoreFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	backend, err := repository.NewSQLite(ctx, filepath.Join(t.TempDir(), "flaky.db"))
	gt.NoError(t, err)
	store := &flakyStore{Repository: repository.New(backend)}
	t.Cleanup(func() { _ = store.Close() })

	source := &mockSource{}
	analyzer := &mockAnalyzer{}
	p := pipeline.New(source, store, cache.New(store, analyzer), batch.New(batch.WithPacing(0)))

	source.set("q", "A", "B")
	_, err = p.Run(ctx, "q")
	gt.NoError(t, err)

	store.failPut.Store(true)
	source.set("q", "A", "B", "C", "D")
	report, err := p.Run(ctx, "q")
	gt.Error(t, err)
	gt.Equal(t, report.Failed, 1)
	gt.Equal(t, report.Misses, 1)
	gt.False(t, report.SnapshotReplaced)

	snap, err := store.GetSnapshot(ctx, "q")
	gt.NoError(t, err)
	gt.Equal(t, freshness.IDs(snap.Items), []model.ItemID{"A", "B"})

	// next run retries C, D is already cached
	store.failPut.Store(false)
	report, err = p.Run(ctx, "q")
	gt.NoError(t, err)
	gt.Equal(t, report.Fresh, 2)
	gt.Equal(t, report.Hits, 1)
	gt.Equal(t, report.Misses, 1)
	gt.True(t, report.SnapshotReplaced)
}

func TestRunEmptyQuery(t *testing.T) {
	p, _ := setup(t, &mockSource{}, &mockAnalyzer{})
	_, err := p.Run(context.Background(), "  ")
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestRunAll(t *testing.T) {
	ctx := context.Background()
	source := &mockSource{}
	source.set("a", "1", "2")
	source.set("b", "3")
	p, _ := setup(t, source, &mockAnalyzer{})

	reports, err := p.RunAll(ctx, []string{"a", "", "b"})
	gt.Error(t, err)
	gt.A(t, reports).Length(2)
	gt.Equal(t, reports[0].Query, "a")
	gt.Equal(t, reports[1].Query, "b")
	gt.Equal(t, source.queries, []string{"a", "b"})
}
