package repository

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Repository stores the typed records of the pipeline on top of a Backend
type Repository struct {
	backend Backend
}

// New wraps a Backend
func New(backend Backend) *Repository {
	return &Repository{backend: backend}
}

// Backend returns the underlying key-value store
func (r *Repository) Backend() Backend {
	return r.backend
}

// Close releases the backend
func (r *Repository) Close() error {
	if err := r.backend.Close(); err != nil {
		return goerr.Wrap(err, "failed to close backend")
	}
	return nil
}

func put(ctx context.Context, b Backend, kind Kind, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal record", goerr.V("kind", kind), goerr.V("key", key))
	}
	if err := b.Put(ctx, kind, key, data); err != nil {
		return goerr.Wrap(err, "failed to put record", goerr.V("kind", kind), goerr.V("key", key))
	}
	return nil
}

func get[T any](ctx context.Context, b Backend, kind Kind, key string) (*T, error) {
	entry, err := b.Get(ctx, kind, key)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("kind", kind), goerr.V("key", key))
	}
	if entry == nil {
		return nil, nil
	}

	var v T
	if err := json.Unmarshal(entry.Value, &v); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal record", goerr.V("kind", kind), goerr.V("key", key))
	}
	return &v, nil
}

func list[T any](ctx context.Context, b Backend, kind Kind, limit int) ([]*T, error) {
	entries, err := b.GetAll(ctx, kind)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list records", goerr.V("kind", kind))
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]*T, 0, len(entries))
	for _, entry := range entries {
		var v T
		if err := json.Unmarshal(entry.Value, &v); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal record", goerr.V("kind", kind), goerr.V("key", entry.Key))
		}
		out = append(out, &v)
	}
	return out, nil
}

// PutEnrichment upserts the enrichment record of an item
func (r *Repository) PutEnrichment(ctx context.Context, record *model.EnrichmentRecord) error {
	if record == nil || record.ItemID == "" {
		return goerr.New("enrichment record without item id")
	}
	return put(ctx, r.backend, KindEnrichment, record.ItemID.String(), record)
}

// GetEnrichment returns the enrichment record of an item, or nil when none exists
func (r *Repository) GetEnrichment(ctx context.Context, id model.ItemID) (*model.EnrichmentRecord, error) {
	return get[model.EnrichmentRecord](ctx, r.backend, KindEnrichment, id.String())
}

// ListEnrichments returns enrichment records, most recently updated first
func (r *Repository) ListEnrichments(ctx context.Context) ([]*model.EnrichmentRecord, error) {
	return list[model.EnrichmentRecord](ctx, r.backend, KindEnrichment, 0)
}

// DeleteEnrichment removes the enrichment record of an item so that the next run enriches it again
func (r *Repository) DeleteEnrichment(ctx context.Context, id model.ItemID) (bool, error) {
	deleted, err := r.backend.Delete(ctx, KindEnrichment, id.String())
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete enrichment", goerr.V("item_id", id))
	}
	return deleted, nil
}

// InsertAnalysis appends an analysis record. An existing ID is rejected with ErrDuplicateKey.
func (r *Repository) InsertAnalysis(ctx context.Context, record *model.AnalysisRecord) error {
	if record == nil || record.ID == "" {
		return goerr.New("analysis record without id")
	}
	return put(ctx, r.backend, KindAnalysis, record.ID.String(), record)
}

// GetAnalysis returns an analysis record, or nil when none exists
func (r *Repository) GetAnalysis(ctx context.Context, id model.AnalysisID) (*model.AnalysisRecord, error) {
	return get[model.AnalysisRecord](ctx, r.backend, KindAnalysis, id.String())
}

// ListAnalyses returns up to limit analysis records, newest first. limit <= 0 means no limit.
func (r *Repository) ListAnalyses(ctx context.Context, limit int) ([]*model.AnalysisRecord, error) {
	return list[model.AnalysisRecord](ctx, r.backend, KindAnalysis, limit)
}

// GetSnapshot returns the last snapshot of a query, or nil on the first run
func (r *Repository) GetSnapshot(ctx context.Context, query string) (*model.Snapshot, error) {
	return get[model.Snapshot](ctx, r.backend, KindSnapshot, query)
}

// PutSnapshot replaces the snapshot of a query
func (r *Repository) PutSnapshot(ctx context.Context, snapshot *model.Snapshot) error {
	if snapshot == nil || snapshot.Query == "" {
		return goerr.New("snapshot without query")
	}
	return put(ctx, r.backend, KindSnapshot, snapshot.Query, snapshot)
}
