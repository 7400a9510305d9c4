package item

import (
	"context"

	"github.com/m-mizutani/gleaner/pkg/model"
)

// ListOptions contains options for listing enrichments
type ListOptions struct {
	Limit        int
	DegradedOnly bool
	Category     string
}

// ListEnrichments returns stored enrichments, most recently updated first
func (u *UseCase) ListEnrichments(ctx context.Context, opts ListOptions) ([]*model.EnrichmentRecord, error) {
	storeCtx, cancel := u.storeContext(ctx)
	defer cancel()

	records, err := u.repo.ListEnrichments(storeCtx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*model.EnrichmentRecord, 0, len(records))
	for _, record := range records {
		if opts.DegradedOnly && !record.Degraded() {
			continue
		}
		if opts.Category != "" && (record.Item == nil || record.Item.Category != opts.Category) {
			continue
		}
		filtered = append(filtered, record)
		if opts.Limit > 0 && len(filtered) >= opts.Limit {
			break
		}
	}

	return filtered, nil
}

// ListAnalyses returns up to limit analyses, newest first
func (u *UseCase) ListAnalyses(ctx context.Context, limit int) ([]*model.AnalysisRecord, error) {
	storeCtx, cancel := u.storeContext(ctx)
	defer cancel()

	return u.repo.ListAnalyses(storeCtx, limit)
}
