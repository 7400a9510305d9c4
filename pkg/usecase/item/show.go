package item

import (
	"context"
	"strings"

	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// GetEnrichment returns the stored enrichment of an item
func (u *UseCase) GetEnrichment(ctx context.Context, id model.ItemID) (*model.EnrichmentRecord, error) {
	if strings.TrimSpace(id.String()) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "item id is required")
	}

	storeCtx, cancel := u.storeContext(ctx)
	defer cancel()

	record, err := u.repo.GetEnrichment(storeCtx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "enrichment not found", goerr.V("item_id", id))
	}
	return record, nil
}

// GetAnalysis returns a stored analysis
func (u *UseCase) GetAnalysis(ctx context.Context, id model.AnalysisID) (*model.AnalysisRecord, error) {
	if strings.TrimSpace(id.String()) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "analysis id is required")
	}

	storeCtx, cancel := u.storeContext(ctx)
	defer cancel()

	record, err := u.repo.GetAnalysis(storeCtx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "analysis not found", goerr.V("analysis_id", id))
	}
	return record, nil
}
