package item

import (
	"context"
	"errors"

	"github.com/m-mizutani/gleaner/pkg/cache"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// EnrichItem returns the enrichment of one item, analyzing it only if no record exists
func (u *UseCase) EnrichItem(ctx context.Context, item *model.Item) (*model.EnrichmentRecord, cache.Status, error) {
	if err := item.Validate(); err != nil {
		return nil, "", err
	}

	record, status, err := u.cache.Enrich(ctx, item)
	if err != nil {
		return nil, "", err
	}

	logging.From(ctx).Info("item enriched",
		"item_id", item.ID,
		"status", status,
		"degraded", record.Degraded())
	return record, status, nil
}

// BatchResult is the outcome of EnrichBatch
type BatchResult struct {
	Records  []*model.EnrichmentRecord `json:"records"`
	Hits     int                       `json:"hits"`
	Misses   int                       `json:"misses"`
	Degraded int                       `json:"degraded"`
	Failed   int                       `json:"failed"`
	Errors   []string                  `json:"errors,omitempty"`
}

// EnrichBatch enriches items through the scheduler. Every item is validated before any work
// starts. Records of successful items are returned even when some items failed; the error then
// joins those failures.
func (u *UseCase) EnrichBatch(ctx context.Context, items []*model.Item) (*BatchResult, error) {
	if len(items) == 0 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "items are required")
	}
	if len(items) > MaxBatchSize {
		return nil, goerr.Wrap(model.ErrInvalidInput, "too many items",
			goerr.V("count", len(items)),
			goerr.V("max", MaxBatchSize))
	}
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid item in batch", goerr.V("index", i))
		}
	}

	outcomes := u.scheduler.Run(ctx, items, u.cache.Enrich)

	result := &BatchResult{Records: make([]*model.EnrichmentRecord, 0, len(outcomes))}
	var failures []error
	for i := range outcomes {
		o := &outcomes[i]
		if !o.Succeeded() {
			result.Failed++
			if o.Err != nil {
				failures = append(failures, o.Err)
				result.Errors = append(result.Errors, o.Err.Error())
			}
			continue
		}

		result.Records = append(result.Records, o.Record)
		if o.Status == cache.StatusHit {
			result.Hits++
		} else {
			result.Misses++
		}
		if o.Record.Degraded() {
			result.Degraded++
		}
	}

	logging.From(ctx).Info("batch enriched",
		"items", len(items),
		"hits", result.Hits,
		"misses", result.Misses,
		"failed", result.Failed)

	if len(failures) > 0 {
		return result, goerr.Wrap(errors.Join(failures...), "failed to enrich some items",
			goerr.V("failed", result.Failed))
	}
	return result, nil
}
