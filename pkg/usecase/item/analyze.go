package item

import (
	"context"
	"strings"

	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// AnalyzeInput is the request of Analyze. Items are used as given; ItemIDs are resolved from
// stored enrichment records and appended after Items.
type AnalyzeInput struct {
	Items       []*model.Item  `json:"items"`
	ItemIDs     []model.ItemID `json:"item_ids"`
	Instruction string         `json:"instruction"`
	Count       int            `json:"count"`
	PromptType  string         `json:"prompt_type"`
}

// Analyze runs a free-form instruction over the first Count items and appends the result as a
// new analysis record. Count defaults to 10 and may not exceed 50.
func (u *UseCase) Analyze(ctx context.Context, input AnalyzeInput) (*model.AnalysisRecord, error) {
	instruction := strings.TrimSpace(input.Instruction)
	if instruction == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "instruction is required")
	}

	count := input.Count
	if count == 0 {
		count = DefaultAnalyzeCount
	}
	if count < 0 || count > MaxAnalyzeCount {
		return nil, goerr.Wrap(model.ErrInvalidInput, "count out of range",
			goerr.V("count", count),
			goerr.V("max", MaxAnalyzeCount))
	}

	items := make([]*model.Item, 0, len(input.Items)+len(input.ItemIDs))
	for i, item := range input.Items {
		if err := item.Validate(); err != nil {
			return nil, goerr.Wrap(err, "invalid item", goerr.V("index", i))
		}
		items = append(items, item)
	}
	for _, id := range input.ItemIDs {
		record, err := u.getEnrichment(ctx, id)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get enrichment", goerr.V("item_id", id))
		}
		if record == nil || record.Item == nil {
			return nil, goerr.Wrap(model.ErrNotFound, "no stored item", goerr.V("item_id", id))
		}
		items = append(items, record.Item)
	}
	if len(items) == 0 {
		return nil, goerr.Wrap(model.ErrInvalidInput, "items are required")
	}
	if len(items) > count {
		items = items[:count]
	}

	result, err := u.summarize(ctx, items, instruction)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to analyze items", goerr.V("count", len(items)))
	}

	promptType := input.PromptType
	if promptType == "" {
		promptType = model.DefaultPromptType
	}

	refs := make([]model.ItemRef, 0, len(items))
	for _, item := range items {
		refs = append(refs, item.Ref())
	}

	record := &model.AnalysisRecord{
		ID:          model.NewAnalysisID(),
		Instruction: instruction,
		PromptType:  promptType,
		Result:      result,
		ItemCount:   len(items),
		Items:       refs,
		Model:       u.analyzer.ModelName(),
		CreatedAt:   u.now().UTC(),
	}
	if err := u.insertAnalysis(ctx, record); err != nil {
		return nil, goerr.Wrap(err, "failed to save analysis", goerr.V("analysis_id", record.ID))
	}

	logging.From(ctx).Info("analysis saved", "analysis_id", record.ID, "items", record.ItemCount)
	return record, nil
}

func (u *UseCase) summarize(ctx context.Context, items []*model.Item, instruction string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.callTimeout)
	defer cancel()
	return u.analyzer.Summarize(ctx, items, instruction)
}

func (u *UseCase) getEnrichment(ctx context.Context, id model.ItemID) (*model.EnrichmentRecord, error) {
	ctx, cancel := u.storeContext(ctx)
	defer cancel()
	return u.repo.GetEnrichment(ctx, id)
}

func (u *UseCase) insertAnalysis(ctx context.Context, record *model.AnalysisRecord) error {
	ctx, cancel := u.storeContext(ctx)
	defer cancel()
	return u.repo.InsertAnalysis(ctx, record)
}
