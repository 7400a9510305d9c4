package item

import (
	"context"
	"strings"

	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// DeleteEnrichment removes the stored enrichment of an item so the next request analyzes it again
func (u *UseCase) DeleteEnrichment(ctx context.Context, id model.ItemID) error {
	if strings.TrimSpace(id.String()) == "" {
		return goerr.Wrap(model.ErrInvalidInput, "item id is required")
	}

	storeCtx, cancel := u.storeContext(ctx)
	defer cancel()

	deleted, err := u.repo.DeleteEnrichment(storeCtx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return goerr.Wrap(model.ErrNotFound, "enrichment not found", goerr.V("item_id", id))
	}

	logging.From(ctx).Info("enrichment deleted", "item_id", id)
	return nil
}
