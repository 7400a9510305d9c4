package item

import (
	"context"

	"github.com/m-mizutani/gleaner/pkg/pipeline"
	"github.com/m-mizutani/goerr/v2"
)

// CheckFresh runs the discovery pipeline for one query
func (u *UseCase) CheckFresh(ctx context.Context, query string) (*pipeline.Report, error) {
	if u.pipeline == nil {
		return nil, goerr.New("content source is not configured")
	}
	return u.pipeline.Run(ctx, query)
}

// CheckFreshAll runs the discovery pipeline for every query in order
func (u *UseCase) CheckFreshAll(ctx context.Context, queries []string) ([]*pipeline.Report, error) {
	if u.pipeline == nil {
		return nil, goerr.New("content source is not configured")
	}
	return u.pipeline.RunAll(ctx, queries)
}
