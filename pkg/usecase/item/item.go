package item

import (
	"context"
	"time"

	"github.com/m-mizutani/gleaner/pkg/batch"
	"github.com/m-mizutani/gleaner/pkg/cache"
	"github.com/m-mizutani/gleaner/pkg/enricher"
	"github.com/m-mizutani/gleaner/pkg/pipeline"
	"github.com/m-mizutani/gleaner/pkg/repository"
)

const (
	DefaultAnalyzeCount = 10
	MaxAnalyzeCount     = 50
	MaxBatchSize        = 100
)

// UseCase provides the item enrichment and analysis operations exposed by every surface
type UseCase struct {
	repo      *repository.Repository
	analyzer  enricher.Analyzer
	cache     *cache.Cache
	scheduler *batch.Scheduler
	pipeline  *pipeline.Pipeline
	now       func() time.Time

	callTimeout  time.Duration
	storeTimeout time.Duration
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithCache replaces the default enrichment cache
func WithCache(c *cache.Cache) Option {
	return func(uc *UseCase) {
		uc.cache = c
	}
}

// WithScheduler replaces the default batch scheduler
func WithScheduler(s *batch.Scheduler) Option {
	return func(uc *UseCase) {
		uc.scheduler = s
	}
}

// WithPipeline enables CheckFresh
func WithPipeline(p *pipeline.Pipeline) Option {
	return func(uc *UseCase) {
		uc.pipeline = p
	}
}

// WithCallTimeout bounds one free-form analysis call
func WithCallTimeout(d time.Duration) Option {
	return func(uc *UseCase) {
		if d > 0 {
			uc.callTimeout = d
		}
	}
}

// WithStoreTimeout bounds each repository call made directly by the use case
func WithStoreTimeout(d time.Duration) Option {
	return func(uc *UseCase) {
		if d > 0 {
			uc.storeTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a new item UseCase instance
func New(
	repo *repository.Repository,
	analyzer enricher.Analyzer,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		repo:         repo,
		analyzer:     analyzer,
		now:          time.Now,
		callTimeout:  cache.DefaultCallTimeout,
		storeTimeout: cache.DefaultStoreTimeout,
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.cache == nil {
		uc.cache = cache.New(repo, analyzer,
			cache.WithCallTimeout(uc.callTimeout),
			cache.WithStoreTimeout(uc.storeTimeout))
	}
	if uc.scheduler == nil {
		uc.scheduler = batch.New()
	}

	return uc
}

func (u *UseCase) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, u.storeTimeout)
}
