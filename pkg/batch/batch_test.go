package batch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gleaner/pkg/batch"
	"github.com/m-mizutani/gleaner/pkg/cache"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gt"
)

func makeItems(n int) []*model.Item {
	items := make([]*model.Item, n)
	for i := range items {
		items[i] = &model.Item{ID: model.ItemID(fmt.Sprintf("item-%d", i))}
	}
	return items
}

func okRecord(item *model.Item) *model.EnrichmentRecord {
	return &model.EnrichmentRecord{ItemID: item.ID, Item: item, Enrichment: &model.Enrichment{Relevance: 5}}
}

func TestRunPreservesOrder(t *testing.T) {
	items := makeItems(7)
	s := batch.New(batch.WithConcurrency(3), batch.WithPacing(0))

	outcomes := s.Run(context.Background(), items, func(ctx context.Context, item *model.Item) (*model.EnrichmentRecord, cache.Status, error) {
		// later items in a chunk finish first
		if item.ID == "item-0" || item.ID == "item-3" {
			time.Sleep(20 * time.Millisecond)
		}
		return okRecord(item), cache.StatusMiss, nil
	})

	gt.A(t, outcomes).Length(7)
	for i, o := range outcomes {
		gt.Equal(t, o.Index, i)
		gt.Equal(t, o.Item.ID, items[i].ID)
		gt.Equal(t, o.Record.ItemID, items[i].ID)
		gt.Equal(t, o.Status, cache.StatusMiss)
		gt.True(t, o.Succeeded())
	}
}

func TestRunConcurrencyBound(t *testing.T) {
	var (
		inFlight atomic.Int32
		maxSeen  atomic.Int32
	)

	s := batch.New(batch.WithConcurrency(3), batch.WithPacing(0))
	outcomes := s.Run(context.Background(), makeItems(7), func(ctx context.Context, item *model.Item) (*model.EnrichmentRecord, cache.Status, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			cur := maxSeen.Load()
			if n <= cur || maxSeen.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return okRecord(item), cache.StatusMiss, nil
	})

	gt.A(t, outcomes).Length(7)
	gt.True(t, maxSeen.Load() <= 3)
	gt.True(t, maxSeen.Load() >= 1)
}

func TestRunChunksAreSequential(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)

	s := batch.New(batch.WithConcurrency(3), batch.WithPacing(0))
	s.Run(context.Background(), makeItems(7), func(ctx context.Context, item *model.Item) (*model.EnrichmentRecord, cache.Status, error) {
		mu.Lock()
		order = append(order, "start:"+item.ID.String())
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		order = append(order, "end:"+item.ID.String())
		mu.Unlock()
		return okRecord(item), cache.StatusMiss, nil
	})

	// every item of chunk 1 ends before any item of chunk 2 starts
	pos := func(ev string) int {
		for i, v := range order {
			if v == ev {
				return i
			}
		}
		return -1
	}
	for _, a := range []string{"item-0", "item-1", "item-2"} {
		for _, b := range []string{"item-3", "item-4", "item-5"} {
			gt.True(t, pos("end:"+a) < pos("start:"+b))
		}
	}
	gt.True(t, pos("end:item-5") < pos("start:item-6"))
}

func TestRunPartialFailure(t *testing.T) {
	items := makeItems(6)
	s := batch.New(batch.WithConcurrency(3), batch.WithPacing(0))

	outcomes := s.Run(context.Background(), items, func(ctx context.Context, item *model.Item) (*model.EnrichmentRecord, cache.Status, error) {
		switch item.ID {
		case "item-1":
			return nil, "", errors.New("store unavailable")
		case "item-4":
			panic("boom")
		}
		return okRecord(item), cache.StatusMiss, nil
	})

	gt.A(t, outcomes).Length(6)
	for i, o := range outcomes {
		switch i {
		case 1, 4:
			gt.Error(t, o.Err)
			gt.False(t, o.Succeeded())
		default:
			gt.NoError(t, o.Err)
			gt.True(t, o.Succeeded())
		}
	}
	gt.S(t, outcomes[4].Err.Error()).Contains("panic")
}

func TestRunPacing(t *testing.T) {
	s := batch.New(batch.WithConcurrency(2), batch.WithPacing(30*time.Millisecond))

	started := time.Now()
	s.Run(context.Background(), makeItems(5), func(ctx context.Context, item *model.Item) (*model.EnrichmentRecord, cache.Status, error) {
		return okRecord(item), cache.StatusHit, nil
	})
	elapsed := time.Since(started)

	// three chunks: two pacing waits, none after the last chunk
	gt.True(t, elapsed >= 60*time.Millisecond)
	gt.True(t, elapsed < 90*time.Millisecond+time.Second)
}

func TestRunNoPacingForSingleChunk(t *testing.T) {
	s := batch.New(batch.WithConcurrency(3), batch.WithPacing(time.Hour))

	done := make(chan struct{})
	go func() {
		s.Run(context.Background(), makeItems(3), func(ctx context.Context, item *model.Item) (*model.EnrichmentRecord, cache.Status, error) {
			return okRecord(item), cache.StatusHit, nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("single chunk waited for pacing")
	}
}

func TestRunCancelledDuringPacing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := batch.New(batch.WithConcurrency(2), batch.WithPacing(time.Hour))

	outcomes := s.Run(ctx, makeItems(4), func(ctx context.Context, item *model.Item) (*model.EnrichmentRecord, cache.Status, error) {
		cancel()
		return okRecord(item), cache.StatusMiss, nil
	})

	gt.A(t, outcomes).Length(4)
	gt.True(t, outcomes[0].Succeeded())
	gt.True(t, outcomes[1].Succeeded())
	gt.True(t, errors.Is(outcomes[2].Err, context.Canceled))
	gt.True(t, errors.Is(outcomes[3].Err, context.Canceled))
}

func TestRunEmpty(t *testing.T) {
	s := batch.New()
	outcomes := s.Run(context.Background(), nil, func(ctx context.Context, item *model.Item) (*model.EnrichmentRecord, cache.Status, error) {
		t.Fatal("must not be called")
		return nil, "", nil
	})
	gt.A(t, outcomes).Length(0)
}

func TestDefaults(t *testing.T) {
	s := batch.New(batch.WithConcurrency(0), batch.WithPacing(-1))
	gt.Equal(t, s.Concurrency(), batch.DefaultConcurrency)
	gt.Equal(t, s.Pacing(), batch.DefaultPacing)
}
