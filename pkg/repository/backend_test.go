package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gleaner/pkg/repository"
	"github.com/m-mizutani/gt"
)

// testBackend runs the behavior every Backend must satisfy
func testBackend(t *testing.T, backend repository.Backend) {
	ctx := context.Background()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())

	t.Run("get absent key returns nil", func(t *testing.T) {
		entry, err := backend.Get(ctx, repository.KindEnrichment, "absent-"+suffix)
		gt.NoError(t, err)
		gt.V(t, entry).Nil()
	})

	t.Run("put overwrites value and keeps created_at", func(t *testing.T) {
		key := "upsert-" + suffix
		gt.NoError(t, backend.Put(ctx, repository.KindEnrichment, key, []byte(`{"v":1}`)))
		first, err := backend.Get(ctx, repository.KindEnrichment, key)
		gt.NoError(t, err)
		gt.V(t, first).NotNil()

		gt.NoError(t, backend.Put(ctx, repository.KindEnrichment, key, []byte(`{"v":2}`)))
		second, err := backend.Get(ctx, repository.KindEnrichment, key)
		gt.NoError(t, err)
		gt.Equal(t, string(second.Value), `{"v":2}`)
		gt.True(t, second.CreatedAt.Equal(first.CreatedAt))
		gt.False(t, second.UpdatedAt.Before(first.UpdatedAt))
	})

	t.Run("insert-only kind rejects duplicate key", func(t *testing.T) {
		key := "analysis-" + suffix
		gt.NoError(t, backend.Put(ctx, repository.KindAnalysis, key, []byte(`{"n":1}`)))

		err := backend.Put(ctx, repository.KindAnalysis, key, []byte(`{"n":2}`))
		gt.Error(t, err)
		gt.True(t, errors.Is(err, repository.ErrDuplicateKey))

		entry, err := backend.Get(ctx, repository.KindAnalysis, key)
		gt.NoError(t, err)
		gt.Equal(t, string(entry.Value), `{"n":1}`)
	})

	t.Run("url-shaped key round-trips", func(t *testing.T) {
		key := "https://example.com/" + suffix + "/post/1?ref=rss"
		gt.NoError(t, backend.Put(ctx, repository.KindSnapshot, key, []byte(`{"u":1}`)))

		entry, err := backend.Get(ctx, repository.KindSnapshot, key)
		gt.NoError(t, err)
		gt.V(t, entry).NotNil()
		gt.Equal(t, entry.Key, key)

		entries, err := backend.GetAll(ctx, repository.KindSnapshot)
		gt.NoError(t, err)
		var found bool
		for _, e := range entries {
			if e.Key == key {
				found = true
			}
		}
		gt.True(t, found)

		deleted, err := backend.Delete(ctx, repository.KindSnapshot, key)
		gt.NoError(t, err)
		gt.True(t, deleted)
	})

	t.Run("delete reports existence", func(t *testing.T) {
		key := "delete-" + suffix
		gt.NoError(t, backend.Put(ctx, repository.KindEnrichment, key, []byte(`{}`)))

		deleted, err := backend.Delete(ctx, repository.KindEnrichment, key)
		gt.NoError(t, err)
		gt.True(t, deleted)

		deleted, err = backend.Delete(ctx, repository.KindEnrichment, key)
		gt.NoError(t, err)
		gt.False(t, deleted)

		entry, err := backend.Get(ctx, repository.KindEnrichment, key)
		gt.NoError(t, err)
		gt.V(t, entry).Nil()
	})

	t.Run("kinds do not share keys", func(t *testing.T) {
		key := "shared-" + suffix
		gt.NoError(t, backend.Put(ctx, repository.KindSnapshot, key, []byte(`{}`)))
		entry, err := backend.Get(ctx, repository.KindEnrichment, key)
		gt.NoError(t, err)
		gt.V(t, entry).Nil()
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		err := backend.Put(ctx, repository.Kind("alerts"), "k", []byte(`{}`))
		gt.True(t, errors.Is(err, repository.ErrUnknownKind))
	})
}
