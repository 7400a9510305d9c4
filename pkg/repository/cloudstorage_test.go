package repository_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/gleaner/pkg/repository"
	"github.com/m-mizutani/gt"
)

func TestCloudStorageBackend(t *testing.T) {
	bucket := os.Getenv("TEST_STORAGE_BUCKET")
	if bucket == "" {
		t.Skip("TEST_STORAGE_BUCKET is not set")
	}

	prefix := fmt.Sprintf("test/%d", time.Now().UnixNano())
	backend, err := repository.NewCloudStorage(context.Background(), bucket, prefix)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	testBackend(t, backend)
}
