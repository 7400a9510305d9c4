package repository

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

const metaCreatedAt = "created-at"

// CloudStorage is a Backend storing each entry as one JSON object under prefix/kind/key.json
type CloudStorage struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ Backend = (*CloudStorage)(nil)

// NewCloudStorage creates a new Cloud Storage backend
func NewCloudStorage(ctx context.Context, bucket, prefix string) (*CloudStorage, error) {
	if bucket == "" {
		return nil, goerr.New("bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &CloudStorage{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (c *CloudStorage) Close() error {
	return c.client.Close()
}

func (c *CloudStorage) dir(kind Kind) string {
	return path.Join(c.prefix, string(kind)) + "/"
}

func (c *CloudStorage) object(kind Kind, key string) *storage.ObjectHandle {
	return c.client.Bucket(c.bucket).Object(c.dir(kind) + escapeKey(key) + ".json")
}

func (c *CloudStorage) Put(ctx context.Context, kind Kind, key string, value []byte) error {
	if err := kind.Validate(); err != nil {
		return err
	}

	obj := c.object(kind, key)
	createdAt := time.Now().UTC()

	if kind.InsertOnly() {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	} else {
		attrs, err := obj.Attrs(ctx)
		switch {
		case errors.Is(err, storage.ErrObjectNotExist):
		case err != nil:
			return goerr.Wrap(err, "failed to get object attributes", goerr.V("kind", kind), goerr.V("key", key))
		default:
			if v, ok := attrs.Metadata[metaCreatedAt]; ok {
				if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
					createdAt = t
				}
			}
		}
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	w.Metadata = map[string]string{metaCreatedAt: createdAt.Format(time.RFC3339Nano)}

	if _, err := w.Write(value); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write object", goerr.V("kind", kind), goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return goerr.Wrap(ErrDuplicateKey, "record already exists", goerr.V("kind", kind), goerr.V("key", key))
		}
		return goerr.Wrap(err, "failed to close object writer", goerr.V("kind", kind), goerr.V("key", key))
	}

	return nil
}

func (c *CloudStorage) Get(ctx context.Context, kind Kind, key string) (*Entry, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	obj := c.object(kind, key)
	attrs, err := obj.Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get object attributes", goerr.V("kind", kind), goerr.V("key", key))
	}

	return c.read(ctx, kind, key, attrs)
}

func (c *CloudStorage) read(ctx context.Context, kind Kind, key string, attrs *storage.ObjectAttrs) (*Entry, error) {
	r, err := c.client.Bucket(c.bucket).Object(attrs.Name).Generation(attrs.Generation).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open object", goerr.V("kind", kind), goerr.V("key", key))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read object", goerr.V("kind", kind), goerr.V("key", key))
	}

	createdAt := attrs.Created
	if v, ok := attrs.Metadata[metaCreatedAt]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			createdAt = t
		}
	}

	return &Entry{
		Key:       key,
		Value:     data,
		CreatedAt: createdAt,
		UpdatedAt: attrs.Updated,
	}, nil
}

func (c *CloudStorage) GetAll(ctx context.Context, kind Kind) ([]*Entry, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	dir := c.dir(kind)
	it := c.client.Bucket(c.bucket).Objects(ctx, &storage.Query{Prefix: dir})

	var entries []*Entry
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list objects", goerr.V("kind", kind))
		}

		name := strings.TrimPrefix(attrs.Name, dir)
		if !strings.HasSuffix(name, ".json") || strings.Contains(name, "/") {
			continue
		}
		key, err := unescapeKey(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}

		entry, err := c.read(ctx, kind, key, attrs)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			entries = append(entries, entry)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].Key < entries[j].Key
		}
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})

	return entries, nil
}

func (c *CloudStorage) Delete(ctx context.Context, kind Kind, key string) (bool, error) {
	if err := kind.Validate(); err != nil {
		return false, err
	}

	err := c.object(kind, key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete object", goerr.V("kind", kind), goerr.V("key", key))
	}
	return true, nil
}
