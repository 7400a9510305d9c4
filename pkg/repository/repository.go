package repository

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrDuplicateKey is returned when an insert-only collection already holds the key
	ErrDuplicateKey = goerr.New("duplicate key")
	// ErrUnknownKind is returned for a kind outside the known collections
	ErrUnknownKind = goerr.New("unknown kind")
)

// Kind partitions the key space into logical collections
type Kind string

const (
	KindEnrichment Kind = "enrichments"
	KindAnalysis   Kind = "analyses"
	KindSnapshot   Kind = "snapshots"
)

// Validate checks if the kind is one of the known collections
func (k Kind) Validate() error {
	switch k {
	case KindEnrichment, KindAnalysis, KindSnapshot:
		return nil
	default:
		return goerr.Wrap(ErrUnknownKind, "unknown kind", goerr.V("kind", k))
	}
}

// InsertOnly reports whether writes to the kind must never replace an existing key
func (k Kind) InsertOnly() bool {
	return k == KindAnalysis
}

// Entry is one stored value with its bookkeeping timestamps
type Entry struct {
	Key       string
	Value     []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Backend is the physical key-value store behind a Repository
type Backend interface {
	// Put upserts value under key. For insert-only kinds, an existing key yields ErrDuplicateKey.
	Put(ctx context.Context, kind Kind, key string, value []byte) error

	// Get returns the entry for key, or nil without error when absent
	Get(ctx context.Context, kind Kind, key string) (*Entry, error)

	// GetAll returns every entry of the kind, most recently updated first
	GetAll(ctx context.Context, kind Kind) ([]*Entry, error)

	// Delete removes key and reports whether it existed
	Delete(ctx context.Context, kind Kind, key string) (bool, error)

	// Close releases the underlying connection
	Close() error
}

// BackendType selects a Backend implementation
type BackendType string

const (
	BackendSQLite       BackendType = "sqlite"
	BackendFirestore    BackendType = "firestore"
	BackendCloudStorage BackendType = "cloudstorage"
)

// Options configures Open
type Options struct {
	Backend BackendType

	// sqlite
	Path string

	// firestore
	Project  string
	Database string

	// cloudstorage
	Bucket string

	// Prefix namespaces collections (firestore) or object paths (cloudstorage)
	Prefix string
}

// Open creates the configured Backend and wraps it into a Repository.
// The caller owns the returned Repository and must Close it.
func Open(ctx context.Context, opts Options) (*Repository, error) {
	var (
		backend Backend
		err     error
	)

	switch opts.Backend {
	case BackendSQLite, "":
		backend, err = NewSQLite(ctx, opts.Path)
	case BackendFirestore:
		backend, err = NewFirestore(ctx, opts.Project, opts.Database, opts.Prefix)
	case BackendCloudStorage:
		backend, err = NewCloudStorage(ctx, opts.Bucket, opts.Prefix)
	default:
		return nil, goerr.New("unsupported backend",
			goerr.V("backend", opts.Backend),
			goerr.V("supported", []BackendType{BackendSQLite, BackendFirestore, BackendCloudStorage}))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open backend", goerr.V("backend", opts.Backend))
	}

	return New(backend), nil
}
