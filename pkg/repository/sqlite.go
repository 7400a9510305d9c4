package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	kind       TEXT    NOT NULL,
	key        TEXT    NOT NULL,
	value      BLOB    NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (kind, key)
);

CREATE INDEX IF NOT EXISTS idx_records_kind_updated_at ON records(kind, updated_at);
`

// SQLite is a Backend persisting every collection into one SQLite table
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

var _ Backend = (*SQLite)(nil)

// SQLiteOption is a functional option for SQLite
type SQLiteOption func(*SQLite)

// WithSQLiteClock replaces the clock used for created_at and updated_at
func WithSQLiteClock(now func() time.Time) SQLiteOption {
	return func(s *SQLite) {
		s.now = now
	}
}

// NewSQLite opens (or creates) the database file at path
func NewSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLite, error) {
	if path == "" {
		return nil, goerr.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("path", path))
	}
	// One connection serializes writers; concurrent goroutines queue on the pool.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, goerr.Wrap(err, "failed to set pragma", goerr.V("pragma", pragma))
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to init schema", goerr.V("path", path))
	}

	s := &SQLite{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Put(ctx context.Context, kind Kind, key string, value []byte) error {
	if err := kind.Validate(); err != nil {
		return err
	}

	now := s.now().UnixNano()
	builder := sq.Insert("records").
		Columns("kind", "key", "value", "created_at", "updated_at").
		Values(string(kind), key, value, now, now)

	if kind.InsertOnly() {
		builder = builder.Suffix("ON CONFLICT(kind, key) DO NOTHING")
	} else {
		builder = builder.Suffix("ON CONFLICT(kind, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return goerr.Wrap(err, "failed to build insert query")
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return goerr.Wrap(err, "failed to write record", goerr.V("kind", kind), goerr.V("key", key))
	}

	if kind.InsertOnly() {
		n, err := result.RowsAffected()
		if err != nil {
			return goerr.Wrap(err, "failed to get affected rows")
		}
		if n == 0 {
			return goerr.Wrap(ErrDuplicateKey, "record already exists", goerr.V("kind", kind), goerr.V("key", key))
		}
	}

	return nil
}

func (s *SQLite) Get(ctx context.Context, kind Kind, key string) (*Entry, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	query, args, err := sq.Select("key", "value", "created_at", "updated_at").
		From("records").
		Where(sq.Eq{"kind": string(kind), "key": key}).
		ToSql()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build select query")
	}

	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read record", goerr.V("kind", kind), goerr.V("key", key))
	}
	return entry, nil
}

func (s *SQLite) GetAll(ctx context.Context, kind Kind) ([]*Entry, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	query, args, err := sq.Select("key", "value", "created_at", "updated_at").
		From("records").
		Where(sq.Eq{"kind": string(kind)}).
		OrderBy("updated_at DESC", "key ASC").
		ToSql()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build select query")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query records", goerr.V("kind", kind))
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan record", goerr.V("kind", kind))
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate records", goerr.V("kind", kind))
	}

	return entries, nil
}

func (s *SQLite) Delete(ctx context.Context, kind Kind, key string) (bool, error) {
	if err := kind.Validate(); err != nil {
		return false, err
	}

	query, args, err := sq.Delete("records").
		Where(sq.Eq{"kind": string(kind), "key": key}).
		ToSql()
	if err != nil {
		return false, goerr.Wrap(err, "failed to build delete query")
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete record", goerr.V("kind", kind), goerr.V("key", key))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, goerr.Wrap(err, "failed to get affected rows")
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry              Entry
		createdAt, updated int64
	)
	if err := row.Scan(&entry.Key, &entry.Value, &createdAt, &updated); err != nil {
		return nil, err
	}
	entry.CreatedAt = time.Unix(0, createdAt).UTC()
	entry.UpdatedAt = time.Unix(0, updated).UTC()
	return &entry, nil
}
