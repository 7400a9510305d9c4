package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore is a Backend storing each kind as a collection and each key as a document
type Firestore struct {
	client *firestore.Client
	prefix string
}

var _ Backend = (*Firestore)(nil)

type firestoreDoc struct {
	Value     []byte    `firestore:"value"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// NewFirestore creates a new Firestore backend
func NewFirestore(ctx context.Context, projectID, databaseID, prefix string) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.New("project is required")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project", projectID),
			goerr.V("database", databaseID))
	}

	return &Firestore{client: client, prefix: prefix}, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) collection(kind Kind) *firestore.CollectionRef {
	return f.client.Collection(f.prefix + string(kind))
}

func (f *Firestore) Put(ctx context.Context, kind Kind, key string, value []byte) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	doc := f.collection(kind).Doc(escapeKey(key))
	now := time.Now().UTC()

	if kind.InsertOnly() {
		_, err := doc.Create(ctx, &firestoreDoc{Value: value, CreatedAt: now, UpdatedAt: now})
		if status.Code(err) == codes.AlreadyExists {
			return goerr.Wrap(ErrDuplicateKey, "record already exists", goerr.V("kind", kind), goerr.V("key", key))
		}
		if err != nil {
			return goerr.Wrap(err, "failed to create document", goerr.V("kind", kind), goerr.V("key", key))
		}
		return nil
	}

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		createdAt := now
		snap, err := tx.Get(doc)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return err
		default:
			var existing firestoreDoc
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			createdAt = existing.CreatedAt
		}
		return tx.Set(doc, &firestoreDoc{Value: value, CreatedAt: createdAt, UpdatedAt: now})
	})
	if err != nil {
		return goerr.Wrap(err, "failed to upsert document", goerr.V("kind", kind), goerr.V("key", key))
	}
	return nil
}

func (f *Firestore) Get(ctx context.Context, kind Kind, key string) (*Entry, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	snap, err := f.collection(kind).Doc(escapeKey(key)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get document", goerr.V("kind", kind), goerr.V("key", key))
	}

	return docToEntry(snap)
}

func (f *Firestore) GetAll(ctx context.Context, kind Kind) ([]*Entry, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	iter := f.collection(kind).OrderBy("updated_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var entries []*Entry
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents", goerr.V("kind", kind))
		}

		entry, err := docToEntry(snap)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (f *Firestore) Delete(ctx context.Context, kind Kind, key string) (bool, error) {
	if err := kind.Validate(); err != nil {
		return false, err
	}

	_, err := f.collection(kind).Doc(escapeKey(key)).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete document", goerr.V("kind", kind), goerr.V("key", key))
	}
	return true, nil
}

func docToEntry(snap *firestore.DocumentSnapshot) (*Entry, error) {
	var doc firestoreDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode document", goerr.V("id", snap.Ref.ID))
	}
	key, err := unescapeKey(snap.Ref.ID)
	if err != nil {
		return nil, err
	}
	return &Entry{
		Key:       key,
		Value:     doc.Value,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}
