package docstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"notes-go/internal/notes"
)

// FirestoreStore is a notes.DocumentStore backed by Cloud Firestore.
// Collections are slash-separated paths such as "root/<uid>/folders".
//
// Firestore equality on nil matches null values only, not missing fields.
type FirestoreStore struct {
	client *firestore.Client
	logger notes.Logger
}

// NewFirestoreStore connects to projectID. An empty credentialsFile uses
// application default credentials.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string, logger notes.Logger) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project_id required for firestore database")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return NewFirestoreStoreFromClient(client, logger), nil
}

// NewFirestoreStoreFromClient wraps an existing client.
func NewFirestoreStoreFromClient(client *firestore.Client, logger notes.Logger) *FirestoreStore {
	if logger == nil {
		logger = notes.NewNopLogger()
	}
	return &FirestoreStore{client: client, logger: logger}
}

func (s *FirestoreStore) build(q notes.Query) firestore.Query {
	query := s.client.Collection(q.Collection).Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, "==", f.Value)
	}
	for _, o := range q.OrderBy {
		dir := firestore.Asc
		if o.Descending {
			dir = firestore.Desc
		}
		query = query.OrderBy(o.Field, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

func toDocuments(snaps []*firestore.DocumentSnapshot) []notes.Document {
	docs := make([]notes.Document, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, notes.Document{ID: snap.Ref.ID, Fields: notes.Fields(snap.Data())})
	}
	return docs
}

// toFirestore maps the store-neutral timestamp sentinel to Firestore's.
func toFirestore(fields notes.Fields) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v == notes.ServerTimestamp {
			out[k] = firestore.ServerTimestamp
			continue
		}
		out[k] = v
	}
	return out
}

// Subscribe attaches a snapshot listener for q.
func (s *FirestoreStore) Subscribe(ctx context.Context, q notes.Query, onUpdate func([]notes.Document), onError func(error)) (notes.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	it := s.build(q).Snapshots(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled || errors.Is(err, iterator.Done) {
					return
				}
				s.logger.Error("firestore snapshot failed", "collection", q.Collection, "error", err)
				if onError != nil {
					onError(err)
				}
				return
			}
			all, err := snap.Documents.GetAll()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if onError != nil {
					onError(err)
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			onUpdate(toDocuments(all))
		}
	}()

	return notes.NewSubscription(func() {
		cancel()
		it.Stop()
		<-done
	}), nil
}

// Get runs q once.
func (s *FirestoreStore) Get(ctx context.Context, q notes.Query) ([]notes.Document, error) {
	snaps, err := s.build(q).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Collection, err)
	}
	return toDocuments(snaps), nil
}

// Create adds a document with a Firestore-generated ID.
func (s *FirestoreStore) Create(ctx context.Context, collection string, fields notes.Fields) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, toFirestore(fields))
	if err != nil {
		return "", fmt.Errorf("creating document in %s: %w", collection, err)
	}
	return ref.ID, nil
}

// Update merges fields into an existing document.
func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields notes.Fields) error {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range toFirestore(fields) {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("updating %s/%s: %w", collection, id, notes.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("updating %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes a document.
func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	return nil
}

// DeleteGuarded runs the guard queries and the delete in one transaction.
func (s *FirestoreStore) DeleteGuarded(ctx context.Context, collection, id string, guards ...notes.Query) error {
	ref := s.client.Collection(collection).Doc(id)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for i, g := range guards {
			snaps, err := tx.Documents(s.build(g).Limit(1)).GetAll()
			if err != nil {
				return fmt.Errorf("checking guard on %s: %w", g.Collection, err)
			}
			if len(snaps) > 0 {
				return &notes.GuardError{Index: i}
			}
		}
		return tx.Delete(ref)
	})
	var gerr *notes.GuardError
	if errors.As(err, &gerr) {
		return gerr
	}
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	return nil
}

// Close releases the Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
