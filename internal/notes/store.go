package notes

import (
	"context"
	"sync"
)

// Fields is the field map of a stored document. Values are strings,
// booleans, numbers, time.Time, nil, nested maps and slices, or the
// ServerTimestamp sentinel on write.
type Fields map[string]any

type sentinel int

// ServerTimestamp asks the store to fill the field with its own clock at
// write time.
const ServerTimestamp sentinel = 1

// Document is a stored record.
type Document struct {
	ID     string
	Fields Fields
}

// Filter is an equality filter. A nil Value matches documents where the
// field is null or missing.
type Filter struct {
	Field string
	Value any
}

// Order sorts query results by a field.
type Order struct {
	Field      string
	Descending bool
}

// Query selects documents from one collection.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    []Order
	Limit      int
}

// Where returns a copy of q with an additional equality filter.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter{}, q.Filters...), Filter{Field: field, Value: value})
	return q
}

// Subscription is a live query or listener registration. Cancel is
// idempotent, and no callback runs after it returns.
type Subscription interface {
	Cancel()
}

type subscriptionFunc struct {
	once sync.Once
	fn   func()
}

func (s *subscriptionFunc) Cancel() { s.once.Do(s.fn) }

// NewSubscription wraps fn so it runs at most once.
func NewSubscription(fn func()) Subscription {
	return &subscriptionFunc{fn: fn}
}

// DocumentStore is the hosted document database.
type DocumentStore interface {
	// Subscribe delivers the full result set of q now and after every
	// change, in change order, until the subscription is cancelled.
	Subscribe(ctx context.Context, q Query, onUpdate func([]Document), onError func(error)) (Subscription, error)

	// Get runs q once.
	Get(ctx context.Context, q Query) ([]Document, error)

	// Create adds a document and returns its assigned ID.
	Create(ctx context.Context, collection string, fields Fields) (string, error)

	// Update merges fields into an existing document. Returns ErrNotFound
	// if the document does not exist.
	Update(ctx context.Context, collection, id string, fields Fields) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// DeleteGuarded removes a document only if every guard query is empty,
	// checked atomically with the delete. Otherwise it returns a *GuardError
	// naming the first guard that matched, which wraps ErrGuardFailed.
	DeleteGuarded(ctx context.Context, collection, id string, guards ...Query) error
}
