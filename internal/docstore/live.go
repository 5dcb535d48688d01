package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"notes-go/internal/notes"
)

// backend is the storage half of a local document store. liveStore
// serializes every call, so implementations need no locking of their own.
type backend interface {
	insert(ctx context.Context, collection, id string, fields notes.Fields) error
	// update merges fields into the document or returns notes.ErrNotFound.
	update(ctx context.Context, collection, id string, fields notes.Fields) error
	remove(ctx context.Context, collection, id string) error
	query(ctx context.Context, q notes.Query) ([]notes.Document, error)
	close() error
}

type subscriber struct {
	q        notes.Query
	onUpdate func([]notes.Document)
	onError  func(error)
}

// liveStore implements notes.DocumentStore on top of a backend and fans
// out a fresh snapshot to every subscriber of a collection after each
// write. Snapshots are delivered synchronously while the store lock is
// held, so they arrive in write order and never after Cancel returns.
// Callbacks must not call back into the store.
type liveStore struct {
	mu      sync.Mutex
	b       backend
	clock   notes.Clock
	ids     notes.IDGenerator
	subs    map[int]*subscriber
	nextSub int
	closed  bool
}

func newLiveStore(b backend, clock notes.Clock, ids notes.IDGenerator) *liveStore {
	if clock == nil {
		clock = notes.RealClock{}
	}
	if ids == nil {
		ids = notes.UUIDGenerator{}
	}
	return &liveStore{b: b, clock: clock, ids: ids, subs: make(map[int]*subscriber)}
}

func (s *liveStore) Subscribe(ctx context.Context, q notes.Query, onUpdate func([]notes.Document), onError func(error)) (notes.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}

	s.nextSub++
	key := s.nextSub
	sub := &subscriber{q: q, onUpdate: onUpdate, onError: onError}
	s.subs[key] = sub
	s.deliver(ctx, sub)

	return notes.NewSubscription(func() {
		s.mu.Lock()
		delete(s.subs, key)
		s.mu.Unlock()
	}), nil
}

func (s *liveStore) Get(ctx context.Context, q notes.Query) ([]notes.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errClosed
	}
	return s.b.query(ctx, q)
}

func (s *liveStore) Create(ctx context.Context, collection string, fields notes.Fields) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errClosed
	}

	id := s.ids.New()
	if err := s.b.insert(ctx, collection, id, s.resolve(fields)); err != nil {
		return "", fmt.Errorf("creating document in %s: %w", collection, err)
	}
	s.publish(ctx, collection)
	return id, nil
}

func (s *liveStore) Update(ctx context.Context, collection, id string, fields notes.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	if err := s.b.update(ctx, collection, id, s.resolve(fields)); err != nil {
		return fmt.Errorf("updating %s/%s: %w", collection, id, err)
	}
	s.publish(ctx, collection)
	return nil
}

func (s *liveStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	if err := s.b.remove(ctx, collection, id); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	s.publish(ctx, collection)
	return nil
}

func (s *liveStore) DeleteGuarded(ctx context.Context, collection, id string, guards ...notes.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	for i, g := range guards {
		g.Limit = 1
		docs, err := s.b.query(ctx, g)
		if err != nil {
			return fmt.Errorf("checking guard on %s: %w", g.Collection, err)
		}
		if len(docs) > 0 {
			return &notes.GuardError{Index: i}
		}
	}
	if err := s.b.remove(ctx, collection, id); err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, id, err)
	}
	s.publish(ctx, collection)
	return nil
}

func (s *liveStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.subs = make(map[int]*subscriber)
	return s.b.close()
}

// resolve copies fields, replacing server timestamps with the store clock.
func (s *liveStore) resolve(fields notes.Fields) notes.Fields {
	now := s.clock.Now().UTC()
	out := make(notes.Fields, len(fields))
	for k, v := range fields {
		if v == notes.ServerTimestamp {
			out[k] = now
			continue
		}
		out[k] = copyValue(v)
	}
	return out
}

func (s *liveStore) publish(ctx context.Context, collection string) {
	for _, sub := range s.subs {
		if sub.q.Collection == collection {
			s.deliver(ctx, sub)
		}
	}
}

func (s *liveStore) deliver(ctx context.Context, sub *subscriber) {
	docs, err := s.b.query(ctx, sub.q)
	if err != nil {
		if sub.onError != nil {
			sub.onError(err)
		}
		return
	}
	sub.onUpdate(docs)
}

// copyValue deep-copies the map and slice values documents are built from.
func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = copyValue(e)
		}
		return out
	case notes.Fields:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = copyValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	case time.Time:
		return x.UTC()
	default:
		return v
	}
}

func copyFields(f notes.Fields) notes.Fields {
	out := make(notes.Fields, len(f))
	for k, v := range f {
		out[k] = copyValue(v)
	}
	return out
}
