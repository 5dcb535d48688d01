package testutil

import (
	"context"
	"strings"
	"sync"

	"notes-go/internal/notes"
)

// Write is one recorded Create or Update.
type Write struct {
	Op         string // "create" or "update"
	Collection string
	ID         string
	Fields     notes.Fields
}

// CountingStore wraps a DocumentStore and records every write. It can
// also fail writes and subscriptions on demand.
type CountingStore struct {
	notes.DocumentStore

	mu        sync.Mutex
	writes    []Write
	gate      chan struct{}
	failN     int
	failErr   error
	subErr    error
	liveFails map[string][]func(error)
}

// NewCountingStore wraps inner.
func NewCountingStore(inner notes.DocumentStore) *CountingStore {
	return &CountingStore{DocumentStore: inner}
}

// Hold blocks Create and Update until the returned release func is called.
func (s *CountingStore) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.gate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *CountingStore) wait(ctx context.Context) error {
	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FailWrites makes the next n Create or Update calls return err without
// reaching the wrapped store.
func (s *CountingStore) FailWrites(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failN, s.failErr = n, err
}

// FailSubscribe makes the next Subscribe call return err.
func (s *CountingStore) FailSubscribe(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subErr = err
}

// FailLive reports err to every live query on collections ending in
// suffix, as a store does when a listener breaks.
func (s *CountingStore) FailLive(suffix string, err error) {
	s.mu.Lock()
	var fns []func(error)
	for coll, errFns := range s.liveFails {
		if strings.HasSuffix(coll, suffix) {
			fns = append(fns, errFns...)
		}
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}

func (s *CountingStore) takeFailure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failN == 0 {
		return nil
	}
	s.failN--
	return s.failErr
}

// Subscribe records onError for FailLive and delegates.
func (s *CountingStore) Subscribe(ctx context.Context, q notes.Query, onUpdate func([]notes.Document), onError func(error)) (notes.Subscription, error) {
	s.mu.Lock()
	err := s.subErr
	s.subErr = nil
	if err == nil {
		if s.liveFails == nil {
			s.liveFails = make(map[string][]func(error))
		}
		s.liveFails[q.Collection] = append(s.liveFails[q.Collection], onError)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.DocumentStore.Subscribe(ctx, q, onUpdate, onError)
}

func (s *CountingStore) record(w Write) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, w)
}

// Create records successful creates.
func (s *CountingStore) Create(ctx context.Context, collection string, fields notes.Fields) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	if err := s.takeFailure(); err != nil {
		return "", err
	}
	id, err := s.DocumentStore.Create(ctx, collection, fields)
	if err == nil {
		s.record(Write{Op: "create", Collection: collection, ID: id, Fields: fields})
	}
	return id, err
}

// Update records successful updates.
func (s *CountingStore) Update(ctx context.Context, collection, id string, fields notes.Fields) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	if err := s.takeFailure(); err != nil {
		return err
	}
	err := s.DocumentStore.Update(ctx, collection, id, fields)
	if err == nil {
		s.record(Write{Op: "update", Collection: collection, ID: id, Fields: fields})
	}
	return err
}

// Writes returns the recorded writes, optionally limited to collections
// ending in suffix.
func (s *CountingStore) Writes(suffix string) []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Write
	for _, w := range s.writes {
		if suffix == "" || strings.HasSuffix(w.Collection, suffix) {
			out = append(out, w)
		}
	}
	return out
}

// Reset forgets recorded writes.
func (s *CountingStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = nil
}
