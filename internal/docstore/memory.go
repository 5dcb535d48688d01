package docstore

import (
	"context"

	"notes-go/internal/notes"
)

// MemoryStore is an in-process document store. Intended for tests and
// throwaway sessions.
type MemoryStore struct {
	*liveStore
	mem *memoryBackend
}

// NewMemoryStore creates an empty MemoryStore. clock and ids may be nil.
func NewMemoryStore(clock notes.Clock, ids notes.IDGenerator) *MemoryStore {
	mem := &memoryBackend{collections: make(map[string]map[string]notes.Fields)}
	return &MemoryStore{liveStore: newLiveStore(mem, clock, ids), mem: mem}
}

// Put writes a document with a caller-chosen ID, bypassing timestamp
// resolution. It does not notify subscribers. Use it to seed fixtures.
func (m *MemoryStore) Put(collection, id string, fields notes.Fields) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_ = m.mem.insert(context.Background(), collection, id, copyFields(fields))
}

// Count returns the number of documents in a collection.
func (m *MemoryStore) Count(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mem.collections[collection])
}

// memoryBackend is guarded by liveStore.mu.
type memoryBackend struct {
	collections map[string]map[string]notes.Fields
}

func (b *memoryBackend) insert(_ context.Context, collection, id string, fields notes.Fields) error {
	docs, ok := b.collections[collection]
	if !ok {
		docs = make(map[string]notes.Fields)
		b.collections[collection] = docs
	}
	docs[id] = fields
	return nil
}

func (b *memoryBackend) update(_ context.Context, collection, id string, fields notes.Fields) error {
	doc, ok := b.collections[collection][id]
	if !ok {
		return notes.ErrNotFound
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (b *memoryBackend) remove(_ context.Context, collection, id string) error {
	delete(b.collections[collection], id)
	return nil
}

func (b *memoryBackend) query(_ context.Context, q notes.Query) ([]notes.Document, error) {
	docs := make([]notes.Document, 0, len(b.collections[q.Collection]))
	for id, fields := range b.collections[q.Collection] {
		docs = append(docs, notes.Document{ID: id, Fields: copyFields(fields)})
	}
	return applyQuery(docs, q), nil
}

func (b *memoryBackend) close() error { return nil }
