package blobstore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"notes-go/internal/notes"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStore is an in-memory implementation of notes.BlobStore.
// It is safe for concurrent use.
type MemoryStore struct {
	baseURL string
	objects map[string]memoryObject
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty store. URLs are baseURL joined with the
// object path, or memory://<path> when baseURL is empty.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://"
	}
	return &MemoryStore{baseURL: baseURL, objects: make(map[string]memoryObject)}
}

// Upload keeps the object in memory.
func (m *MemoryStore) Upload(_ context.Context, path string, r io.Reader, size int64, contentType string) error {
	key, err := cleanKey(path)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: data, contentType: contentType}
	return nil
}

// URL returns the address of a stored object under the base URL.
func (m *MemoryStore) URL(_ context.Context, path string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[path]; !ok {
		return "", fmt.Errorf("object %s: %w", path, notes.ErrNotFound)
	}
	if m.baseURL == "memory://" {
		return m.baseURL + path, nil
	}
	return joinURL(m.baseURL, path), nil
}

// Get returns a stored object and its content type.
func (m *MemoryStore) Get(path string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	if !ok {
		return nil, "", fmt.Errorf("object %s: %w", path, notes.ErrNotFound)
	}
	return append([]byte(nil), obj.data...), obj.contentType, nil
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ notes.BlobStore = (*MemoryStore)(nil)
