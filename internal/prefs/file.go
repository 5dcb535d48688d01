package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// FileStore keeps preferences in a flat TOML table. A missing or
// unreadable file reads as empty; every change rewrites the whole file.
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// NewFileStore opens the store at path, loading whatever it can.
func NewFileStore(path string) *FileStore {
	s := &FileStore{path: path, values: make(map[string]string)}
	var values map[string]string
	if _, err := toml.DecodeFile(path, &values); err == nil {
		for k, v := range values {
			s.values[k] = v
		}
	}
	return s
}

// Path returns the backing file path.
func (s *FileStore) Path() string { return s.path }

// Get returns the stored value for key.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value and rewrites the file.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.values[key]; ok && old == value {
		return nil
	}
	s.values[key] = value
	return s.save()
}

// Delete removes key and rewrites the file.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.save()
}

// Clear drops every value and removes the file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]string)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing preferences: %w", err)
	}
	return nil
}

// save writes to a temp file and renames it over the old one.
func (s *FileStore) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating preferences directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if err := toml.NewEncoder(tmp).Encode(s.values); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	return nil
}
