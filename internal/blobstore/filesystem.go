package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"notes-go/internal/notes"
)

// FileSystemStore keeps images as files below a root directory, one file
// per object path:
//
//	<root>/
//	  <imageRoot>/<uid>/<noteId|draft>/<millis>-<id>.<ext>
type FileSystemStore struct {
	root    string
	baseURL string
}

// NewFileSystemStore creates a store rooted at root. URLs are baseURL
// joined with the object path, or file:// URLs when baseURL is empty.
func NewFileSystemStore(root, baseURL string) (*FileSystemStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileSystemStore{root: abs, baseURL: baseURL}, nil
}

// Root returns the absolute root directory.
func (s *FileSystemStore) Root() string {
	return s.root
}

func (s *FileSystemStore) filePath(path string) (string, error) {
	key, err := cleanKey(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Upload writes the object atomically (temp file + rename).
func (s *FileSystemStore) Upload(ctx context.Context, path string, r io.Reader, size int64, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	destPath, err := s.filePath(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// URL returns the object under the base URL, or as a file:// URL without one.
func (s *FileSystemStore) URL(_ context.Context, path string) (string, error) {
	p, err := s.filePath(path)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("object %s: %w", path, notes.ErrNotFound)
		}
		return "", fmt.Errorf("checking object %s: %w", path, err)
	}
	if s.baseURL != "" {
		return joinURL(s.baseURL, path), nil
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
	return u.String(), nil
}

var _ notes.BlobStore = (*FileSystemStore)(nil)
