package notes

import (
	"context"
	"io"
)

// BlobStore is the hosted blob storage used for pasted images.
type BlobStore interface {
	// Upload stores size bytes from r at path.
	Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error

	// URL returns a durable retrieval URL for path.
	URL(ctx context.Context, path string) (string, error)
}
