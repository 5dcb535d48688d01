package blobstore

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"notes-go/internal/notes"
)

// GCSStore stores images in a Google Cloud Storage bucket, the same
// bucket Firebase Storage serves.
type GCSStore struct {
	client  *storage.Client
	bucket  string
	baseURL string
}

// NewGCSStore connects to GCS. An empty credentialsFile uses application
// default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile, baseURL string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs blob store requires a bucket")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return NewGCSStoreFromClient(client, bucket, baseURL), nil
}

// NewGCSStoreFromClient wraps an existing client.
func NewGCSStoreFromClient(client *storage.Client, bucket, baseURL string) *GCSStore {
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{client: client, bucket: bucket, baseURL: baseURL}
}

// Upload writes the object to the bucket.
func (s *GCSStore) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	key, err := cleanKey(path)
	if err != nil {
		return err
	}

	// Cancelling the context is the only way to abort a storage.Writer.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	written, err := io.Copy(w, r)
	if err != nil {
		cancel()
		w.Close()
		return fmt.Errorf("writing gs://%s/%s: %w", s.bucket, key, err)
	}
	if written != size {
		cancel()
		w.Close()
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("uploading gs://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// URL returns the object under the configured base URL.
func (s *GCSStore) URL(_ context.Context, path string) (string, error) {
	key, err := cleanKey(path)
	if err != nil {
		return "", err
	}
	return joinURL(s.baseURL, key), nil
}

// Close releases the storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

var _ notes.BlobStore = (*GCSStore)(nil)
