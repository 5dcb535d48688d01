package blobstore

import (
	"context"
	"fmt"

	"notes-go/internal/config"
	"notes-go/internal/notes"
)

// NewFromConfig creates a BlobStore based on the blobs config type.
func NewFromConfig(ctx context.Context, cfg config.BlobsConfig) (notes.BlobStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(cfg.BaseURL), nil
	case "filesystem":
		if cfg.Dir == "" {
			return nil, fmt.Errorf("filesystem blob store requires dir to be set")
		}
		return NewFileSystemStore(cfg.Dir, cfg.BaseURL)
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UsePathStyle:    cfg.UsePathStyle,
			BaseURL:         cfg.BaseURL,
		})
	case "gcs":
		return NewGCSStore(ctx, cfg.Bucket, cfg.CredentialsFile, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown blob store type: %s", cfg.Type)
	}
}
