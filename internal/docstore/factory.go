package docstore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"notes-go/internal/config"
	"notes-go/internal/notes"
)

// Store is a DocumentStore that owns a connection.
type Store interface {
	notes.DocumentStore
	io.Closer
}

// NewFromConfig creates a Store based on the database config type.
// userID names the sqlite file so several local identities can share a data dir.
func NewFromConfig(ctx context.Context, cfg config.DatabaseConfig, userID string, clock notes.Clock, ids notes.IDGenerator, logger notes.Logger) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(clock, ids), nil
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		name := userID
		if name == "" {
			name = "notes"
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, name+".db"), clock, ids)
	case "firestore":
		return NewFirestoreStore(ctx, cfg.ProjectID, cfg.CredentialsFile, logger)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
