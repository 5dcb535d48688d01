package blobstore

import (
	"context"
	"testing"

	"notes-go/internal/config"
)

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.BlobsConfig
		wantErr bool
	}{
		{
			name: "memory",
			cfg:  config.BlobsConfig{Type: "memory"},
		},
		{
			name: "filesystem",
			cfg:  config.BlobsConfig{Type: "filesystem", Dir: t.TempDir()},
		},
		{
			name:    "filesystem without dir",
			cfg:     config.BlobsConfig{Type: "filesystem"},
			wantErr: true,
		},
		{
			name:    "s3 without bucket",
			cfg:     config.BlobsConfig{Type: "s3", Region: "us-east-1"},
			wantErr: true,
		},
		{
			name:    "gcs without bucket",
			cfg:     config.BlobsConfig{Type: "gcs"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cfg:     config.BlobsConfig{Type: "ftp"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewFromConfig(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got == nil {
				t.Error("NewFromConfig() returned nil store")
			}
		})
	}
}
