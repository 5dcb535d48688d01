package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for notes.
type Config struct {
	UserID      string            `toml:"user_id"`
	BaseDir     string            `toml:"base_dir"`
	LogDir      string            `toml:"log_dir"`
	LogLevel    string            `toml:"log_level,omitempty"` // "debug", "info" (default), "warn" or "error"
	Naming      NamingConfig      `toml:"naming"`
	Editor      EditorConfig      `toml:"editor"`
	Database    DatabaseConfig    `toml:"database"`
	Blobs       BlobsConfig       `toml:"blobs"`
	Auth        AuthConfig        `toml:"auth"`
	Preferences PreferencesConfig `toml:"preferences"`
}

// NamingConfig holds the storage roots and the default folder label.
type NamingConfig struct {
	CollectionRoot    string `toml:"collection_root"`
	ImageRoot         string `toml:"image_root"`
	DefaultFolderName string `toml:"default_folder_name"`
}

// EditorConfig holds editor timings and limits.
type EditorConfig struct {
	AutosaveDelayMS int `toml:"autosave_delay_ms"`
	MaxNotes        int `toml:"max_notes"`
}

// DatabaseConfig represents configuration for the document store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "memory", "sqlite" or "firestore"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite

	// Firestore-specific fields (only used when Type == "firestore")
	ProjectID       string `toml:"project_id,omitempty"`
	CredentialsFile string `toml:"credentials_file,omitempty"`
}

// BlobsConfig represents configuration for image storage.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type BlobsConfig struct {
	Type string `toml:"type"` // "memory", "filesystem", "s3" or "gcs"

	// FileSystem-specific fields (only used when Type == "filesystem")
	Dir string `toml:"dir,omitempty"`

	// Public URL prefix for stored objects. Optional for every type but memory.
	BaseURL string `toml:"base_url,omitempty"`

	// Shared by s3 and gcs
	Bucket string `toml:"bucket,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	Region          string `toml:"region,omitempty"`
	Endpoint        string `toml:"endpoint,omitempty"`
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
	UsePathStyle    bool   `toml:"use_path_style,omitempty"`

	// GCS-specific fields (only used when Type == "gcs")
	CredentialsFile string `toml:"credentials_file,omitempty"`
}

// AuthConfig represents configuration for the identity provider.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type AuthConfig struct {
	Type string `toml:"type"` // "static" or "firebase"

	// Static-specific fields (only used when Type == "static")
	UID         string `toml:"uid,omitempty"`
	Email       string `toml:"email,omitempty"`
	DisplayName string `toml:"display_name,omitempty"`

	// Firebase-specific fields (only used when Type == "firebase")
	ProjectID       string `toml:"project_id,omitempty"`
	CredentialsFile string `toml:"credentials_file,omitempty"`
	TokenFile       string `toml:"token_file,omitempty"` // file holding an ID token; NOTES_ID_TOKEN wins
}

// PreferencesConfig represents configuration for UI preference storage.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type PreferencesConfig struct {
	Type string `toml:"type"`          // "file" or "memory"
	Dir  string `toml:"dir,omitempty"` // only used for type=file
}

// NewConfig creates a new Config with the provided values and local defaults:
// sqlite documents, filesystem images and a static identity.
func NewConfig(userID, baseDir string) *Config {
	return &Config{
		UserID:  userID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Naming: NamingConfig{
			CollectionRoot:    "project73-notes",
			ImageRoot:         "project73_notes",
			DefaultFolderName: "Inbox",
		},
		Editor: EditorConfig{
			AutosaveDelayMS: 2500,
			MaxNotes:        400,
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Blobs:    BlobsConfig{Type: "filesystem", Dir: filepath.Join(baseDir, "images")},
		Auth:     AuthConfig{Type: "static", UID: userID},
		Preferences: PreferencesConfig{
			Type: "file",
			Dir:  filepath.Join(baseDir, "prefs"),
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes a new config file. It refuses to overwrite an existing one.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
