package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		UserID:   "user-abc",
		BaseDir:  "/home/user/.local/share/notes",
		LogDir:   "/home/user/.local/share/notes/log",
		LogLevel: "debug",
		Naming: NamingConfig{
			CollectionRoot:    "project73-notes",
			ImageRoot:         "project73_notes",
			DefaultFolderName: "Inbox",
		},
		Editor:   EditorConfig{AutosaveDelayMS: 1000, MaxNotes: 50},
		Database: DatabaseConfig{Type: "firestore", ProjectID: "proj-1", CredentialsFile: "/keys/sa.json"},
		Blobs: BlobsConfig{
			Type:         "s3",
			Bucket:       "images",
			Region:       "us-east-1",
			Endpoint:     "http://localhost:9000",
			UsePathStyle: true,
		},
		Auth:        AuthConfig{Type: "firebase", ProjectID: "proj-1", TokenFile: "/keys/token"},
		Preferences: PreferencesConfig{Type: "memory"},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.UserID != original.UserID {
		t.Errorf("UserID = %q, want %q", got.UserID, original.UserID)
	}
	if got.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", got.LogLevel, "debug")
	}
	if got.Naming != original.Naming {
		t.Errorf("Naming = %+v, want %+v", got.Naming, original.Naming)
	}
	if got.Editor != original.Editor {
		t.Errorf("Editor = %+v, want %+v", got.Editor, original.Editor)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Blobs != original.Blobs {
		t.Errorf("Blobs = %+v, want %+v", got.Blobs, original.Blobs)
	}
	if got.Auth != original.Auth {
		t.Errorf("Auth = %+v, want %+v", got.Auth, original.Auth)
	}
	if got.Preferences.Type != "memory" {
		t.Errorf("Preferences.Type = %q, want %q", got.Preferences.Type, "memory")
	}
}

func TestManager_Read_TaggedUnion(t *testing.T) {
	input := `
user_id = "u1"

[database]
type = "sqlite"
data_dir = "/var/notes/db"

[blobs]
type = "gcs"
bucket = "notes-images"
`
	m := &Manager{}
	got, err := m.Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Database.Type != "sqlite" || got.Database.DataDir != "/var/notes/db" {
		t.Errorf("Database = %+v", got.Database)
	}
	if got.Blobs.Type != "gcs" || got.Blobs.Bucket != "notes-images" {
		t.Errorf("Blobs = %+v", got.Blobs)
	}
	if got.Editor.AutosaveDelayMS != 0 {
		t.Errorf("Editor.AutosaveDelayMS = %d, want 0 when unset", got.Editor.AutosaveDelayMS)
	}
}

func TestManager_Read_Invalid(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("user_id = ")); err == nil {
		t.Fatal("Read() expected error for malformed TOML")
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("user-1", "/data/notes")

	if cfg.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", cfg.UserID, "user-1")
	}
	if cfg.LogDir != "/data/notes/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/notes/log")
	}
	if cfg.Naming.DefaultFolderName != "Inbox" {
		t.Errorf("Naming.DefaultFolderName = %q, want %q", cfg.Naming.DefaultFolderName, "Inbox")
	}
	if cfg.Editor.AutosaveDelayMS != 2500 {
		t.Errorf("Editor.AutosaveDelayMS = %d, want 2500", cfg.Editor.AutosaveDelayMS)
	}
	if cfg.Editor.MaxNotes != 400 {
		t.Errorf("Editor.MaxNotes = %d, want 400", cfg.Editor.MaxNotes)
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/data/notes/db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Blobs.Type != "filesystem" || cfg.Blobs.Dir != "/data/notes/images" {
		t.Errorf("Blobs = %+v", cfg.Blobs)
	}
	if cfg.Auth.Type != "static" || cfg.Auth.UID != "user-1" {
		t.Errorf("Auth = %+v", cfg.Auth)
	}
	if cfg.Preferences.Dir != "/data/notes/prefs" {
		t.Errorf("Preferences.Dir = %q, want %q", cfg.Preferences.Dir, "/data/notes/prefs")
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "notes.toml")
		cfg := NewConfig("u1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "notes.toml")
		cfg := NewConfig("u1", dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "notes.toml")
		cfg := NewConfig("read-test", dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.UserID != "read-test" {
			t.Errorf("UserID = %q, want %q", got.UserID, "read-test")
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/notes.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
