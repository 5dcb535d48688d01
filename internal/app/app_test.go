package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"notes-go/internal/config"
	"notes-go/internal/notes"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig("u1", dir)
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Blobs = config.BlobsConfig{Type: "memory"}
	cfg.Auth = config.AuthConfig{Type: "static", UID: "u1"}
	cfg.Preferences = config.PreferencesConfig{Type: "memory"}
	return cfg
}

func newTestApp(t *testing.T) *NotesApp {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := NewNotesApp(ctx, newTestConfig(t), "test", nil)
	if err != nil {
		t.Fatalf("NewNotesApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close(context.Background()) })
	return a
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return p
}

func TestNewNotesApp(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	if id := a.Identity(); id == nil || id.UID != "u1" {
		t.Fatalf("Identity() = %+v, want u1", id)
	}
	tree, err := a.Session().Tree(ctx)
	if err != nil {
		t.Fatalf("Tree() error = %v", err)
	}
	if len(tree) != 1 || tree[0].Folder.Name != "Inbox" {
		t.Errorf("Tree() = %+v, want the default Inbox folder", tree)
	}
	if _, err := os.Stat(filepath.Join(a.cfg.LogDir, "notes.log")); err != nil {
		t.Errorf("log file missing: %v", err)
	}
}

func TestNotesApp_CreateNote(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	img := writeFile(t, "cat.png", pngHeader)
	id, err := a.CreateNote(ctx, NoteInput{Text: "Groceries", Images: []string{img}})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if id == "" {
		t.Fatal("CreateNote() returned an empty id")
	}

	n, err := a.Session().LookupNote(ctx, id)
	if err != nil {
		t.Fatalf("LookupNote() error = %v", err)
	}
	if n.Title != "Groceries" {
		t.Errorf("Title = %q, want %q", n.Title, "Groceries")
	}

	var sources []string
	for _, op := range n.RichContent.Ops {
		if im, ok := op.Insert.(notes.ImageInsert); ok {
			sources = append(sources, im.Source)
		}
	}
	if len(sources) != 1 {
		t.Fatalf("images = %v, want 1", sources)
	}
	if !strings.HasPrefix(sources[0], "memory://project73_notes/u1/draft/") {
		t.Errorf("image source = %q, want an uploaded memory:// URL", sources[0])
	}
}

func TestNotesApp_EditNote(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	id, err := a.CreateNote(ctx, NoteInput{Text: "milk"})
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}

	t.Run("append", func(t *testing.T) {
		if err := a.EditNote(ctx, id, NoteInput{Append: "eggs"}); err != nil {
			t.Fatalf("EditNote() error = %v", err)
		}
		n, err := a.Session().LookupNote(ctx, id)
		if err != nil {
			t.Fatalf("LookupNote() error = %v", err)
		}
		if n.Title != "milk" || n.Preview != "eggs" {
			t.Errorf("Title, Preview = %q, %q, want %q, %q", n.Title, n.Preview, "milk", "eggs")
		}
	})

	t.Run("replace", func(t *testing.T) {
		if err := a.EditNote(ctx, id, NoteInput{Text: "bread"}); err != nil {
			t.Fatalf("EditNote() error = %v", err)
		}
		n, err := a.Session().LookupNote(ctx, id)
		if err != nil {
			t.Fatalf("LookupNote() error = %v", err)
		}
		if n.Title != "bread" {
			t.Errorf("Title = %q, want %q", n.Title, "bread")
		}
	})

	t.Run("unknown note", func(t *testing.T) {
		err := a.EditNote(ctx, "missing", NoteInput{Append: "x"})
		if err == nil {
			t.Fatal("EditNote() expected error for unknown note")
		}
	})
}

func TestReadImage(t *testing.T) {
	t.Run("png", func(t *testing.T) {
		src, err := ReadImage(writeFile(t, "a.png", pngHeader))
		if err != nil {
			t.Fatalf("ReadImage() error = %v", err)
		}
		if !strings.HasPrefix(src, "data:image/png;base64,") {
			t.Errorf("ReadImage() = %q, want a png data URL", src)
		}
	})

	t.Run("text file", func(t *testing.T) {
		if _, err := ReadImage(writeFile(t, "a.txt", []byte("hello world"))); err == nil {
			t.Error("ReadImage() expected error for a text file")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ReadImage(filepath.Join(t.TempDir(), "nope.png")); err == nil {
			t.Error("ReadImage() expected error for a missing file")
		}
	})
}

func TestNotesApp_Close(t *testing.T) {
	ctx := context.Background()
	a, err := NewNotesApp(ctx, newTestConfig(t), "test", nil)
	if err != nil {
		t.Fatalf("NewNotesApp() error = %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := a.Session().State(ctx); err == nil {
		t.Error("State() after Close expected error")
	}
}
