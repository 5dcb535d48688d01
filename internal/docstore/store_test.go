package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"notes-go/internal/config"
	"notes-go/internal/notes"
	"notes-go/internal/testutil"
)

type storeFactory func(t *testing.T, clock notes.Clock) Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, clock notes.Clock) Store {
			return NewMemoryStore(clock, testutil.NewStubIDGenerator())
		},
		"sqlite": func(t *testing.T, clock notes.Clock) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "notes.db"), clock, testutil.NewStubIDGenerator())
			if err != nil {
				t.Fatalf("NewSQLiteStore() error = %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

// recorder collects snapshots delivered to a subscription.
type recorder struct {
	mu    sync.Mutex
	snaps [][]notes.Document
	errs  []error
}

func (r *recorder) update(docs []notes.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, docs)
}

func (r *recorder) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) last() []notes.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snaps) == 0 {
		return nil
	}
	return r.snaps[len(r.snaps)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func docIDs(docs []notes.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func equalIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

const coll = "root/u1/items"

func TestStore_CreateAndGet(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := testutil.NewFakeClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
			s := newStore(t, clock)

			id, err := s.Create(ctx, coll, notes.Fields{
				"title":       "Shopping",
				"folderId":    "f1",
				"position":    int64(7),
				"isDefault":   true,
				"parentId":    nil,
				"createdAt":   notes.ServerTimestamp,
				"richContent": map[string]any{"ops": []any{map[string]any{"insert": "hi\n"}}},
			})
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if id != "id-1" {
				t.Errorf("Create() id = %q, want %q", id, "id-1")
			}

			docs, err := s.Get(ctx, notes.Query{Collection: coll})
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if len(docs) != 1 {
				t.Fatalf("Get() returned %d docs, want 1", len(docs))
			}
			f := docs[0].Fields
			if f["title"] != "Shopping" {
				t.Errorf("title = %v, want Shopping", f["title"])
			}
			if f["isDefault"] != true {
				t.Errorf("isDefault = %v, want true", f["isDefault"])
			}
			if f["position"] != int64(7) {
				t.Errorf("position = %v (%T), want int64 7", f["position"], f["position"])
			}
			created, ok := f["createdAt"].(time.Time)
			if !ok || !created.Equal(clock.Now()) {
				t.Errorf("createdAt = %v, want resolved server timestamp %v", f["createdAt"], clock.Now())
			}
			rich, err := notes.ContentFromValue(f["richContent"])
			if err != nil {
				t.Fatalf("ContentFromValue() error = %v", err)
			}
			if rich.PlainText() != "hi\n" {
				t.Errorf("richContent text = %q, want %q", rich.PlainText(), "hi\n")
			}
		})
	}
}

func TestStore_QueryFiltersOrderLimit(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := testutil.NewFakeClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC))
			s := newStore(t, clock)

			create := func(folder any) string {
				id, err := s.Create(ctx, coll, notes.Fields{"folderId": folder, "updatedAt": notes.ServerTimestamp})
				if err != nil {
					t.Fatalf("Create() error = %v", err)
				}
				clock.Advance(time.Second)
				return id
			}
			a := create("f1")
			b := create("f1")
			create("f2")
			legacy := create(nil)
			if _, err := s.Create(ctx, coll, notes.Fields{"title": "no folder field"}); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			docs, err := s.Get(ctx, notes.Query{
				Collection: coll,
				Filters:    []notes.Filter{{Field: "folderId", Value: "f1"}},
				OrderBy:    []notes.Order{{Field: "updatedAt", Descending: true}},
			})
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got, want := docIDs(docs), []string{b, a}; !equalIDs(got, want) {
				t.Errorf("ordered ids = %v, want %v", got, want)
			}

			docs, err = s.Get(ctx, notes.Query{Collection: coll, Limit: 1}.Where("folderId", "f1"))
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if len(docs) != 1 {
				t.Errorf("limited query returned %d docs, want 1", len(docs))
			}

			docs, err = s.Get(ctx, notes.Query{Collection: coll}.Where("folderId", nil))
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if len(docs) != 2 || docs[0].ID != legacy {
				t.Errorf("nil filter ids = %v, want %s and the document without the field", docIDs(docs), legacy)
			}

			other, err := s.Get(ctx, notes.Query{Collection: "root/u2/items"})
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if len(other) != 0 {
				t.Errorf("other collection returned %d docs, want 0", len(other))
			}
		})
	}
}

func TestStore_Update(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, testutil.FixedClock())

			id, err := s.Create(ctx, coll, notes.Fields{"title": "a", "preview": "p"})
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if err := s.Update(ctx, coll, id, notes.Fields{"title": "b"}); err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			docs, _ := s.Get(ctx, notes.Query{Collection: coll})
			if docs[0].Fields["title"] != "b" || docs[0].Fields["preview"] != "p" {
				t.Errorf("fields after merge = %v", docs[0].Fields)
			}

			err = s.Update(ctx, coll, "missing", notes.Fields{"title": "x"})
			if !errors.Is(err, notes.ErrNotFound) {
				t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStore_DeleteGuarded(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, testutil.FixedClock())
			folders := "root/u1/folders"

			folder, _ := s.Create(ctx, folders, notes.Fields{"name": "Work"})
			note, _ := s.Create(ctx, coll, notes.Fields{"folderId": folder})
			guard := notes.Query{Collection: coll}.Where("folderId", folder)

			err := s.DeleteGuarded(ctx, folders, folder, guard)
			if !errors.Is(err, notes.ErrGuardFailed) {
				t.Fatalf("DeleteGuarded() error = %v, want ErrGuardFailed", err)
			}
			docs, _ := s.Get(ctx, notes.Query{Collection: folders})
			if len(docs) != 1 {
				t.Fatalf("folder count after failed guard = %d, want 1", len(docs))
			}

			var gerr *notes.GuardError
			if !errors.As(err, &gerr) || gerr.Index != 0 {
				t.Fatalf("DeleteGuarded() error = %v, want guard 0", err)
			}

			child, _ := s.Create(ctx, folders, notes.Fields{"name": "Sub", "parentId": folder})
			childGuard := notes.Query{Collection: folders}.Where("parentId", folder)
			if err := s.Delete(ctx, coll, note); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			err = s.DeleteGuarded(ctx, folders, folder, guard, childGuard)
			if !errors.As(err, &gerr) || gerr.Index != 1 {
				t.Fatalf("DeleteGuarded() error = %v, want guard 1", err)
			}
			if err := s.Delete(ctx, folders, child); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
			if err := s.DeleteGuarded(ctx, folders, folder, guard, childGuard); err != nil {
				t.Fatalf("DeleteGuarded() error = %v", err)
			}
			docs, _ = s.Get(ctx, notes.Query{Collection: folders})
			if len(docs) != 0 {
				t.Errorf("folder count after delete = %d, want 0", len(docs))
			}

			if err := s.Delete(ctx, coll, "missing"); err != nil {
				t.Errorf("Delete(missing) error = %v, want nil", err)
			}
		})
	}
}

func TestStore_Subscribe(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, testutil.FixedClock())
			rec := &recorder{}

			sub, err := s.Subscribe(ctx, notes.Query{Collection: coll}.Where("folderId", "f1"), rec.update, rec.fail)
			if err != nil {
				t.Fatalf("Subscribe() error = %v", err)
			}
			if rec.count() != 1 || len(rec.last()) != 0 {
				t.Fatalf("initial snapshot count = %d, want one empty snapshot", rec.count())
			}

			id, _ := s.Create(ctx, coll, notes.Fields{"folderId": "f1"})
			if got := docIDs(rec.last()); !equalIDs(got, []string{id}) {
				t.Errorf("snapshot after create = %v, want [%s]", got, id)
			}

			if _, err := s.Create(ctx, "root/u1/folders", notes.Fields{"name": "x"}); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if rec.count() != 2 {
				t.Errorf("snapshot count after write elsewhere = %d, want 2", rec.count())
			}

			sub.Cancel()
			sub.Cancel()
			if _, err := s.Create(ctx, coll, notes.Fields{"folderId": "f1"}); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if rec.count() != 2 {
				t.Errorf("snapshot count after Cancel = %d, want 2", rec.count())
			}
			if len(rec.errs) != 0 {
				t.Errorf("unexpected subscription errors: %v", rec.errs)
			}
		})
	}
}

func TestStore_Closed(t *testing.T) {
	s := NewMemoryStore(nil, nil)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := s.Create(context.Background(), coll, notes.Fields{}); err == nil {
		t.Error("Create() after Close expected error")
	}
}

func TestBuildQuery_RejectsBadField(t *testing.T) {
	_, _, err := buildQuery(notes.Query{Collection: coll}.Where("title') OR 1=1 --", "x"))
	if err == nil {
		t.Error("buildQuery() expected error for invalid field name")
	}
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := NewFromConfig(ctx, config.DatabaseConfig{Type: "memory"}, "u1", nil, nil, nil)
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		s.Close()
	})

	t.Run("sqlite", func(t *testing.T) {
		dir := t.TempDir()
		s, err := NewFromConfig(ctx, config.DatabaseConfig{Type: "sqlite", DataDir: dir}, "u1", nil, nil, nil)
		if err != nil {
			t.Fatalf("NewFromConfig() error = %v", err)
		}
		defer s.Close()
		if got := s.(*SQLiteStore).Path(); got != filepath.Join(dir, "u1.db") {
			t.Errorf("Path() = %q, want %q", got, filepath.Join(dir, "u1.db"))
		}
	})

	t.Run("sqlite without data_dir", func(t *testing.T) {
		if _, err := NewFromConfig(ctx, config.DatabaseConfig{Type: "sqlite"}, "u1", nil, nil, nil); err == nil {
			t.Error("NewFromConfig() expected error for missing data_dir")
		}
	})

	t.Run("firestore without project", func(t *testing.T) {
		if _, err := NewFromConfig(ctx, config.DatabaseConfig{Type: "firestore"}, "u1", nil, nil, nil); err == nil {
			t.Error("NewFromConfig() expected error for missing project_id")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewFromConfig(ctx, config.DatabaseConfig{Type: "postgres"}, "u1", nil, nil, nil); err == nil {
			t.Error("NewFromConfig() expected error for unknown type")
		}
	})
}
