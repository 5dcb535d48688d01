package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"notes-go/internal/auth"
	"notes-go/internal/notes"
	"notes-go/internal/prefs"
	"notes-go/internal/richtext"
)

// RecordingObserver keeps every update a session publishes.
type RecordingObserver struct {
	mu       sync.Mutex
	statuses []notes.Status
	editors  []notes.EditorState
	lists    [][]notes.Note
	trees    [][]notes.TreeNode
}

func (o *RecordingObserver) StatusChanged(s notes.Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, s)
}

func (o *RecordingObserver) FoldersChanged(tree []notes.TreeNode, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.trees = append(o.trees, tree)
}

func (o *RecordingObserver) NotesChanged(list []notes.Note, _ string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lists = append(o.lists, list)
}

func (o *RecordingObserver) EditorChanged(st notes.EditorState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.editors = append(o.editors, st)
}

// Statuses returns the status messages in order.
func (o *RecordingObserver) Statuses() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.statuses))
	for i, s := range o.statuses {
		out[i] = s.Message
	}
	return out
}

// LastStatus returns the most recent status.
func (o *RecordingObserver) LastStatus() notes.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.statuses) == 0 {
		return notes.Status{}
	}
	return o.statuses[len(o.statuses)-1]
}

// NoteLists returns every note list published.
func (o *RecordingObserver) NoteLists() [][]notes.Note {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([][]notes.Note(nil), o.lists...)
}

// TestSessionConfig configures NewTestSession. Only Store is required. A
// Store that is already a *CountingStore is used as is.
type TestSessionConfig struct {
	Store   notes.DocumentStore
	Clock   *FakeClock
	Blobs   *RecordingBlobStore
	Prefs   *notes.Preferences
	Options notes.Options

	// UID signs the session in before it starts. Empty starts signed out.
	UID string

	// NoWait returns without waiting for the session to load.
	NoWait bool
}

// TestSession is a started Session with handles on all its fakes.
type TestSession struct {
	*notes.Session
	t        *testing.T
	Store    *CountingStore
	Blobs    *RecordingBlobStore
	Clock    *FakeClock
	Auth     *auth.StaticAuthenticator
	Widget   *richtext.Buffer
	Prefs    *notes.Preferences
	Observer *RecordingObserver
}

// NewTestSession builds and starts a session, waits until it is ready and
// closes it when the test completes.
func NewTestSession(t *testing.T, cfg TestSessionConfig) *TestSession {
	t.Helper()

	if cfg.Clock == nil {
		cfg.Clock = FixedClock()
	}
	if cfg.Blobs == nil {
		cfg.Blobs = NewRecordingBlobStore()
	}
	if cfg.Prefs == nil {
		cfg.Prefs = notes.NewPreferences(prefs.NewMemoryStore(), prefs.NewMemoryStore())
	}
	var id *notes.Identity
	if cfg.UID != "" {
		id = &notes.Identity{UID: cfg.UID}
	}
	store, ok := cfg.Store.(*CountingStore)
	if !ok {
		store = NewCountingStore(cfg.Store)
	}

	ts := &TestSession{
		t:        t,
		Store:    store,
		Blobs:    cfg.Blobs,
		Clock:    cfg.Clock,
		Auth:     auth.NewStaticAuthenticator(id),
		Widget:   richtext.NewBuffer(),
		Prefs:    cfg.Prefs,
		Observer: &RecordingObserver{},
	}

	s, err := notes.NewSession(notes.Deps{
		Store:    ts.Store,
		Blobs:    ts.Blobs,
		Auth:     ts.Auth,
		Widget:   ts.Widget,
		Prefs:    ts.Prefs,
		Clock:    ts.Clock,
		IDs:      NewPrefixedIDGenerator("img"),
		Observer: ts.Observer,
	}, cfg.Options)
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	ts.Session = s
	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.Close(ctx)
	})

	if !cfg.NoWait {
		ts.Ready()
	}
	return ts
}

func (ts *TestSession) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// Ready waits for the session to finish loading.
func (ts *TestSession) Ready() {
	ts.t.Helper()
	ctx, cancel := ts.ctx()
	defer cancel()
	if err := ts.Session.Ready(ctx); err != nil {
		ts.t.Fatalf("Ready() error = %v", err)
	}
}

// Settle waits for the session to go quiet.
func (ts *TestSession) Settle() {
	ts.t.Helper()
	ctx, cancel := ts.ctx()
	defer cancel()
	if err := ts.Session.Settle(ctx); err != nil {
		ts.t.Fatalf("Settle() error = %v", err)
	}
}

// Advance moves the fake clock and waits for whatever it triggered.
func (ts *TestSession) Advance(d time.Duration) {
	ts.t.Helper()
	ts.Clock.Advance(d)
	ts.Settle()
}

// Type appends text in the editor as the user would.
func (ts *TestSession) Type(text string) {
	ts.t.Helper()
	ts.Widget.AppendText(text)
	ts.Settle()
}

// State returns the session state or fails the test.
func (ts *TestSession) State() notes.State {
	ts.t.Helper()
	ctx, cancel := ts.ctx()
	defer cancel()
	st, err := ts.Session.State(ctx)
	if err != nil {
		ts.t.Fatalf("State() error = %v", err)
	}
	return st
}

// NoteWrites returns the recorded creates and updates of notes.
func (ts *TestSession) NoteWrites() []Write {
	return ts.Store.Writes("/items")
}
