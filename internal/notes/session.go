package notes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Options are the fixed names and limits of a session.
type Options struct {
	CollectionRoot    string
	ImageRoot         string
	DefaultFolderName string
	MaxNotes          int
	AutosaveDelay     time.Duration
}

// DefaultOptions returns the standard names and limits.
func DefaultOptions() Options {
	return Options{
		CollectionRoot:    "project73-notes",
		ImageRoot:         "project73_notes",
		DefaultFolderName: "Inbox",
		MaxNotes:          400,
		AutosaveDelay:     2500 * time.Millisecond,
	}
}

// Failed loads are retried with a doubling delay.
const (
	minRetryDelay = 2 * time.Second
	maxRetryDelay = time.Minute
)

// Deps are the collaborators a Session is built from. Clock, IDs, Logger
// and Observer are optional.
type Deps struct {
	Store    DocumentStore
	Blobs    BlobStore
	Auth     Authenticator
	Widget   EditorWidget
	Prefs    *Preferences
	Clock    Clock
	IDs      IDGenerator
	Logger   Logger
	Observer Observer
}

// Session owns the folder tree, note list and editor for whoever is
// signed in. All of its state is changed on a single event goroutine;
// collaborator callbacks, timers and public methods post work to it.
type Session struct {
	store    DocumentStore
	blobs    BlobStore
	auth     Authenticator
	widget   EditorWidget
	prefs    *Preferences
	clock    Clock
	logger   Logger
	observer Observer
	opts     Options

	images   *ImagePipeline
	autosave *Debouncer
	q        *eventQueue
	ctx      context.Context
	cancel   context.CancelFunc
	suppress atomic.Bool

	startOnce  sync.Once
	closeOnce  sync.Once
	started    atomic.Bool
	authSub    Subscription
	removeHook func()

	// Owned by the event goroutine.
	identity     *Identity
	authSeen     bool
	folders      FolderTree
	notes        NoteList
	editor       editorState
	folderSub    *liveQuery
	noteSub      *liveQuery
	provisioning bool
	migrated     map[string]bool
	loadErr      error
	retry        Timer
	retrySeq     uint64
	retryDelay   time.Duration
	saving       bool
	jobs         []*saveJob
	status       Status
}

// liveQuery is one subscription. Callbacks that arrive after it was
// cancelled are dropped on the event goroutine.
type liveQuery struct {
	name   string
	sub    Subscription
	active bool
}

// NewSession creates a Session. Call Start to begin listening for the
// signed-in identity.
func NewSession(deps Deps, opts Options) (*Session, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("document store is required")
	case deps.Blobs == nil:
		return nil, fmt.Errorf("blob store is required")
	case deps.Auth == nil:
		return nil, fmt.Errorf("authenticator is required")
	case deps.Widget == nil:
		return nil, fmt.Errorf("editor widget is required")
	case deps.Prefs == nil:
		return nil, fmt.Errorf("preferences are required")
	}
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.IDs == nil {
		deps.IDs = UUIDGenerator{}
	}
	if deps.Logger == nil {
		deps.Logger = NewNopLogger()
	}
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}

	defaults := DefaultOptions()
	if opts.CollectionRoot == "" {
		opts.CollectionRoot = defaults.CollectionRoot
	}
	if opts.ImageRoot == "" {
		opts.ImageRoot = defaults.ImageRoot
	}
	if opts.DefaultFolderName == "" {
		opts.DefaultFolderName = defaults.DefaultFolderName
	}
	if opts.MaxNotes <= 0 {
		opts.MaxNotes = defaults.MaxNotes
	}
	if opts.AutosaveDelay <= 0 {
		opts.AutosaveDelay = defaults.AutosaveDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		store:    deps.Store,
		blobs:    deps.Blobs,
		auth:     deps.Auth,
		widget:   deps.Widget,
		prefs:    deps.Prefs,
		clock:    deps.Clock,
		logger:   deps.Logger,
		observer: deps.Observer,
		opts:     opts,
		images:   NewImagePipeline(deps.Blobs, deps.Clock, deps.IDs, opts.ImageRoot, deps.Logger),
		q:        newEventQueue(),
		ctx:      ctx,
		cancel:   cancel,
		migrated: make(map[string]bool),
	}
	s.autosave = NewDebouncer(deps.Clock, opts.AutosaveDelay, func(seq uint64) {
		s.post(func() { s.onAutosave(seq) })
	})
	return s, nil
}

// Start runs the event goroutine and subscribes to identity changes.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.started.Store(true)
		go s.q.run()
		s.removeHook = s.widget.OnChange(s.onWidgetChange)
		s.authSub = s.auth.OnIdentityChange(func(id *Identity) {
			s.post(func() { s.handleIdentity(id) })
		})
	})
}

// Close flushes unsaved edits, waits for in-flight work and tears the
// session down.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		if !s.started.Load() {
			s.cancel()
			s.q.close()
			return
		}
		if s.authSub != nil {
			s.authSub.Cancel()
		}
		if s.removeHook != nil {
			s.removeHook()
		}

		err = s.call(ctx, func() error {
			s.flushEditor(false)
			return nil
		})
		if serr := s.Settle(ctx); err == nil {
			err = serr
		}
		if cerr := s.call(ctx, func() error {
			s.cancelLive(&s.noteSub)
			s.cancelLive(&s.folderSub)
			s.cancelAutosave()
			s.cancelRetry()
			return nil
		}); err == nil {
			err = cerr
		}
		s.cancel()
		s.q.close()
	})
	return err
}

func (s *Session) post(fn func()) {
	if !s.q.post(fn) {
		s.logger.Debug("event dropped after close")
	}
}

// call runs fn on the event goroutine and waits for its result.
func (s *Session) call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if !s.q.post(func() { done <- fn() }) {
		return ErrSessionClosed
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs fn off the event goroutine and counts it as in-flight work.
func (s *Session) spawn(fn func()) {
	s.q.begin()
	go func() {
		defer s.q.end()
		fn()
	}()
}

// Settle waits until no events are queued and no background work is in
// flight. Stores that deliver snapshots asynchronously may still have
// updates on the way.
func (s *Session) Settle(ctx context.Context) error {
	for {
		if s.q.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

// Ready waits until the identity is known and, when signed in, the
// active folder's notes have loaded. A failed load returns an error
// wrapping ErrLoadFailed; the session keeps retrying in the background.
func (s *Session) Ready(ctx context.Context) error {
	for {
		if err := s.Settle(ctx); err != nil {
			return err
		}
		var ready bool
		if err := s.call(ctx, func() error {
			ready = s.authSeen && (s.identity == nil || s.notes.loaded)
			if !ready && s.loadErr != nil {
				return fmt.Errorf("%w: %w", ErrLoadFailed, s.loadErr)
			}
			return nil
		}); err != nil {
			return err
		}
		if ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (s *Session) handleIdentity(id *Identity) {
	s.authSeen = true
	if sameIdentity(s.identity, id) {
		if id != nil {
			s.identity = id
		}
		return
	}

	if s.identity != nil {
		s.logger.Info("identity changed", "from", s.identity.UID)
	}
	s.closeEditor(true)
	s.cancelLive(&s.noteSub)
	s.cancelLive(&s.folderSub)
	s.cancelRetry()
	s.folders = FolderTree{}
	s.notes = NoteList{}
	s.provisioning = false
	s.identity = id

	if id == nil {
		s.setStatus("Signed out.", ToneNeutral)
		s.emitAll()
		return
	}

	s.logger.Info("signed in", "uid", id.UID)
	s.folders.pendingID = s.prefs.ActiveFolder()
	s.notes.pendingID = s.prefs.ActiveNote()
	s.subscribeFolders()
	s.emitAll()
}

func (s *Session) subscribeFolders() {
	lq, err := s.subscribe("folders", Query{Collection: s.foldersPath(s.identity.UID)}, s.onFolders)
	if err != nil {
		s.failLoad(err, func() {
			if s.folderSub == nil {
				s.subscribeFolders()
			}
		})
		return
	}
	s.folderSub = lq
}

// failLoad records why the session has not loaded. When again is set it
// runs on the event goroutine after a backoff, unless the identity
// changed or the session closed in the meantime.
func (s *Session) failLoad(err error, again func()) {
	s.loadErr = err
	if again == nil || s.identity == nil {
		return
	}
	if s.retry != nil {
		s.retry.Stop()
	}
	s.retryDelay = min(max(2*s.retryDelay, minRetryDelay), maxRetryDelay)
	s.retrySeq++
	seq, uid, delay := s.retrySeq, s.identity.UID, s.retryDelay
	s.logger.Warn("load failed, retrying", "uid", uid, "in", delay, "error", err)
	s.retry = s.clock.AfterFunc(delay, func() {
		s.post(func() {
			if seq != s.retrySeq || s.identity == nil || s.identity.UID != uid {
				return
			}
			s.retry = nil
			again()
		})
	})
}

// loaded clears the recorded load failure and resets the backoff.
func (s *Session) loaded() {
	s.loadErr = nil
	s.retryDelay = 0
}

func (s *Session) cancelRetry() {
	if s.retry != nil {
		s.retry.Stop()
		s.retry = nil
	}
	s.retrySeq++
	s.loaded()
}

func (s *Session) onFolders(docs []Document) {
	uid := s.identity.UID
	if len(docs) == 0 {
		s.folders.replace(nil)
		s.ensureDefaultFolder()
		s.emitFolders()
		return
	}

	folders := make([]Folder, 0, len(docs))
	for _, d := range docs {
		folders = append(folders, folderFromDocument(d))
	}
	s.folders.replace(folders)

	if def := s.folders.defaultID; def != "" && !s.migrated[uid] {
		s.migrated[uid] = true
		s.migrateLegacyNotes(uid, def)
	}

	next := s.folders.resolve()
	switch {
	case s.folders.activeID == "":
		// First resolution keeps the restored note selection.
		s.activateFolder(next)
	case next != s.folders.activeID:
		s.switchFolder(next)
	case s.noteSub == nil:
		s.activateFolder(next)
	}
	s.emitFolders()
}

// subscribe opens a live query whose updates run handle on the event
// goroutine for as long as the query stays active.
func (s *Session) subscribe(name string, q Query, handle func([]Document)) (*liveQuery, error) {
	lq := &liveQuery{name: name, active: true}
	sub, err := s.store.Subscribe(s.ctx, q,
		func(docs []Document) {
			s.post(func() {
				if !lq.active {
					s.logger.Debug("stale snapshot ignored", "query", name)
					return
				}
				handle(docs)
			})
		},
		func(err error) {
			s.post(func() {
				if !lq.active {
					return
				}
				s.logger.Error("live query failed", "query", name, "error", err)
				s.setStatus("Live updates stopped. Reload to retry.", ToneError)
				s.failLoad(fmt.Errorf("live %s query: %w", name, err), nil)
			})
		},
	)
	if err != nil {
		s.logger.Error("subscribing failed", "query", name, "error", err)
		s.setStatus("Could not load "+name+".", ToneError)
		return nil, fmt.Errorf("subscribing to %s: %w", name, err)
	}
	lq.sub = sub
	return lq, nil
}

func (s *Session) cancelLive(slot **liveQuery) {
	lq := *slot
	if lq == nil {
		return
	}
	lq.active = false
	if lq.sub != nil {
		lq.sub.Cancel()
	}
	*slot = nil
}

func (s *Session) setStatus(msg string, tone Tone) {
	s.status = Status{Message: msg, Tone: tone}
	s.observer.StatusChanged(s.status)
}

func (s *Session) postStatus(msg string, tone Tone) {
	s.post(func() { s.setStatus(msg, tone) })
}

// report shows user-facing errors in the status line.
func (s *Session) report(err error) {
	var verr *ValidationError
	var derr *FolderDeleteError
	switch {
	case errors.As(err, &verr):
		s.postStatus(verr.Message, ToneError)
	case errors.As(err, &derr):
		s.postStatus(derr.Error(), ToneError)
	}
}

func (s *Session) savePref(set func(string) error, value string) {
	if err := set(value); err != nil {
		s.logger.Warn("saving preference failed", "error", err)
	}
}

func (s *Session) emitFolders() {
	s.observer.FoldersChanged(s.folders.tree(), s.folders.activeID)
}

func (s *Session) emitNotes() {
	open := ""
	if s.editor.bind != nil {
		open = s.editor.bind.noteID
	}
	s.observer.NotesChanged(s.notes.snapshot(), open)
}

func (s *Session) emitEditor() {
	s.observer.EditorChanged(s.editorState())
}

func (s *Session) emitAll() {
	s.emitFolders()
	s.emitNotes()
	s.emitEditor()
}

// State returns a copy of the session state.
func (s *Session) State(ctx context.Context) (State, error) {
	var st State
	err := s.call(ctx, func() error {
		if s.identity != nil {
			id := *s.identity
			st.Identity = &id
		}
		st.Folders = append([]Folder(nil), s.folders.folders...)
		st.DefaultFolder = s.folders.defaultID
		st.ActiveFolder = s.folders.activeID
		st.Notes = s.notes.snapshot()
		st.NotesLoaded = s.notes.loaded
		st.Editor = s.editorState()
		st.Status = s.status
		return nil
	})
	return st, err
}
