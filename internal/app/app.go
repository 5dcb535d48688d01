package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"notes-go/internal/auth"
	"notes-go/internal/blobstore"
	"notes-go/internal/config"
	"notes-go/internal/docstore"
	"notes-go/internal/notes"
	"notes-go/internal/prefs"
	"notes-go/internal/richtext"
)

// NotesApp is the application layer between the CLI and notes.Session.
// It constructs all dependencies from config, exposes high-level
// operations that accept raw text and file paths, and releases every
// resource on Close.
type NotesApp struct {
	cfg       *config.Config
	store     docstore.Store
	blobs     notes.BlobStore
	auth      auth.Provider
	prefs     *notes.Preferences
	editor    *richtext.Buffer
	session   *notes.Session
	logger    notes.Logger
	logFile   *os.File
	sessionID string
}

// NoteInput describes the content of a note written from the CLI. Images
// are file paths; they are embedded inline so that saving runs them
// through the image pipeline.
type NoteInput struct {
	FolderID string
	Text     string
	Append   string
	Images   []string
}

// NewNotesApp creates a fully wired NotesApp from the given config and
// waits until the session has loaded. sessionKey scopes the remembered
// active folder and note. observer may be nil.
// The caller must call Close when done.
func NewNotesApp(ctx context.Context, cfg *config.Config, sessionKey string, observer notes.Observer) (*NotesApp, error) {
	sessionID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, sessionID, cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &NotesApp{
		cfg:       cfg,
		editor:    richtext.NewBuffer(),
		logger:    &slogAdapter{l: logger},
		logFile:   logFile,
		sessionID: sessionID,
	}
	fail := func(err error) (*NotesApp, error) {
		a.closeResources(ctx)
		return nil, err
	}

	store, err := docstore.NewFromConfig(ctx, cfg.Database, cfg.UserID, notes.RealClock{}, notes.UUIDGenerator{}, a.logger)
	if err != nil {
		return fail(fmt.Errorf("creating document store: %w", err))
	}
	a.store = store

	blobs, err := blobstore.NewFromConfig(ctx, cfg.Blobs)
	if err != nil {
		return fail(fmt.Errorf("creating blob store: %w", err))
	}
	a.blobs = blobs

	token, err := resolveIDToken(cfg.Auth)
	if err != nil {
		return fail(err)
	}
	provider, err := auth.NewFromConfig(ctx, cfg.Auth, token, a.logger)
	if err != nil {
		return fail(fmt.Errorf("creating authenticator: %w", err))
	}
	a.auth = provider

	p, err := prefs.NewFromConfig(cfg.Preferences, sessionKey)
	if err != nil {
		return fail(fmt.Errorf("creating preferences: %w", err))
	}
	a.prefs = p

	session, err := notes.NewSession(notes.Deps{
		Store:    a.store,
		Blobs:    a.blobs,
		Auth:     a.auth,
		Widget:   a.editor,
		Prefs:    a.prefs,
		Logger:   a.logger,
		Observer: observer,
	}, sessionOptions(cfg))
	if err != nil {
		return fail(fmt.Errorf("creating session: %w", err))
	}
	a.session = session
	session.Start()

	if err := session.Ready(ctx); err != nil {
		return fail(fmt.Errorf("loading notes: %w", err))
	}
	a.logger.Info("session ready", "database", cfg.Database.Type, "blobs", cfg.Blobs.Type, "auth", cfg.Auth.Type)
	return a, nil
}

func sessionOptions(cfg *config.Config) notes.Options {
	return notes.Options{
		CollectionRoot:    cfg.Naming.CollectionRoot,
		ImageRoot:         cfg.Naming.ImageRoot,
		DefaultFolderName: cfg.Naming.DefaultFolderName,
		MaxNotes:          cfg.Editor.MaxNotes,
		AutosaveDelay:     time.Duration(cfg.Editor.AutosaveDelayMS) * time.Millisecond,
	}
}

// resolveIDToken returns the ID token for the firebase provider:
// NOTES_ID_TOKEN if set, otherwise the contents of token_file.
func resolveIDToken(cfg config.AuthConfig) (string, error) {
	if cfg.Type != "firebase" {
		return "", nil
	}
	if tok := os.Getenv("NOTES_ID_TOKEN"); tok != "" {
		return strings.TrimSpace(tok), nil
	}
	if cfg.TokenFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (a *NotesApp) Session() *notes.Session        { return a.session }
func (a *NotesApp) Editor() *richtext.Buffer        { return a.editor }
func (a *NotesApp) Preferences() *notes.Preferences { return a.prefs }
func (a *NotesApp) SessionID() string               { return a.sessionID }

// Identity returns the signed-in identity, or nil.
func (a *NotesApp) Identity() *notes.Identity {
	return a.auth.Current()
}

// SignOut signs the current identity out.
func (a *NotesApp) SignOut(ctx context.Context) error {
	a.auth.SignOut()
	return a.session.Settle(ctx)
}

// UseFolder makes folderID active and waits for its notes. An empty id
// keeps the current folder.
func (a *NotesApp) UseFolder(ctx context.Context, folderID string) error {
	if folderID != "" {
		if err := a.session.SwitchFolder(ctx, folderID); err != nil {
			return err
		}
	}
	return a.session.Ready(ctx)
}

// ListNotes returns the notes of folderID, or of the active folder.
func (a *NotesApp) ListNotes(ctx context.Context, folderID string) ([]notes.Note, error) {
	if err := a.UseFolder(ctx, folderID); err != nil {
		return nil, err
	}
	return a.session.Notes(ctx)
}

// CreateNote saves a new note and returns its id.
func (a *NotesApp) CreateNote(ctx context.Context, in NoteInput) (string, error) {
	if err := a.UseFolder(ctx, in.FolderID); err != nil {
		return "", err
	}
	images, err := readImages(in.Images)
	if err != nil {
		return "", err
	}
	if err := a.session.NewNote(ctx); err != nil {
		return "", err
	}

	var ops []notes.Op
	if in.Text != "" {
		ops = append(ops, notes.TextOp(in.Text, nil))
	}
	for _, src := range images {
		ops = append(ops, notes.ImageOp(src, nil))
	}
	ops = append(ops, notes.TextOp("\n", nil))
	a.editor.SetContents(notes.NewContent(ops...), notes.SourceUser)

	if err := a.session.Save(ctx, notes.TriggerButton); err != nil {
		return "", err
	}
	st, err := a.session.Editor(ctx)
	if err != nil {
		return "", err
	}
	a.logger.Info("note created from cli", "note", st.NoteID, "images", len(images))
	return st.NoteID, nil
}

// EditNote opens a note, replaces or appends to its text, adds images
// and saves it.
func (a *NotesApp) EditNote(ctx context.Context, id string, in NoteInput) error {
	n, err := a.session.LookupNote(ctx, id)
	if err != nil {
		return err
	}
	images, err := readImages(in.Images)
	if err != nil {
		return err
	}
	if err := a.UseFolder(ctx, n.FolderID); err != nil {
		return err
	}
	if err := a.session.OpenNote(ctx, id); err != nil {
		return err
	}

	if in.Text != "" {
		a.editor.SetContents(notes.NewContent(notes.TextOp(in.Text+"\n", nil)), notes.SourceUser)
	}
	if in.Append != "" {
		a.editor.InsertText(a.endOfText(), "\n"+in.Append, nil)
	}
	for _, src := range images {
		a.editor.InsertImage(a.endOfText(), src, nil)
	}

	return a.session.Save(ctx, notes.TriggerButton)
}

// endOfText is the index just before the trailing newline, where typed
// text goes when the cursor is at the end of the last line.
func (a *NotesApp) endOfText() int {
	n := a.editor.Len()
	if strings.HasSuffix(a.editor.Contents().PlainText(), "\n") {
		return n - 1
	}
	return n
}

func readImages(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		src, err := ReadImage(p)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// ReadImage reads an image file as an inline data URL, the form a pasted
// image takes in the editor.
func ReadImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", path, contentType)
	}
	return notes.EncodeDataURL(contentType, data), nil
}

// Close flushes unsaved edits and closes all resources.
func (a *NotesApp) Close(ctx context.Context) error {
	return a.closeResources(ctx)
}

func (a *NotesApp) closeResources(ctx context.Context) error {
	var firstErr error

	if a.session != nil {
		if err := a.session.Close(ctx); err != nil {
			firstErr = fmt.Errorf("closing session: %w", err)
		}
	}

	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing document store: %w", err)
		}
	}

	if c, ok := a.blobs.(io.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing blob store: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
