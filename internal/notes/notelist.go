package notes

import (
	"context"
	"fmt"
)

// NoteList is the cached, ordered note list of the active folder. It is
// rebuilt from every full snapshot.
type NoteList struct {
	notes     []Note
	loaded    bool
	pendingID string
}

func (l *NoteList) replace(notes []Note) {
	l.notes = notes
	l.loaded = true
}

func (l *NoteList) reset() {
	l.notes = nil
	l.loaded = false
}

func (l *NoteList) find(id string) (Note, bool) {
	if id == "" {
		return Note{}, false
	}
	for _, n := range l.notes {
		if n.ID == id {
			return n, true
		}
	}
	return Note{}, false
}

func (l *NoteList) snapshot() []Note {
	return append([]Note(nil), l.notes...)
}

func (s *Session) notesPath(uid string) string {
	return s.opts.CollectionRoot + "/" + uid + "/items"
}

func (s *Session) notesQuery(uid, folderID string) Query {
	return Query{
		Collection: s.notesPath(uid),
		Filters:    []Filter{{Field: fieldFolderID, Value: folderID}},
		OrderBy:    []Order{{Field: fieldUpdatedAt, Descending: true}},
		Limit:      s.opts.MaxNotes,
	}
}

// subscribeNotes replaces the note stream with one for the active folder.
func (s *Session) subscribeNotes() {
	s.cancelLive(&s.noteSub)
	s.notes.reset()
	if s.identity == nil || s.folders.activeID == "" {
		return
	}
	q := s.notesQuery(s.identity.UID, s.folders.activeID)
	lq, err := s.subscribe("notes", q, s.onNotes)
	if err != nil {
		s.failLoad(err, func() {
			if s.noteSub == nil {
				s.subscribeNotes()
			}
		})
		return
	}
	s.noteSub = lq
}

// onNotes handles a notes snapshot on the event loop.
func (s *Session) onNotes(docs []Document) {
	notes := make([]Note, 0, len(docs))
	for _, d := range docs {
		n, err := noteFromDocument(d)
		if err != nil {
			s.logger.Warn("note has unreadable content", "note", d.ID, "error", err)
		}
		notes = append(notes, n)
	}
	s.notes.replace(notes)
	s.loaded()
	s.ensureSelection()
	s.emitNotes()
	s.emitEditor()
}

// ensureSelection keeps the editor bound to a sensible note after the
// list changed.
func (s *Session) ensureSelection() {
	if id := s.notes.pendingID; id != "" {
		if _, ok := s.notes.find(id); ok {
			s.notes.pendingID = ""
			if s.editor.mode == ModeEditing && s.editor.bind.noteID == id {
				s.refreshTimes()
				return
			}
			s.openNote(id)
			return
		}
		s.notes.pendingID = ""
	}

	switch s.editor.mode {
	case ModeCreating:
		return
	case ModeEditing:
		if _, ok := s.notes.find(s.editor.bind.noteID); ok {
			s.refreshTimes()
			return
		}
		// The open note was deleted elsewhere; its edits have nowhere to go.
		s.logger.Info("open note disappeared", "note", s.editor.bind.noteID)
		s.resetEditor()
	}

	if len(s.notes.notes) > 0 {
		s.openNote(s.notes.notes[0].ID)
		return
	}
	if s.canWrite() {
		s.startDraft()
		return
	}
	s.resetEditor()
}

func (s *Session) canWrite() bool {
	return s.identity != nil && s.folders.activeID != ""
}

// switchFolder moves the session to another folder. A dirty note is
// flushed first; an unsaved draft is discarded.
func (s *Session) switchFolder(id string) {
	if id == "" {
		id = s.folders.defaultID
	}
	if id == s.folders.activeID && s.noteSub != nil {
		return
	}
	s.closeEditor(true)
	s.notes.pendingID = ""
	s.savePref(s.prefs.SetActiveNote, "")
	s.activateFolder(id)
}

// activateFolder binds the note stream to id without touching the editor.
func (s *Session) activateFolder(id string) {
	s.folders.activeID = id
	s.folders.expandAncestors(id)
	s.savePref(s.prefs.SetActiveFolder, id)
	s.logger.Info("folder activated", "folder", id)
	s.subscribeNotes()
	s.emitFolders()
	s.emitNotes()
}

// SwitchFolder makes id the active folder. An empty id selects the
// default folder.
func (s *Session) SwitchFolder(ctx context.Context, id string) error {
	return s.call(ctx, func() error {
		if s.identity == nil {
			return ErrNoIdentity
		}
		target := id
		if target == "" {
			target = s.folders.defaultID
		}
		if _, ok := s.folders.find(target); !ok {
			return fmt.Errorf("folder %s: %w", target, ErrNotFound)
		}
		s.switchFolder(target)
		s.setStatus("", ToneNeutral)
		return nil
	})
}

// Notes returns the cached note list of the active folder.
func (s *Session) Notes(ctx context.Context) ([]Note, error) {
	var out []Note
	err := s.call(ctx, func() error {
		out = s.notes.snapshot()
		return nil
	})
	return out, err
}

// DeleteNote removes a note. If it is open, the editor is cleared without
// saving.
func (s *Session) DeleteNote(ctx context.Context, id string) error {
	var uid string
	err := s.call(ctx, func() error {
		if s.identity == nil {
			return ErrNoIdentity
		}
		if s.editor.mode == ModeEditing && s.editor.bind.noteID == id {
			s.cancelAutosave()
		}
		uid = s.identity.UID
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, s.notesPath(uid), id); err != nil {
		s.logger.Error("deleting note failed", "note", id, "error", err)
		s.postStatus("Note could not be deleted.", ToneError)
		return fmt.Errorf("deleting note: %w", err)
	}
	s.logger.Info("note deleted", "note", id)

	return s.call(ctx, func() error {
		if s.prefs.ActiveNote() == id {
			s.savePref(s.prefs.SetActiveNote, "")
		}
		// The live query picks the next selection once the delete echoes back.
		if s.editor.mode == ModeEditing && s.editor.bind.noteID == id {
			s.resetEditor()
		}
		s.setStatus("Note deleted.", ToneSuccess)
		s.emitEditor()
		return nil
	})
}

// LookupNote reads a note by id from any folder of the signed-in identity.
func (s *Session) LookupNote(ctx context.Context, id string) (Note, error) {
	var uid string
	err := s.call(ctx, func() error {
		if s.identity == nil {
			return ErrNoIdentity
		}
		uid = s.identity.UID
		return nil
	})
	if err != nil {
		return Note{}, err
	}

	docs, err := s.store.Get(ctx, Query{Collection: s.notesPath(uid)})
	if err != nil {
		return Note{}, fmt.Errorf("reading notes: %w", err)
	}
	for _, d := range docs {
		if d.ID == id {
			return noteFromDocument(d)
		}
	}
	return Note{}, fmt.Errorf("note %s: %w", id, ErrNotFound)
}
