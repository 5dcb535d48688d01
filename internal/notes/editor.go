package notes

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Mode is the editor's binding state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeCreating
	ModeEditing
)

func (m Mode) String() string {
	switch m {
	case ModeCreating:
		return "creating"
	case ModeEditing:
		return "editing"
	default:
		return "idle"
	}
}

// SaveTrigger records what asked for a save.
type SaveTrigger string

const (
	TriggerButton   SaveTrigger = "button"
	TriggerKeyboard SaveTrigger = "keyboard"
	TriggerShortcut SaveTrigger = "shortcut"
	TriggerAuto     SaveTrigger = "auto"
)

const miniAttribute = "mini"

var errImageUpload = errors.New("image upload failed")

// binding ties editor content to where it is saved. noteID is empty until
// a draft's first save completes.
type binding struct {
	uid      string
	folderID string
	noteID   string
}

type editorState struct {
	mode        Mode
	bind        *binding
	lastSaved   string
	dirty       bool
	autosaveSeq uint64

	hasTimes  bool
	createdAt time.Time
	updatedAt time.Time
}

type saveJob struct {
	trigger SaveTrigger
	bind    *binding
	content Content
	plain   string
	// retry jobs re-read the editor when they start instead of saving a
	// captured copy.
	retry   bool
	waiters []chan<- error
}

func (j *saveJob) reply(err error) {
	for _, w := range j.waiters {
		w <- err
	}
	j.waiters = nil
}

type saveResult struct {
	images    ExternalizeResult
	meta      Metadata
	createdID string
}

// setWidget replaces the editor content without marking it dirty.
func (s *Session) setWidget(c Content) {
	s.suppress.Store(true)
	s.widget.SetContents(c, SourceAPI)
	s.suppress.Store(false)
}

// onWidgetChange runs on whatever goroutine the widget notifies from.
func (s *Session) onWidgetChange(src Source) {
	if s.suppress.Load() || src == SourceSilent {
		return
	}
	s.post(s.handleChange)
}

func (s *Session) handleChange() {
	if s.editor.mode == ModeIdle {
		return
	}
	if s.widget.Contents().Fingerprint() == s.editor.lastSaved {
		s.editor.dirty = false
		s.cancelAutosave()
	} else {
		s.editor.dirty = true
		s.editor.autosaveSeq = s.autosave.Arm()
	}
	s.emitEditor()
}

func (s *Session) cancelAutosave() {
	s.autosave.Cancel()
	s.editor.autosaveSeq = 0
}

func (s *Session) onAutosave(seq uint64) {
	if seq == 0 || seq != s.editor.autosaveSeq {
		s.logger.Debug("stale autosave ignored", "seq", seq)
		return
	}
	s.editor.autosaveSeq = 0
	s.requestSave(TriggerAuto, nil)
}

func (s *Session) loadNote(n Note) {
	s.cancelAutosave()
	s.setWidget(n.editorContent())

	folderID := n.FolderID
	if folderID == "" {
		folderID = s.folders.activeID
	}
	s.editor = editorState{
		mode:      ModeEditing,
		bind:      &binding{uid: s.identity.UID, folderID: folderID, noteID: n.ID},
		lastSaved: s.widget.Contents().Fingerprint(),
		hasTimes:  true,
		createdAt: n.CreatedAt,
		updatedAt: n.UpdatedAt,
	}
	s.savePref(s.prefs.SetActiveNote, n.ID)
	s.logger.Debug("note opened", "note", n.ID)
	s.emitEditor()
}

func (s *Session) openNote(id string) error {
	if s.editor.mode == ModeEditing && s.editor.bind.noteID == id {
		return nil
	}
	if _, ok := s.notes.find(id); !ok {
		return fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	s.closeEditor(false)
	// Flushing can queue work but never changes the cache, so id is still there.
	n, _ := s.notes.find(id)
	s.loadNote(n)
	return nil
}

func (s *Session) startDraft() {
	s.closeEditor(false)
	s.setWidget(Content{})
	s.editor = editorState{
		mode:      ModeCreating,
		bind:      &binding{uid: s.identity.UID, folderID: s.folders.activeID},
		lastSaved: s.widget.Contents().Fingerprint(),
	}
	s.savePref(s.prefs.SetActiveNote, "")
	s.logger.Debug("draft started", "folder", s.folders.activeID)
	s.emitEditor()
}

func (s *Session) resetEditor() {
	s.cancelAutosave()
	s.setWidget(Content{})
	s.editor = editorState{}
	s.emitEditor()
}

// closeEditor flushes unsaved changes and unbinds the editor. With
// discardDraft set, an unsaved draft is dropped instead of created.
func (s *Session) closeEditor(discardDraft bool) {
	s.flushEditor(discardDraft)
	if s.editor.mode != ModeIdle {
		s.resetEditor()
	}
}

func (s *Session) flushEditor(discardDraft bool) {
	s.cancelAutosave()
	if s.editor.mode == ModeIdle || !s.editor.dirty {
		return
	}
	if s.editor.mode == ModeCreating && discardDraft {
		s.logger.Info("unsaved draft discarded", "folder", s.editor.bind.folderID)
		return
	}
	job := s.capture(TriggerAuto)
	if job.content.IsEmpty() {
		return
	}
	s.logger.Info("flushing unsaved changes", "note", job.bind.noteID, "folder", job.bind.folderID)
	s.enqueue(job)
}

func (s *Session) capture(trigger SaveTrigger) *saveJob {
	return &saveJob{
		trigger: trigger,
		bind:    s.editor.bind,
		content: s.widget.Contents(),
		plain:   NormalizePlainText(s.widget.Text()),
	}
}

// requestSave applies the save guards and starts a save when they pass.
func (s *Session) requestSave(trigger SaveTrigger, waiters []chan<- error) {
	reply := func(err error) {
		for _, w := range waiters {
			w <- err
		}
	}

	if s.editor.mode == ModeIdle {
		reply(ErrIdle)
		return
	}
	auto := trigger == TriggerAuto

	if s.saving {
		if auto {
			s.logger.Debug("autosave skipped while saving")
			reply(nil)
			return
		}
		s.jobs = append(s.jobs, &saveJob{trigger: trigger, bind: s.editor.bind, retry: true, waiters: waiters})
		return
	}
	if auto && !s.editor.dirty {
		reply(nil)
		return
	}

	s.cancelAutosave()
	job := s.capture(trigger)
	job.waiters = waiters

	if job.content.IsEmpty() {
		if auto {
			s.logger.Debug("empty note not saved", "mode", s.editor.mode)
			job.reply(nil)
			return
		}
		err := validationf("Write something before saving.")
		s.setStatus(err.Message, ToneError)
		job.reply(err)
		return
	}
	if s.editor.mode == ModeEditing && !s.editor.dirty {
		s.setStatus("No changes to save.", ToneNeutral)
		job.reply(nil)
		return
	}
	s.startSave(job)
}

func (s *Session) enqueue(job *saveJob) {
	if s.saving {
		s.jobs = append(s.jobs, job)
		return
	}
	s.startSave(job)
}

func (s *Session) startSave(job *saveJob) {
	s.saving = true
	s.setStatus("Saving…", ToneNeutral)
	s.emitEditor()

	s.spawn(func() {
		res, err := s.executeSave(s.ctx, job)
		s.post(func() { s.finishSave(job, res, err) })
	})
}

// executeSave runs off the event loop. job.bind is only written by
// finishSave, which cannot run while this job is in flight.
func (s *Session) executeSave(ctx context.Context, job *saveJob) (saveResult, error) {
	noteID := job.bind.noteID

	images, err := s.images.Externalize(ctx, job.content, job.bind.uid, noteID)
	if err != nil {
		return saveResult{}, fmt.Errorf("%w: %w", errImageUpload, err)
	}

	rich, err := images.Content.Value()
	if err != nil {
		return saveResult{}, err
	}
	meta := DeriveMetadata(job.plain)
	fields := Fields{
		fieldContent:     meta.Content,
		fieldRichContent: rich,
		fieldTitle:       meta.Title,
		fieldPreview:     meta.Preview,
		fieldFolderID:    job.bind.folderID,
		fieldUpdatedAt:   ServerTimestamp,
	}

	res := saveResult{images: images, meta: meta}
	path := s.notesPath(job.bind.uid)
	if noteID == "" {
		fields[fieldCreatedAt] = ServerTimestamp
		id, err := s.store.Create(ctx, path, fields)
		if err != nil {
			return saveResult{}, fmt.Errorf("creating note: %w", err)
		}
		res.createdID = id
		return res, nil
	}
	if err := s.store.Update(ctx, path, noteID, fields); err != nil {
		return saveResult{}, fmt.Errorf("updating note %s: %w", noteID, err)
	}
	return res, nil
}

func (s *Session) finishSave(job *saveJob, res saveResult, err error) {
	s.saving = false
	current := s.editor.mode != ModeIdle && s.editor.bind == job.bind

	if err != nil {
		s.logger.Error("saving note failed", "note", job.bind.noteID, "trigger", string(job.trigger), "error", err)
		msg := "Note could not be saved."
		if errors.Is(err, errImageUpload) {
			msg = "Images could not be saved."
		}
		s.setStatus(msg, ToneError)
		job.reply(err)
		s.emitEditor()
		s.nextJob()
		return
	}

	created := res.createdID != ""
	if created {
		job.bind.noteID = res.createdID
	}

	if current {
		now := s.clock.Now()
		if s.editor.mode == ModeCreating {
			s.editor.mode = ModeEditing
			s.editor.createdAt = now
		}
		s.editor.hasTimes = true
		s.editor.updatedAt = now

		if res.images.Changed {
			s.applyImageURLs(res.images.Replaced)
		}
		s.editor.lastSaved = res.images.Content.Fingerprint()
		s.editor.dirty = s.widget.Contents().Fingerprint() != s.editor.lastSaved
		if s.editor.dirty && s.editor.autosaveSeq == 0 {
			s.editor.autosaveSeq = s.autosave.Arm()
		}
		s.savePref(s.prefs.SetActiveNote, job.bind.noteID)
	}

	s.logger.Info("note saved", "note", job.bind.noteID, "trigger", string(job.trigger), "created", created)
	switch {
	case job.trigger == TriggerAuto:
		s.setStatus("Note saved automatically.", ToneSuccess)
	case created:
		s.setStatus("Note saved.", ToneSuccess)
	default:
		s.setStatus("Note updated.", ToneSuccess)
	}
	job.reply(nil)
	s.emitEditor()
	s.nextJob()
}

// applyImageURLs swaps uploaded inline images for their URLs in the live
// editor, keeping the selection and any edits made during the upload.
func (s *Session) applyImageURLs(replaced map[string]string) {
	next, changed := s.widget.Contents().ReplaceImages(replaced)
	if !changed {
		return
	}
	sel, hasSel := s.widget.Selection()
	s.setWidget(next)
	if hasSel {
		s.widget.SetSelection(sel)
	}
}

func (s *Session) nextJob() {
	for len(s.jobs) > 0 && !s.saving {
		job := s.jobs[0]
		s.jobs = s.jobs[1:]
		if !job.retry {
			s.startSave(job)
			continue
		}
		if s.editor.mode == ModeIdle || s.editor.bind != job.bind {
			// The editor moved on and its close already flushed the content.
			job.reply(nil)
			continue
		}
		s.requestSave(job.trigger, job.waiters)
	}
}

func (s *Session) refreshTimes() {
	if s.editor.mode != ModeEditing {
		return
	}
	n, ok := s.notes.find(s.editor.bind.noteID)
	if !ok {
		return
	}
	if !n.CreatedAt.IsZero() {
		s.editor.createdAt = n.CreatedAt
	}
	if !n.UpdatedAt.IsZero() {
		s.editor.updatedAt = n.UpdatedAt
	}
	s.editor.hasTimes = true
}

func (s *Session) editorState() EditorState {
	st := EditorState{
		Mode:   s.editor.mode,
		Dirty:  s.editor.dirty,
		Saving: s.saving,
	}
	if s.editor.bind != nil {
		st.NoteID = s.editor.bind.noteID
		st.FolderID = s.editor.bind.folderID
	}
	if s.editor.hasTimes {
		st.HasTimestamps = true
		st.CreatedAt = s.editor.createdAt
		st.UpdatedAt = s.editor.updatedAt
	}
	return st
}

// NewNote binds the editor to an empty draft in the active folder.
func (s *Session) NewNote(ctx context.Context) error {
	return s.call(ctx, func() error {
		if s.identity == nil {
			return ErrNoIdentity
		}
		if s.folders.activeID == "" {
			return ErrNoFolder
		}
		s.startDraft()
		return nil
	})
}

// OpenNote binds the editor to a note from the active folder's list.
func (s *Session) OpenNote(ctx context.Context, id string) error {
	return s.call(ctx, func() error {
		if s.identity == nil {
			return ErrNoIdentity
		}
		return s.openNote(id)
	})
}

// Save saves the editor content and waits for the write to finish. An
// explicit save during another save runs once that one completes.
func (s *Session) Save(ctx context.Context, trigger SaveTrigger) error {
	done := make(chan error, 1)
	err := s.call(ctx, func() error {
		s.requestSave(trigger, []chan<- error{done})
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Revert drops unsaved edits. A draft is closed; an existing note is
// reloaded from the list.
func (s *Session) Revert(ctx context.Context) error {
	return s.call(ctx, func() error {
		switch s.editor.mode {
		case ModeIdle:
			return ErrIdle
		case ModeCreating:
			s.resetEditor()
		case ModeEditing:
			n, ok := s.notes.find(s.editor.bind.noteID)
			if !ok {
				s.resetEditor()
				break
			}
			s.loadNote(n)
		}
		s.setStatus("Changes discarded.", ToneNeutral)
		return nil
	})
}

// CloseEditor saves pending changes, then unbinds the editor.
func (s *Session) CloseEditor(ctx context.Context) error {
	return s.call(ctx, func() error {
		s.closeEditor(false)
		return nil
	})
}

// ToggleImageMini flips the "mini" size flag on the selected image.
func (s *Session) ToggleImageMini(ctx context.Context) error {
	err := s.call(ctx, func() error {
		if s.editor.mode == ModeIdle {
			return ErrIdle
		}
		sel, ok := s.widget.Selection()
		if !ok {
			return validationf("Select an image to resize.")
		}
		c := s.widget.Contents()
		i, ok := c.ImageNear(sel.Index)
		if !ok {
			return validationf("Select an image to resize.")
		}
		next := c.ToggleFlag(i, miniAttribute)
		s.widget.SetContents(next, SourceUser)
		s.widget.SetSelection(sel)

		if on, _ := next.Ops[i].Attributes[miniAttribute].(bool); on {
			s.setStatus("Image shrunk to a thumbnail.", ToneSuccess)
		} else {
			s.setStatus("Image restored to full size.", ToneSuccess)
		}
		return nil
	})
	s.report(err)
	return err
}

// Editor returns the current editor state.
func (s *Session) Editor(ctx context.Context) (EditorState, error) {
	var st EditorState
	err := s.call(ctx, func() error {
		st = s.editorState()
		return nil
	})
	return st, err
}
