package notes

import "time"

// Tone classifies a status message.
type Tone string

const (
	ToneNeutral Tone = "neutral"
	ToneSuccess Tone = "success"
	ToneError   Tone = "error"
)

// Status is the one-line message shown to the user.
type Status struct {
	Message string
	Tone    Tone
}

// EditorState describes what the editor is bound to.
type EditorState struct {
	Mode     Mode
	NoteID   string
	FolderID string
	Dirty    bool
	Saving   bool

	// Timestamps are only meaningful once the note has been saved.
	HasTimestamps bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// State is a point-in-time copy of the session.
type State struct {
	Identity      *Identity
	Folders       []Folder
	DefaultFolder string
	ActiveFolder  string
	Notes         []Note
	NotesLoaded   bool
	Editor        EditorState
	Status        Status
}

// Observer receives session updates on the session's event goroutine.
// Implementations must not call back into the Session synchronously.
type Observer interface {
	StatusChanged(Status)
	FoldersChanged(tree []TreeNode, activeID string)
	NotesChanged(notes []Note, openID string)
	EditorChanged(EditorState)
}

// NopObserver ignores all updates.
type NopObserver struct{}

func (NopObserver) StatusChanged(Status)              {}
func (NopObserver) FoldersChanged([]TreeNode, string) {}
func (NopObserver) NotesChanged([]Note, string)       {}
func (NopObserver) EditorChanged(EditorState)         {}
