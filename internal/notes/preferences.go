package notes

import "strconv"

// Preference keys. The first three are durable; the last two are scoped
// to one session and cleared when it ends.
const (
	KeyCompact          = "notes_compact_enabled"
	KeyFoldersCollapsed = "notes_folders_collapsed"
	KeyLayoutFlipped    = "notes_layout_flipped"
	KeyActiveFolder     = "notes_active_folder"
	KeyActiveNote       = "notes_active_note"
)

// PreferenceStore persists small string values outside the document store.
type PreferenceStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
	Clear() error
}

// Preferences exposes typed accessors over a durable store and a
// session-scoped store.
type Preferences struct {
	durable PreferenceStore
	session PreferenceStore
}

// NewPreferences creates Preferences backed by the given stores.
func NewPreferences(durable, session PreferenceStore) *Preferences {
	return &Preferences{durable: durable, session: session}
}

func (p *Preferences) flag(key string) bool {
	v, ok := p.durable.Get(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func (p *Preferences) setFlag(key string, on bool) error {
	return p.durable.Set(key, strconv.FormatBool(on))
}

// Compact reports whether the compact list layout is enabled.
func (p *Preferences) Compact() bool { return p.flag(KeyCompact) }

func (p *Preferences) SetCompact(on bool) error { return p.setFlag(KeyCompact, on) }

// FoldersCollapsed reports whether the folder pane is collapsed.
func (p *Preferences) FoldersCollapsed() bool { return p.flag(KeyFoldersCollapsed) }

func (p *Preferences) SetFoldersCollapsed(on bool) error { return p.setFlag(KeyFoldersCollapsed, on) }

// LayoutFlipped reports whether the list and editor panes are swapped.
func (p *Preferences) LayoutFlipped() bool { return p.flag(KeyLayoutFlipped) }

func (p *Preferences) SetLayoutFlipped(on bool) error { return p.setFlag(KeyLayoutFlipped, on) }

// ActiveFolder returns the folder restored for this session, if any.
func (p *Preferences) ActiveFolder() string {
	v, _ := p.session.Get(KeyActiveFolder)
	return v
}

// SetActiveFolder records id for this session. An empty id clears it.
func (p *Preferences) SetActiveFolder(id string) error {
	return p.setSession(KeyActiveFolder, id)
}

// ActiveNote returns the note restored for this session, if any.
func (p *Preferences) ActiveNote() string {
	v, _ := p.session.Get(KeyActiveNote)
	return v
}

// SetActiveNote records id for this session. An empty id clears it.
func (p *Preferences) SetActiveNote(id string) error {
	return p.setSession(KeyActiveNote, id)
}

func (p *Preferences) setSession(key, value string) error {
	if value == "" {
		return p.session.Delete(key)
	}
	return p.session.Set(key, value)
}

// EndSession drops the session-scoped values.
func (p *Preferences) EndSession() error {
	return p.session.Clear()
}

// Flags maps the durable flag keys to their current values.
func (p *Preferences) Flags() map[string]bool {
	return map[string]bool{
		KeyCompact:          p.Compact(),
		KeyFoldersCollapsed: p.FoldersCollapsed(),
		KeyLayoutFlipped:    p.LayoutFlipped(),
	}
}

// SetFlag sets a durable flag by key.
func (p *Preferences) SetFlag(key string, on bool) error {
	switch key {
	case KeyCompact, KeyFoldersCollapsed, KeyLayoutFlipped:
		return p.setFlag(key, on)
	}
	return validationf("unknown preference %q", key)
}
