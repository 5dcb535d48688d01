package notes

// Source identifies who changed the editor content.
type Source int

const (
	// SourceUser is an edit made by the person typing.
	SourceUser Source = iota
	// SourceAPI is a programmatic change that still notifies listeners.
	SourceAPI
	// SourceSilent is a programmatic change that notifies nobody.
	SourceSilent
)

// Range is a cursor position or selection in editor index space.
type Range struct {
	Index  int
	Length int
}

// EditorWidget is the rich-text editing surface bound to the session.
type EditorWidget interface {
	Contents() Content
	SetContents(c Content, src Source)

	// Text returns the plain text of the content. Embeds are omitted.
	Text() string

	// OnChange registers fn for content changes and returns a function
	// that removes it.
	OnChange(fn func(Source)) (remove func())

	Selection() (Range, bool)
	SetSelection(r Range)
}
