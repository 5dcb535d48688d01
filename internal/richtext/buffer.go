// Package richtext provides a headless editor surface for notes.Session.
package richtext

import (
	"strings"
	"sync"

	"notes-go/internal/notes"
)

// Buffer is an in-memory rich-text editor. It implements
// notes.EditorWidget. Change hooks run on the goroutine that made the
// change, after the buffer lock is released.
type Buffer struct {
	mu      sync.Mutex
	content notes.Content
	sel     notes.Range
	hasSel  bool
	hooks   map[int]func(notes.Source)
	nextID  int
}

func NewBuffer() *Buffer {
	return &Buffer{hooks: make(map[int]func(notes.Source))}
}

// Contents returns a copy of the document.
func (b *Buffer) Contents() notes.Content {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content.Clone()
}

// SetContents replaces the document and notifies change hooks with src.
func (b *Buffer) SetContents(c notes.Content, src notes.Source) {
	b.mu.Lock()
	b.content = c.Clone()
	b.clampSelection()
	hooks := b.snapshotHooks()
	b.mu.Unlock()

	b.notify(hooks, src)
}

// Text returns the text ops concatenated. Images are left out.
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	for _, op := range b.content.Ops {
		if t, ok := op.Insert.(notes.TextInsert); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String()
}

// OnChange registers fn for every change. The returned func removes it.
func (b *Buffer) OnChange(fn func(notes.Source)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.hooks[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.hooks, id)
		b.mu.Unlock()
	}
}

// Selection returns the cursor range and whether the buffer has focus.
func (b *Buffer) Selection() (notes.Range, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sel, b.hasSel
}

// SetSelection focuses the buffer and moves the cursor, clamped to the document.
func (b *Buffer) SetSelection(r notes.Range) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sel = r
	b.hasSel = true
	b.clampSelection()
}

// ClearSelection removes focus from the buffer.
func (b *Buffer) ClearSelection() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sel = notes.Range{}
	b.hasSel = false
}

// Len returns the document length in editor index units.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.content.Len()
}

// InsertText types text at index as the user would and moves the cursor
// after it.
func (b *Buffer) InsertText(index int, text string, attrs notes.Attributes) {
	b.insert(index, notes.TextOp(text, attrs), len([]rune(text)))
}

// InsertImage pastes an image at index as the user would.
func (b *Buffer) InsertImage(index int, source string, attrs notes.Attributes) {
	b.insert(index, notes.ImageOp(source, attrs), 1)
}

// AppendText types text at the end of the document.
func (b *Buffer) AppendText(text string) {
	b.InsertText(b.Len(), text, nil)
}

// AppendImage pastes an image at the end of the document.
func (b *Buffer) AppendImage(source string) {
	b.InsertImage(b.Len(), source, nil)
}

func (b *Buffer) insert(index int, op notes.Op, n int) {
	b.mu.Lock()
	if index < 0 {
		index = 0
	}
	if l := b.content.Len(); index > l {
		index = l
	}
	b.content = b.content.InsertAt(index, op)
	b.sel = notes.Range{Index: index + n}
	b.hasSel = true
	hooks := b.snapshotHooks()
	b.mu.Unlock()

	b.notify(hooks, notes.SourceUser)
}

func (b *Buffer) clampSelection() {
	l := b.content.Len()
	if b.sel.Index > l {
		b.sel.Index = l
	}
	if b.sel.Index < 0 {
		b.sel.Index = 0
	}
	if b.sel.Index+b.sel.Length > l {
		b.sel.Length = l - b.sel.Index
	}
}

func (b *Buffer) snapshotHooks() []func(notes.Source) {
	hooks := make([]func(notes.Source), 0, len(b.hooks))
	for _, fn := range b.hooks {
		hooks = append(hooks, fn)
	}
	return hooks
}

func (b *Buffer) notify(hooks []func(notes.Source), src notes.Source) {
	if src == notes.SourceSilent {
		return
	}
	for _, fn := range hooks {
		fn(src)
	}
}
