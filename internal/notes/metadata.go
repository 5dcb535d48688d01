package notes

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// UntitledTitle is shown for notes and folders without a name.
	UntitledTitle = "Untitled"

	// EmptyPreview is shown when a note has nothing past its first line.
	EmptyPreview = "No further text"

	previewLimit = 160
)

var lineBreak = regexp.MustCompile(`\r?\n`)

// Metadata holds the caches derived from a note's content at save time.
type Metadata struct {
	Content string
	Title   string
	Preview string
}

// NormalizePlainText strips the trailing newlines an editor keeps after
// the last line, then trims surrounding whitespace.
func NormalizePlainText(text string) string {
	return strings.TrimSpace(strings.TrimRight(text, "\n"))
}

// DeriveMetadata computes the title and preview for plain text. The first
// line is the title; the remaining lines, joined by spaces, form the
// preview.
func DeriveMetadata(plain string) Metadata {
	lines := lineBreak.Split(plain, -1)

	title := strings.TrimSpace(lines[0])
	if title == "" {
		title = UntitledTitle
	}

	rest := strings.TrimSpace(strings.Join(lines[1:], " "))
	preview := rest
	switch {
	case rest == "":
		preview = EmptyPreview
	case utf8.RuneCountInString(rest) > previewLimit:
		preview = string([]rune(rest)[:previewLimit]) + "…"
	}

	return Metadata{Content: plain, Title: title, Preview: preview}
}
