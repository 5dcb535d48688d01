package notes_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"notes-go/internal/notes"
)

func TestDeriveMetadata(t *testing.T) {
	tests := []struct {
		name        string
		plain       string
		wantTitle   string
		wantPreview string
	}{
		{"title and preview", "Shopping list\nmilk, eggs", "Shopping list", "milk, eggs"},
		{"empty", "", notes.UntitledTitle, notes.EmptyPreview},
		{"title only", "Just a title", "Just a title", notes.EmptyPreview},
		{"crlf and blank lines", "  Title  \r\n\r\nline one\r\n  line two  ", "Title", "line one   line two"},
		{"blank first line", "\nsecond", notes.UntitledTitle, "second"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := notes.DeriveMetadata(tt.plain)
			if got.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.wantTitle)
			}
			if got.Preview != tt.wantPreview {
				t.Errorf("Preview = %q, want %q", got.Preview, tt.wantPreview)
			}
			if got.Content != tt.plain {
				t.Errorf("Content = %q, want %q", got.Content, tt.plain)
			}
		})
	}
}

func TestDeriveMetadata_TruncatesPreview(t *testing.T) {
	rest := strings.Repeat("é", 200)
	got := notes.DeriveMetadata("Title\n" + rest)

	if !strings.HasSuffix(got.Preview, "…") {
		t.Errorf("Preview = %q, want trailing ellipsis", got.Preview)
	}
	if n := utf8.RuneCountInString(got.Preview); n != 161 {
		t.Errorf("Preview rune count = %d, want 161", n)
	}

	exact := notes.DeriveMetadata("Title\n" + strings.Repeat("a", 160))
	if strings.HasSuffix(exact.Preview, "…") {
		t.Error("Preview at the limit was truncated")
	}
}

func TestNormalizePlainText(t *testing.T) {
	if got := notes.NormalizePlainText("  hello\nworld\n\n\n"); got != "hello\nworld" {
		t.Errorf("NormalizePlainText() = %q", got)
	}
}
