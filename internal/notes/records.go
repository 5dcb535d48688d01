package notes

import (
	"encoding/json"
	"time"
)

// Folder is a node in an identity's folder tree.
type Folder struct {
	ID        string
	Name      string
	ParentID  string // empty at root level
	IsDefault bool
	Position  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Note is a stored note. Content, Title and Preview are derived from
// RichContent on every save.
type Note struct {
	ID          string
	FolderID    string
	RichContent Content
	Content     string
	Title       string
	Preview     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Field names shared by every document store backend.
const (
	fieldName        = "name"
	fieldParentID    = "parentId"
	fieldIsDefault   = "isDefault"
	fieldPosition    = "position"
	fieldFolderID    = "folderId"
	fieldContent     = "content"
	fieldRichContent = "richContent"
	fieldTitle       = "title"
	fieldPreview     = "preview"
	fieldCreatedAt   = "createdAt"
	fieldUpdatedAt   = "updatedAt"
)

func folderFromDocument(d Document) Folder {
	f := Folder{
		ID:        d.ID,
		Name:      asString(d.Fields[fieldName]),
		ParentID:  asString(d.Fields[fieldParentID]),
		IsDefault: asBool(d.Fields[fieldIsDefault]),
		Position:  asInt64(d.Fields[fieldPosition]),
		CreatedAt: asTime(d.Fields[fieldCreatedAt]),
		UpdatedAt: asTime(d.Fields[fieldUpdatedAt]),
	}
	if f.Name == "" {
		f.Name = UntitledTitle
	}
	return f
}

func noteFromDocument(d Document) (Note, error) {
	n := Note{
		ID:        d.ID,
		FolderID:  asString(d.Fields[fieldFolderID]),
		Content:   asString(d.Fields[fieldContent]),
		Title:     asString(d.Fields[fieldTitle]),
		Preview:   asString(d.Fields[fieldPreview]),
		CreatedAt: asTime(d.Fields[fieldCreatedAt]),
		UpdatedAt: asTime(d.Fields[fieldUpdatedAt]),
	}
	rich, err := ContentFromValue(d.Fields[fieldRichContent])
	if err != nil {
		return n, err
	}
	n.RichContent = rich
	if n.Title == "" || n.Preview == "" {
		meta := DeriveMetadata(n.Content)
		if n.Title == "" {
			n.Title = meta.Title
		}
		if n.Preview == "" {
			n.Preview = meta.Preview
		}
	}
	return n, nil
}

// editorContent is what the editor shows for n. Notes saved before rich
// content existed only carry plain text.
func (n Note) editorContent() Content {
	if len(n.RichContent.Ops) > 0 {
		return n.RichContent.Clone()
	}
	if n.Content == "" {
		return Content{}
	}
	return NewContent(TextOp(n.Content+"\n", nil))
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	}
	return 0
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func nullable(id string) any {
	if id == "" {
		return nil
	}
	return id
}
