package notes

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Attributes holds inline formatting for an op, e.g. bold or the image
// "mini" flag.
type Attributes map[string]any

// Insert is the payload of an Op: either a TextInsert or an ImageInsert.
type Insert interface {
	isInsert()
}

// TextInsert is a run of text.
type TextInsert string

// ImageInsert embeds an image. Source is an external URL or an inline
// data URL carrying the encoded bytes.
type ImageInsert struct {
	Source string
}

func (TextInsert) isInsert()  {}
func (ImageInsert) isInsert() {}

// Inline reports whether the image bytes are embedded in Source.
func (i ImageInsert) Inline() bool {
	return strings.HasPrefix(i.Source, "data:")
}

// Op is a single content operation.
type Op struct {
	Insert     Insert
	Attributes Attributes
}

// TextOp returns a text insert with optional formatting.
func TextOp(text string, attrs Attributes) Op {
	return Op{Insert: TextInsert(text), Attributes: attrs}
}

// ImageOp returns an image insert with optional formatting.
func ImageOp(source string, attrs Attributes) Op {
	return Op{Insert: ImageInsert{Source: source}, Attributes: attrs}
}

// length is the number of index positions the op occupies: runes for
// text, one for an embed.
func (o Op) length() int {
	switch in := o.Insert.(type) {
	case TextInsert:
		return utf8.RuneCountInString(string(in))
	case ImageInsert:
		return 1
	}
	return 0
}

func (o Op) clone() Op {
	if o.Attributes == nil {
		return o
	}
	attrs := make(Attributes, len(o.Attributes))
	for k, v := range o.Attributes {
		attrs[k] = v
	}
	return Op{Insert: o.Insert, Attributes: attrs}
}

type wireOp struct {
	Insert     json.RawMessage `json:"insert"`
	Attributes Attributes      `json:"attributes,omitempty"`
}

type wireImage struct {
	Image string `json:"image"`
}

func (o Op) MarshalJSON() ([]byte, error) {
	var insert any
	switch in := o.Insert.(type) {
	case nil:
		insert = ""
	case TextInsert:
		insert = string(in)
	case ImageInsert:
		insert = wireImage{Image: in.Source}
	}
	raw, err := json.Marshal(insert)
	if err != nil {
		return nil, err
	}
	w := wireOp{Insert: raw}
	if len(o.Attributes) > 0 {
		w.Attributes = o.Attributes
	}
	return json.Marshal(w)
}

func (o *Op) UnmarshalJSON(data []byte) error {
	var w wireOp
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if len(w.Insert) == 0 {
		return errors.New("op has no insert")
	}
	switch w.Insert[0] {
	case '"':
		var s string
		if err := json.Unmarshal(w.Insert, &s); err != nil {
			return err
		}
		o.Insert = TextInsert(s)
	case '{':
		var embed struct {
			Image *string `json:"image"`
		}
		if err := json.Unmarshal(w.Insert, &embed); err != nil {
			return err
		}
		if embed.Image == nil {
			return fmt.Errorf("unsupported embed: %s", w.Insert)
		}
		o.Insert = ImageInsert{Source: *embed.Image}
	default:
		return fmt.Errorf("unsupported insert: %s", w.Insert)
	}
	o.Attributes = w.Attributes
	return nil
}

// Content is a rich-text document: an ordered sequence of ops.
type Content struct {
	Ops []Op `json:"ops"`
}

// NewContent builds a Content from ops.
func NewContent(ops ...Op) Content {
	return Content{Ops: ops}
}

// Clone returns a deep copy of c.
func (c Content) Clone() Content {
	if c.Ops == nil {
		return Content{}
	}
	ops := make([]Op, len(c.Ops))
	for i, op := range c.Ops {
		ops[i] = op.clone()
	}
	return Content{Ops: ops}
}

// Fingerprint returns a stable digest of c. Two contents with equal ops
// and attributes have equal fingerprints.
func (c Content) Fingerprint() string {
	if c.Ops == nil {
		c.Ops = []Op{}
	}
	h := sha256.New()
	// Unencodable content hashes as empty. Value reports the error on save.
	_ = json.NewEncoder(h).Encode(c)
	return hex.EncodeToString(h.Sum(nil))
}

// PlainText flattens c to text. Each image contributes a single space.
func (c Content) PlainText() string {
	var b strings.Builder
	for _, op := range c.Ops {
		switch in := op.Insert.(type) {
		case TextInsert:
			b.WriteString(string(in))
		case ImageInsert:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// HasImages reports whether c contains at least one image op.
func (c Content) HasImages() bool {
	for _, op := range c.Ops {
		if _, ok := op.Insert.(ImageInsert); ok {
			return true
		}
	}
	return false
}

// IsEmpty reports whether c has neither visible text nor images.
func (c Content) IsEmpty() bool {
	for _, op := range c.Ops {
		switch in := op.Insert.(type) {
		case TextInsert:
			if strings.TrimSpace(string(in)) != "" {
				return false
			}
		case ImageInsert:
			return false
		}
	}
	return true
}

// Len returns the total index length of c.
func (c Content) Len() int {
	n := 0
	for _, op := range c.Ops {
		n += op.length()
	}
	return n
}

// InsertAt returns a copy of c with op inserted at the given index.
// Text ops are split when the index falls inside them.
func (c Content) InsertAt(index int, op Op) Content {
	out := make([]Op, 0, len(c.Ops)+2)
	pos := 0
	inserted := false
	for _, cur := range c.Clone().Ops {
		n := cur.length()
		if !inserted && index <= pos {
			out = append(out, op)
			inserted = true
		}
		if text, ok := cur.Insert.(TextInsert); ok && !inserted && index > pos && index < pos+n {
			runes := []rune(string(text))
			split := index - pos
			out = append(out, Op{Insert: TextInsert(runes[:split]), Attributes: cur.Attributes})
			out = append(out, op)
			out = append(out, Op{Insert: TextInsert(runes[split:]), Attributes: cur.clone().Attributes})
			inserted = true
			pos += n
			continue
		}
		out = append(out, cur)
		pos += n
	}
	if !inserted {
		out = append(out, op)
	}
	return Content{Ops: out}
}

// ImageNear returns the position in c.Ops of the image op at index, or the
// one just before it when the cursor sits after an image.
func (c Content) ImageNear(index int) (int, bool) {
	for _, at := range []int{index, index - 1} {
		if at < 0 {
			continue
		}
		pos := 0
		for i, op := range c.Ops {
			n := op.length()
			if at >= pos && at < pos+n {
				if _, ok := op.Insert.(ImageInsert); ok {
					return i, true
				}
				break
			}
			pos += n
		}
	}
	return 0, false
}

// ToggleFlag returns a copy of c with the boolean attribute name flipped
// on the op at position i. A cleared flag is removed, not set to false.
func (c Content) ToggleFlag(i int, name string) Content {
	out := c.Clone()
	if i < 0 || i >= len(out.Ops) {
		return out
	}
	op := out.Ops[i]
	if on, _ := op.Attributes[name].(bool); on {
		delete(op.Attributes, name)
		if len(op.Attributes) == 0 {
			op.Attributes = nil
		}
	} else {
		if op.Attributes == nil {
			op.Attributes = Attributes{}
		}
		op.Attributes[name] = true
	}
	out.Ops[i] = op
	return out
}

// ReplaceImages rewrites image sources found in urls, keeping attributes.
// It reports whether any op changed.
func (c Content) ReplaceImages(urls map[string]string) (Content, bool) {
	out := c.Clone()
	changed := false
	for i, op := range out.Ops {
		img, ok := op.Insert.(ImageInsert)
		if !ok {
			continue
		}
		if url, ok := urls[img.Source]; ok && url != img.Source {
			out.Ops[i].Insert = ImageInsert{Source: url}
			changed = true
		}
	}
	return out, changed
}

// Value returns c as plain maps and slices, the shape document stores
// persist. It fails when an attribute has no JSON encoding.
func (c Content) Value() (map[string]any, error) {
	if c.Ops == nil {
		c.Ops = []Op{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding content: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding content: %w", err)
	}
	return out, nil
}

// ContentFromValue decodes content previously produced by Value, raw JSON,
// or a Content itself.
func ContentFromValue(v any) (Content, error) {
	switch x := v.(type) {
	case nil:
		return Content{}, nil
	case Content:
		return x.Clone(), nil
	case []byte:
		return decodeContent(x)
	case string:
		return decodeContent([]byte(x))
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Content{}, fmt.Errorf("encoding content value: %w", err)
	}
	return decodeContent(data)
}

func decodeContent(data []byte) (Content, error) {
	var c Content
	if err := json.Unmarshal(data, &c); err != nil {
		return Content{}, fmt.Errorf("decoding content: %w", err)
	}
	return c, nil
}
