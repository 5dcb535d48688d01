package notes

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	draftSegment = "draft"
	uploadLimit  = 4
)

var dataURLHeader = regexp.MustCompile(`^data:([^;,]+);base64$`)

// ImagePipeline moves inline images out of note content and into blob
// storage.
type ImagePipeline struct {
	blobs  BlobStore
	clock  Clock
	ids    IDGenerator
	root   string
	logger Logger
}

// NewImagePipeline creates a pipeline that stores images under root.
func NewImagePipeline(blobs BlobStore, clock Clock, ids IDGenerator, root string, logger Logger) *ImagePipeline {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &ImagePipeline{blobs: blobs, clock: clock, ids: ids, root: root, logger: logger}
}

// ExternalizeResult is the outcome of one pipeline pass.
type ExternalizeResult struct {
	Content Content
	// Changed is true when at least one op was rewritten.
	Changed bool
	// Replaced maps each inline source to the URL that replaced it.
	Replaced map[string]string
}

// Externalize uploads every inline image in c and rewrites those ops to
// reference the uploaded URL. Identical payloads are uploaded once. If any
// upload fails the whole pass fails and c is not rewritten.
func (p *ImagePipeline) Externalize(ctx context.Context, c Content, uid, noteID string) (ExternalizeResult, error) {
	var sources []string
	seen := make(map[string]bool)
	for _, op := range c.Ops {
		switch in := op.Insert.(type) {
		case ImageInsert:
			if in.Inline() && !seen[in.Source] {
				seen[in.Source] = true
				sources = append(sources, in.Source)
			}
		case TextInsert:
		}
	}
	if len(sources) == 0 {
		return ExternalizeResult{Content: c}, nil
	}

	owner := noteID
	if owner == "" {
		owner = draftSegment
	}

	var mu sync.Mutex
	replaced := make(map[string]string, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadLimit)
	for _, src := range sources {
		g.Go(func() error {
			url, err := p.upload(gctx, src, uid, owner)
			if err != nil {
				return err
			}
			mu.Lock()
			replaced[src] = url
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ExternalizeResult{}, err
	}

	out, changed := c.ReplaceImages(replaced)
	p.logger.Info("images externalized", "note", owner, "count", len(replaced))
	return ExternalizeResult{Content: out, Changed: changed, Replaced: replaced}, nil
}

func (p *ImagePipeline) upload(ctx context.Context, src, uid, owner string) (string, error) {
	data, contentType, err := DecodeDataURL(src)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d-%s.%s", p.clock.Now().UnixMilli(), p.ids.New(), extensionFor(contentType))
	objectPath := path.Join(p.root, uid, owner, name)

	if err := p.blobs.Upload(ctx, objectPath, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("uploading %s: %w", objectPath, err)
	}
	url, err := p.blobs.URL(ctx, objectPath)
	if err != nil {
		return "", fmt.Errorf("resolving url for %s: %w", objectPath, err)
	}
	return url, nil
}

// DecodeDataURL parses a base64 data URL into its bytes and content type.
func DecodeDataURL(src string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(src, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data url")
	}
	m := dataURLHeader.FindStringSubmatch(header)
	if m == nil {
		return nil, "", fmt.Errorf("unsupported data url header %q", header)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decoding data url: %w", err)
	}
	return data, m[1], nil
}

// EncodeDataURL builds a base64 data URL for data.
func EncodeDataURL(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// extensionFor derives a file extension from a content type: image/svg+xml
// becomes svg. Unknown types fall back to png.
func extensionFor(contentType string) string {
	_, sub, ok := strings.Cut(contentType, "/")
	if !ok {
		return "png"
	}
	sub, _, _ = strings.Cut(sub, "+")
	sub = strings.ToLower(strings.TrimSpace(sub))
	if sub == "" {
		return "png"
	}
	return sub
}
