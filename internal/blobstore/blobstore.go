// Package blobstore implements notes.BlobStore backends for pasted images.
package blobstore

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// cleanKey validates an object path: slash separated, relative, and free
// of "." and ".." segments.
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty object path")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("invalid object path %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("invalid object path %q", key)
		}
	}
	return path.Clean(key), nil
}

// joinURL appends key to base, escaping each path segment.
func joinURL(base, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segs, "/")
}
