// Package gcsuploader stores uploaded statement files, in a GCS bucket or,
// without one, under a local directory.
package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ErrObjectNotFound is returned when a stored object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore stores and fetches uploaded files by URI.
type ObjectStore interface {
	// Put writes r under name and returns the object's URI.
	Put(ctx context.Context, name, contentType string, r io.Reader) (string, error)

	// Fetch reads the object at uri.
	Fetch(ctx context.Context, uri string) ([]byte, error)

	// Delete removes the object at uri.
	Delete(ctx context.Context, uri string) error
}

// ObjectName builds the storage path of an upload:
// statements/<owner>/<yyyy>/<mm>/<documentID>-<filename>.
func ObjectName(owner, documentID, filename string, at time.Time) string {
	return path.Join(
		"statements",
		sanitize(owner),
		at.UTC().Format("2006"),
		at.UTC().Format("01"),
		documentID+"-"+sanitize(path.Base(filename)),
	)
}

func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == "/" {
		return "unnamed"
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_', r == '@':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromURI returns the last path element of a gs:// or file:// URI.
// e.g. "gs://bucket/folder/file.pdf" -> "file.pdf"
func FilenameFromURI(uri string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(uri, "gs://"), "file://")
	if i := strings.Index(trimmed, "/"); i == -1 {
		return trimmed
	}
	return path.Base(trimmed)
}
