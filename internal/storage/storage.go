// Package storage defines the FileStore interface the asset writer persists
// audio through. A store is a flat namespace of named objects that lives
// either on local disk or in an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrInvalidPath is returned for names that are empty, absolute, or would
// resolve outside the store root.
var ErrInvalidPath = errors.New("storage: invalid path")

// Object describes a stored file.
type Object struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// FileStore is a minimal interface for file-oriented storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type FileStore interface {
	// Read opens the named file for reading.
	// The caller must close the returned ReadCloser when done.
	// If the file does not exist, an error wrapping os.ErrNotExist is returned.
	Read(ctx context.Context, name string) (io.ReadCloser, error)

	// Put stores the contents of r under name. Readers never observe a
	// partially written object: either the whole body lands or nothing does.
	Put(ctx context.Context, name string, r io.Reader) error

	// Stat returns size and modification time of the named file.
	Stat(ctx context.Context, name string) (Object, error)

	// Exists reports whether the named file exists.
	Exists(ctx context.Context, name string) (bool, error)

	// Location returns a human readable locator for name, such as a file
	// path or an s3:// URL.
	Location(name string) string

	// List returns every object directly under the root. Order is
	// unspecified.
	List(ctx context.Context) ([]Object, error)
}

// CleanPath validates name and returns its canonical form.
func CleanPath(name string) (string, error) {
	if name == "" || strings.ContainsRune(name, '\\') || strings.ContainsRune(name, 0) {
		return "", ErrInvalidPath
	}
	if path.IsAbs(name) {
		return "", ErrInvalidPath
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", ErrInvalidPath
	}
	return clean, nil
}
