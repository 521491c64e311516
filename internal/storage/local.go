package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// tempPrefix marks in-progress writes. List skips them.
const tempPrefix = ".tmp-"

// Local implements FileStore on top of the local filesystem.
// All paths are resolved relative to the configured root directory.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir.
// The directory is created (with parents) if it does not already exist.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute directory backing the store.
func (l *Local) Root() string {
	return l.root
}

// resolve turns a storage path into an absolute filesystem path inside root.
func (l *Local) resolve(name string) (string, error) {
	clean, err := CleanPath(name)
	if err != nil {
		return "", fmt.Errorf("storage: %q: %w", name, err)
	}
	full := filepath.Join(l.root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(l.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: %q: %w", name, ErrInvalidPath)
	}
	return full, nil
}

// Read opens the named file for reading.
func (l *Local) Read(_ context.Context, name string) (io.ReadCloser, error) {
	full, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Put writes r to a temp file next to the target and renames it into place.
func (l *Local) Put(ctx context.Context, name string, r io.Reader) (err error) {
	full, err := l.resolve(name)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, r); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), full)
}

// Stat returns size and modification time of the named file.
func (l *Local) Stat(_ context.Context, name string) (Object, error) {
	full, err := l.resolve(name)
	if err != nil {
		return Object{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return Object{}, err
	}
	if info.IsDir() {
		return Object{}, fmt.Errorf("storage: %q is a directory: %w", name, os.ErrNotExist)
	}
	return Object{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Exists reports whether the named file exists.
func (l *Local) Exists(_ context.Context, name string) (bool, error) {
	full, err := l.resolve(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Location returns the filesystem path name resolves to.
func (l *Local) Location(name string) string {
	return filepath.Join(l.root, filepath.FromSlash(name))
}

// List returns the regular files directly under root.
func (l *Local) List(_ context.Context) ([]Object, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, err
	}

	objects := make([]Object, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		objects = append(objects, Object{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return objects, nil
}

// Compile-time interface check.
var _ FileStore = (*Local)(nil)
