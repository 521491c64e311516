// Package assets names, encodes and stores generated clips, and serves them
// back for download and listing.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/liujianjie/BeatForgeAI/internal/audio"
	"github.com/liujianjie/BeatForgeAI/internal/errs"
	"github.com/liujianjie/BeatForgeAI/internal/logger"
	"github.com/liujianjie/BeatForgeAI/internal/storage"
	"github.com/liujianjie/BeatForgeAI/internal/styles"
)

const (
	// Extension of every stored clip
	Extension = ".wav"

	DefaultPrefix = "beatforge"
	idLength      = 8
	maxAttempts   = 5
)

// Asset describes one stored clip. It never changes after Persist returns.
type Asset struct {
	Filename   string       `json:"filename"`
	Path       string       `json:"path"`
	Style      styles.Style `json:"style"`
	SampleRate int          `json:"sample_rate"`
	Channels   int          `json:"channels"`
	Duration   float64      `json:"duration"`
	SizeBytes  int64        `json:"size_bytes"`
}

// Listing is one entry of the store listing.
type Listing struct {
	Filename  string       `json:"filename"`
	SizeBytes int64        `json:"size_bytes"`
	Style     styles.Style `json:"style,omitempty"`
}

// Writer persists clips into a FileStore.
type Writer struct {
	store  storage.FileStore
	prefix string
	newID  func() string
}

// NewWriter creates a Writer. An empty prefix uses DefaultPrefix.
func NewWriter(store storage.FileStore, prefix string) *Writer {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = DefaultPrefix
	}
	return &Writer{store: store, prefix: prefix, newID: randomID}
}

func randomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}

// Filename builds "<prefix>_<style>_<id>.wav".
func (w *Writer) Filename(style styles.Style, id string) string {
	return fmt.Sprintf("%s_%s_%s%s", w.prefix, style, id, Extension)
}

// ParseFilename recovers the style and id from a name built by Filename.
// Styles may themselves contain underscores, so the id is split off the end.
func (w *Writer) ParseFilename(name string) (style styles.Style, id string, ok bool) {
	rest, found := strings.CutSuffix(name, Extension)
	if !found {
		return "", "", false
	}
	rest, found = strings.CutPrefix(rest, w.prefix+"_")
	if !found {
		return "", "", false
	}
	i := strings.LastIndexByte(rest, '_')
	if i <= 0 || len(rest)-i-1 != idLength {
		return "", "", false
	}
	style, ok = styles.Parse(rest[:i])
	if !ok {
		return "", "", false
	}
	return style, rest[i+1:], true
}

// Persist encodes samples as 16-bit PCM WAV and stores them under a fresh
// unique name. On failure nothing is left in the store.
func (w *Writer) Persist(ctx context.Context, samples []float64, sampleRate, channels int, style styles.Style) (Asset, error) {
	const op = "persist asset"

	if len(samples) == 0 {
		return Asset{}, errs.Errorf(errs.Storage, op, "no samples to write")
	}
	data, err := audio.WAVBytes(samples, sampleRate, channels)
	if err != nil {
		return Asset{}, errs.E(errs.Storage, op, err)
	}

	name, err := w.reserveName(ctx, style)
	if err != nil {
		return Asset{}, errs.E(errs.Storage, op, err)
	}
	if err := w.store.Put(ctx, name, bytes.NewReader(data)); err != nil {
		return Asset{}, errs.E(errs.Storage, op, err)
	}

	asset := Asset{
		Filename:   name,
		Path:       w.store.Location(name),
		Style:      style,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   float64(len(samples)/channels) / float64(sampleRate),
		SizeBytes:  int64(len(data)),
	}
	logger.Info("Audio saved", logger.Fields{
		"filename":   asset.Filename,
		"path":       asset.Path,
		"size_bytes": asset.SizeBytes,
	})
	return asset, nil
}

// reserveName picks a name not yet present in the store.
func (w *Writer) reserveName(ctx context.Context, style styles.Style) (string, error) {
	for i := 0; i < maxAttempts; i++ {
		name := w.Filename(style, w.newID())
		exists, err := w.store.Exists(ctx, name)
		if err != nil {
			return "", err
		}
		if !exists {
			return name, nil
		}
	}
	return "", fmt.Errorf("no free filename after %d attempts", maxAttempts)
}

// Open returns the stored clip called name. Names must be plain file names;
// anything that could resolve outside the store is Forbidden.
func (w *Writer) Open(ctx context.Context, name string) (io.ReadCloser, storage.Object, error) {
	const op = "open asset"

	if err := checkName(name); err != nil {
		return nil, storage.Object{}, errs.E(errs.Forbidden, op, err)
	}
	if strings.HasPrefix(name, ".") {
		return nil, storage.Object{}, errs.Errorf(errs.NotFound, op, "audio file %s not found", name)
	}

	obj, err := w.store.Stat(ctx, name)
	if err != nil {
		return nil, storage.Object{}, storeError(op, name, err)
	}
	r, err := w.store.Read(ctx, name)
	if err != nil {
		return nil, storage.Object{}, storeError(op, name, err)
	}
	return r, obj, nil
}

// List returns every stored clip, newest name first.
func (w *Writer) List(ctx context.Context) ([]Listing, error) {
	objs, err := w.store.List(ctx)
	if err != nil {
		return nil, errs.E(errs.Storage, "list assets", err)
	}

	out := make([]Listing, 0, len(objs))
	for _, o := range objs {
		if !strings.HasSuffix(o.Name, Extension) {
			continue
		}
		l := Listing{Filename: o.Name, SizeBytes: o.Size}
		if style, _, ok := w.ParseFilename(o.Name); ok {
			l.Style = style
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename > out[j].Filename })
	return out, nil
}

func checkName(name string) error {
	clean, err := storage.CleanPath(name)
	if err != nil {
		return err
	}
	if clean != name || strings.Contains(name, "/") {
		return fmt.Errorf("%q is not a plain file name", name)
	}
	return nil
}

func storeError(op, name string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return errs.E(errs.NotFound, op, fmt.Errorf("audio file %s not found", name))
	case errors.Is(err, storage.ErrInvalidPath):
		return errs.E(errs.Forbidden, op, err)
	}
	return errs.E(errs.Storage, op, err)
}
