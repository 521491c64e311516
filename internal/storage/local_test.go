package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	s, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	return s
}

func readAll(t *testing.T, s FileStore, name string) string {
	t.Helper()
	r, err := s.Read(context.Background(), name)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(got)
}

func TestLocalPutAndRead(t *testing.T) {
	s := newTestLocal(t)
	require.NoError(t, s.Put(context.Background(), "clip.wav", strings.NewReader("RIFF....WAVE")))
	assert.Equal(t, "RIFF....WAVE", readAll(t, s, "clip.wav"))
}

func TestLocalPutReplaces(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "f", strings.NewReader("long content here")))
	require.NoError(t, s.Put(ctx, "f", strings.NewReader("short")))
	assert.Equal(t, "short", readAll(t, s, "f"))
}

type failingReader struct{ n int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n <= 0 {
		return 0, errors.New("disk on fire")
	}
	n := min(len(p), r.n)
	r.n -= n
	return n, nil
}

func TestLocalPutFailureLeavesNothing(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	err := s.Put(ctx, "partial.wav", &failingReader{n: 128})
	require.Error(t, err)

	ok, err := s.Exists(ctx, "partial.wav")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file must be cleaned up")
}

func TestLocalPutCancelled(t *testing.T) {
	s := newTestLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, s.Put(ctx, "x.wav", bytes.NewReader([]byte{1, 2, 3})), context.Canceled)
	ok, _ := s.Exists(context.Background(), "x.wav")
	assert.False(t, ok)
}

func TestLocalReadNotExist(t *testing.T) {
	s := newTestLocal(t)
	_, err := s.Read(context.Background(), "no-such-file")
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLocalRejectsEscapingPaths(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	for _, name := range []string{"../secret", "../../etc/passwd", "/etc/passwd", "a/../../b", "", ".", "..\\x"} {
		_, err := s.Read(ctx, name)
		assert.ErrorIs(t, err, ErrInvalidPath, "name %q", name)
		assert.ErrorIs(t, s.Put(ctx, name, strings.NewReader("x")), ErrInvalidPath, "name %q", name)
	}
}

func TestLocalStat(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "a.wav", strings.NewReader("12345")))

	obj, err := s.Stat(ctx, "a.wav")
	require.NoError(t, err)
	assert.Equal(t, "a.wav", obj.Name)
	assert.Equal(t, int64(5), obj.Size)
	assert.False(t, obj.ModTime.IsZero())

	assert.Equal(t, filepath.Join(s.Root(), "a.wav"), s.Location("a.wav"))

	_, err = s.Stat(ctx, "b.wav")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalExists(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "present", strings.NewReader("")))
	ok, err = s.Exists(ctx, "present")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalList(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "b.wav", strings.NewReader("bb")))
	require.NoError(t, s.Put(ctx, "a.wav", strings.NewReader("a")))
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), tempPrefix+"123"), []byte("x"), 0o644))

	objs, err := s.List(ctx)
	require.NoError(t, err)
	sort.Slice(objs, func(i, j int) bool { return objs[i].Name < objs[j].Name })

	require.Len(t, objs, 2)
	assert.Equal(t, "a.wav", objs[0].Name)
	assert.Equal(t, int64(1), objs[0].Size)
	assert.Equal(t, "b.wav", objs[1].Name)
	assert.Equal(t, int64(2), objs[1].Size)
}

func TestNewLocalCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s, err := NewLocal(dir)
	require.NoError(t, err)
	info, err := os.Stat(s.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCleanPath(t *testing.T) {
	got, err := CleanPath("a/./b.wav")
	require.NoError(t, err)
	assert.Equal(t, "a/b.wav", got)

	_, err = CleanPath("a/../../b")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
