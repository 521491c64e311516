package assets

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liujianjie/BeatForgeAI/internal/audio"
	"github.com/liujianjie/BeatForgeAI/internal/errs"
	"github.com/liujianjie/BeatForgeAI/internal/storage"
	"github.com/liujianjie/BeatForgeAI/internal/styles"
)

var filenamePattern = regexp.MustCompile(`^beatforge_[a-z_]+_[0-9a-f]{8}\.wav$`)

func newTestWriter(t *testing.T) (*Writer, *storage.Local) {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	return NewWriter(store, ""), store
}

func tone(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5
		if i%2 == 1 {
			out[i] = -0.5
		}
	}
	return out
}

func TestPersistWritesWAV(t *testing.T) {
	w, store := newTestWriter(t)
	ctx := context.Background()

	asset, err := w.Persist(ctx, tone(32000*2), 32000, 1, styles.Techno)
	require.NoError(t, err)

	assert.Regexp(t, filenamePattern, asset.Filename)
	assert.True(t, strings.HasPrefix(asset.Filename, "beatforge_techno_"))
	assert.Equal(t, filepath.Join(store.Root(), asset.Filename), asset.Path)
	assert.Equal(t, 32000, asset.SampleRate)
	assert.Equal(t, 1, asset.Channels)
	assert.InDelta(t, 2.0, asset.Duration, 1e-9)
	assert.Equal(t, int64(44+32000*2*2), asset.SizeBytes)

	f, err := os.Open(asset.Path)
	require.NoError(t, err)
	defer f.Close()
	samples, rate, channels, err := audio.DecodeWAV(f)
	require.NoError(t, err)
	assert.Equal(t, 32000, rate)
	assert.Equal(t, 1, channels)
	require.Len(t, samples, 64000)
	assert.InDelta(t, 0.5, samples[0], 1.0/32767)
}

func TestPersistUniqueNames(t *testing.T) {
	w, _ := newTestWriter(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		asset, err := w.Persist(ctx, tone(100), 32000, 1, styles.DrumAndBass)
		require.NoError(t, err)
		assert.False(t, seen[asset.Filename], "duplicate %s", asset.Filename)
		seen[asset.Filename] = true
	}
}

func TestPersistRetriesOnCollision(t *testing.T) {
	w, _ := newTestWriter(t)
	ctx := context.Background()

	ids := []string{"aaaaaaaa", "aaaaaaaa", "bbbbbbbb"}
	w.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := w.Persist(ctx, tone(10), 32000, 1, styles.House)
	require.NoError(t, err)
	second, err := w.Persist(ctx, tone(10), 32000, 1, styles.House)
	require.NoError(t, err)

	assert.Equal(t, "beatforge_house_aaaaaaaa.wav", first.Filename)
	assert.Equal(t, "beatforge_house_bbbbbbbb.wav", second.Filename)
}

func TestPersistGivesUpAfterRepeatedCollisions(t *testing.T) {
	w, _ := newTestWriter(t)
	w.newID = func() string { return "cccccccc" }
	ctx := context.Background()

	_, err := w.Persist(ctx, tone(10), 32000, 1, styles.House)
	require.NoError(t, err)
	_, err = w.Persist(ctx, tone(10), 32000, 1, styles.House)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Storage))
}

func TestPersistRejectsEmptyAndBadFormat(t *testing.T) {
	w, store := newTestWriter(t)
	ctx := context.Background()

	_, err := w.Persist(ctx, nil, 32000, 1, styles.House)
	assert.True(t, errs.Is(err, errs.Storage))
	_, err = w.Persist(ctx, tone(10), 32000, 0, styles.House)
	assert.True(t, errs.Is(err, errs.Storage))

	objs, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, objs)
}

// brokenStore fails every Put after Exists says the name is free.
type brokenStore struct {
	storage.FileStore
}

func (brokenStore) Exists(context.Context, string) (bool, error) { return false, nil }
func (brokenStore) Put(context.Context, string, io.Reader) error {
	return errors.New("no space left on device")
}

func TestPersistStorageFailure(t *testing.T) {
	w := NewWriter(brokenStore{}, "beatforge")
	_, err := w.Persist(context.Background(), tone(10), 32000, 1, styles.Ambient)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Storage))
	assert.Contains(t, err.Error(), "no space left")
}

func TestOpen(t *testing.T) {
	w, _ := newTestWriter(t)
	ctx := context.Background()
	asset, err := w.Persist(ctx, tone(100), 32000, 1, styles.Trance)
	require.NoError(t, err)

	r, obj, err := w.Open(ctx, asset.Filename)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, asset.SizeBytes, obj.Size)
	assert.Len(t, data, int(asset.SizeBytes))
	assert.Equal(t, "RIFF", string(data[:4]))
}

func TestOpenNotFound(t *testing.T) {
	w, _ := newTestWriter(t)
	_, _, err := w.Open(context.Background(), "beatforge_house_00000000.wav")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestOpenForbidden(t *testing.T) {
	w, store := newTestWriter(t)
	ctx := context.Background()
	secret := filepath.Join(filepath.Dir(store.Root()), "secret.wav")
	require.NoError(t, os.WriteFile(secret, []byte("RIFF"), 0o644))

	for _, name := range []string{"../secret.wav", "../../etc/passwd", "/etc/passwd", "a/b.wav", "./x.wav", ".."} {
		_, _, err := w.Open(ctx, name)
		require.Error(t, err, "name %q", name)
		assert.True(t, errs.Is(err, errs.Forbidden), "name %q: %v", name, err)
	}
}

func TestOpenHidesTempFiles(t *testing.T) {
	w, store := newTestWriter(t)
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), ".tmp-123"), []byte("RI"), 0o644))
	_, _, err := w.Open(context.Background(), ".tmp-123")
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestList(t *testing.T) {
	w, store := newTestWriter(t)
	ctx := context.Background()

	ids := []string{"11111111", "33333333", "22222222"}
	w.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	_, err := w.Persist(ctx, tone(10), 32000, 1, styles.LoFi)
	require.NoError(t, err)
	_, err = w.Persist(ctx, tone(10), 32000, 1, styles.DrumAndBass)
	require.NoError(t, err)
	_, err = w.Persist(ctx, tone(10), 32000, 1, styles.House)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "imported.wav"), []byte("RIFF"), 0o644))

	list, err := w.List(ctx)
	require.NoError(t, err)

	var names []string
	for _, l := range list {
		names = append(names, l.Filename)
	}
	assert.Equal(t, []string{
		"imported.wav",
		"beatforge_lo_fi_11111111.wav",
		"beatforge_house_22222222.wav",
		"beatforge_drum_and_bass_33333333.wav",
	}, names)

	assert.Equal(t, styles.Style(""), list[0].Style)
	assert.Equal(t, styles.LoFi, list[1].Style)
	assert.Equal(t, styles.House, list[2].Style)
	assert.Equal(t, styles.DrumAndBass, list[3].Style)
	assert.Equal(t, int64(44+20), list[1].SizeBytes)
}

func TestListEmpty(t *testing.T) {
	w, _ := newTestWriter(t)
	list, err := w.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)
}

func TestParseFilename(t *testing.T) {
	w := NewWriter(nil, "beatforge")

	style, id, ok := w.ParseFilename("beatforge_drum_and_bass_0a1b2c3d.wav")
	require.True(t, ok)
	assert.Equal(t, styles.DrumAndBass, style)
	assert.Equal(t, "0a1b2c3d", id)

	for _, name := range []string{
		"beatforge_polka_0a1b2c3d.wav",
		"other_house_0a1b2c3d.wav",
		"beatforge_house_0a1b.wav",
		"beatforge_house_0a1b2c3d.mp3",
	} {
		_, _, ok := w.ParseFilename(name)
		assert.False(t, ok, name)
	}
}

func TestFilenameRoundTrip(t *testing.T) {
	w := NewWriter(nil, "clip")
	for _, s := range styles.All() {
		name := w.Filename(s, randomID())
		got, _, ok := w.ParseFilename(name)
		require.True(t, ok, name)
		assert.Equal(t, s, got)
	}
}
