package musicgen

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liujianjie/BeatForgeAI/internal/errs"
)

// MockBackend is a test implementation of the Backend interface
type MockBackend struct {
	healthFunc   func(ctx context.Context) (Health, error)
	loadFunc     func(ctx context.Context, model, device string) error
	generateFunc func(ctx context.Context, params GenerateParams) (*Output, error)

	loads atomic.Int32
}

func (m *MockBackend) Health(ctx context.Context) (Health, error) {
	if m.healthFunc != nil {
		return m.healthFunc(ctx)
	}
	return Health{Status: "ok"}, nil
}

func (m *MockBackend) Load(ctx context.Context, model, device string) error {
	m.loads.Add(1)
	if m.loadFunc != nil {
		return m.loadFunc(ctx, model, device)
	}
	return nil
}

func (m *MockBackend) Generate(ctx context.Context, params GenerateParams) (*Output, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, params)
	}
	return &Output{Samples: make([]float32, params.MaxNewTokens*640), SampleRate: 32000, Channels: 1}, nil
}

func testOptions() Options {
	return Options{
		Model:         "facebook/musicgen-small",
		Device:        DeviceAuto,
		SampleRate:    32000,
		GuidanceScale: 3.0,
		Concurrency:   1,
	}
}

func loadedGateway(t *testing.T, b Backend, opts Options) *Gateway {
	t.Helper()
	g := NewGateway(b, opts)
	require.NoError(t, g.EnsureLoaded(context.Background()))
	return g
}

func TestNewGatewayIsUnloaded(t *testing.T) {
	b := &MockBackend{}
	g := NewGateway(b, testOptions())

	assert.Equal(t, Unloaded, g.State())
	assert.Equal(t, int32(0), b.loads.Load())
	st := g.Status()
	assert.False(t, st.Loaded)
	assert.Equal(t, "unloaded", st.State)
	assert.Equal(t, "facebook/musicgen-small", st.Model)
}

func TestEnsureLoadedIsIdempotent(t *testing.T) {
	b := &MockBackend{}
	g := NewGateway(b, testOptions())
	ctx := context.Background()

	require.NoError(t, g.EnsureLoaded(ctx))
	require.NoError(t, g.EnsureLoaded(ctx))
	assert.Equal(t, int32(1), b.loads.Load())
	assert.Equal(t, Loaded, g.State())
}

func TestConcurrentFirstCallsShareOneLoad(t *testing.T) {
	release := make(chan struct{})
	b := &MockBackend{
		loadFunc: func(ctx context.Context, model, device string) error {
			<-release
			return nil
		},
	}
	g := NewGateway(b, testOptions())

	const callers = 16
	var wg sync.WaitGroup
	errCh := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- g.EnsureLoaded(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return g.State() == Loading }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), b.loads.Load())
	assert.Equal(t, Loaded, g.State())
}

func TestLoadFailureAllowsRetry(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	b := &MockBackend{
		loadFunc: func(ctx context.Context, model, device string) error {
			if fail.Load() {
				return errors.New("out of memory")
			}
			return nil
		},
	}
	g := NewGateway(b, testOptions())
	ctx := context.Background()

	err := g.EnsureLoaded(ctx)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ModelLoad))
	assert.Contains(t, err.Error(), "out of memory")
	assert.Equal(t, LoadFailed, g.State())
	assert.Contains(t, g.Status().LastError, "out of memory")

	fail.Store(false)
	require.NoError(t, g.EnsureLoaded(ctx))
	assert.Equal(t, Loaded, g.State())
	assert.Empty(t, g.Status().LastError)
	assert.Equal(t, int32(2), b.loads.Load())
}

func TestEnsureLoadedCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	b := &MockBackend{
		loadFunc: func(ctx context.Context, model, device string) error {
			<-release
			return nil
		},
	}
	g := NewGateway(b, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.EnsureLoaded(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// the load keeps going for everyone else
	close(release)
	require.NoError(t, g.EnsureLoaded(context.Background()))
	assert.Equal(t, int32(1), b.loads.Load())
}

func TestDeviceSelection(t *testing.T) {
	tests := []struct {
		name        string
		pref        string
		accelerator bool
		wantDevice  string
		wantHealth  bool
	}{
		{"auto with accelerator", DeviceAuto, true, DeviceCUDA, true},
		{"auto without accelerator", DeviceAuto, false, DeviceCPU, true},
		{"forced cpu", DeviceCPU, true, DeviceCPU, false},
		{"forced cuda", "CUDA", false, DeviceCUDA, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var healthCalled bool
			var loadedOn string
			b := &MockBackend{
				healthFunc: func(ctx context.Context) (Health, error) {
					healthCalled = true
					return Health{Status: "ok", Accelerator: tt.accelerator}, nil
				},
				loadFunc: func(ctx context.Context, model, device string) error {
					loadedOn = device
					return nil
				},
			}
			opts := testOptions()
			opts.Device = tt.pref
			g := loadedGateway(t, b, opts)

			assert.Equal(t, tt.wantDevice, loadedOn)
			assert.Equal(t, tt.wantDevice, g.Device())
			assert.Equal(t, tt.wantHealth, healthCalled)
		})
	}
}

func TestUnsupportedDevice(t *testing.T) {
	opts := testOptions()
	opts.Device = "tpu"
	err := NewGateway(&MockBackend{}, opts).EnsureLoaded(context.Background())
	assert.True(t, errs.Is(err, errs.ModelLoad))
}

func TestHealthFailureIsLoadError(t *testing.T) {
	b := &MockBackend{
		healthFunc: func(ctx context.Context) (Health, error) {
			return Health{}, errors.New("connection refused")
		},
	}
	err := NewGateway(b, testOptions()).EnsureLoaded(context.Background())
	assert.True(t, errs.Is(err, errs.ModelLoad))
	assert.Equal(t, int32(0), b.loads.Load())
}

func TestOnLoadHook(t *testing.T) {
	var calls atomic.Int32
	opts := testOptions()
	opts.OnLoad = func(ctx context.Context, latency time.Duration, err error) {
		calls.Add(1)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, latency, time.Duration(0))
	}
	loadedGateway(t, &MockBackend{}, opts)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSynthesizeRequiresLoadedModel(t *testing.T) {
	g := NewGateway(&MockBackend{}, testOptions())
	_, err := g.Synthesize(context.Background(), "prompt", 10, nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.ModelLoad))
}

func TestSynthesizeParameters(t *testing.T) {
	var got GenerateParams
	b := &MockBackend{
		generateFunc: func(ctx context.Context, params GenerateParams) (*Output, error) {
			got = params
			return &Output{Samples: make([]float32, 32000*10), SampleRate: 32000, Channels: 1}, nil
		},
	}
	g := loadedGateway(t, b, testOptions())
	seed := int64(42)

	raw, err := g.Synthesize(context.Background(), "house music, groove", 10, &seed)
	require.NoError(t, err)

	assert.Equal(t, "house music, groove", got.Prompt)
	assert.Equal(t, 500, got.MaxNewTokens)
	assert.True(t, got.DoSample)
	assert.Equal(t, 3.0, got.GuidanceScale)
	require.NotNil(t, got.Seed)
	assert.Equal(t, int64(42), *got.Seed)

	assert.Equal(t, 32000, raw.SampleRate)
	assert.Equal(t, 1, raw.Channels)
	assert.InDelta(t, 10.0, raw.Duration(), 1e-9)
}

func TestSynthesizeRejectsBadBuffers(t *testing.T) {
	tests := []struct {
		name string
		out  *Output
	}{
		{"nil", nil},
		{"empty", &Output{SampleRate: 32000, Channels: 1}},
		{"ragged", &Output{Samples: make([]float32, 3), SampleRate: 32000, Channels: 2}},
		{"wrong rate", &Output{Samples: make([]float32, 10), SampleRate: 44100, Channels: 1}},
		{"nan", &Output{Samples: []float32{0, float32(math.NaN())}, SampleRate: 32000, Channels: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &MockBackend{
				generateFunc: func(ctx context.Context, params GenerateParams) (*Output, error) {
					return tt.out, nil
				},
			}
			g := loadedGateway(t, b, testOptions())
			_, err := g.Synthesize(context.Background(), "p", 5, nil)
			require.Error(t, err)
			assert.True(t, errs.Is(err, errs.Synthesis))
		})
	}
}

func TestSynthesizeBackendError(t *testing.T) {
	b := &MockBackend{
		generateFunc: func(ctx context.Context, params GenerateParams) (*Output, error) {
			return nil, errors.New("CUDA error: device-side assert")
		},
	}
	g := loadedGateway(t, b, testOptions())
	_, err := g.Synthesize(context.Background(), "p", 5, nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Synthesis))
	assert.Contains(t, err.Error(), "device-side assert")
}

func TestSynthesizeBusy(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	b := &MockBackend{
		generateFunc: func(ctx context.Context, params GenerateParams) (*Output, error) {
			close(started)
			<-release
			return &Output{Samples: make([]float32, 100), SampleRate: 32000, Channels: 1}, nil
		},
	}
	opts := testOptions()
	opts.QueueTimeout = 20 * time.Millisecond
	g := loadedGateway(t, b, opts)

	done := make(chan error, 1)
	go func() {
		_, err := g.Synthesize(context.Background(), "first", 5, nil)
		done <- err
	}()
	<-started

	_, err := g.Synthesize(context.Background(), "second", 5, nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Busy))

	close(release)
	assert.NoError(t, <-done)
}

func TestSynthesizeTimeout(t *testing.T) {
	b := &MockBackend{
		generateFunc: func(ctx context.Context, params GenerateParams) (*Output, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	opts := testOptions()
	opts.SynthesisTimeout = 20 * time.Millisecond
	g := loadedGateway(t, b, opts)

	_, err := g.Synthesize(context.Background(), "p", 5, nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Timeout))

	// the slot was released
	b.generateFunc = nil
	_, err = g.Synthesize(context.Background(), "p", 5, nil)
	assert.NoError(t, err)
}

func TestSynthesizeCallerCancellation(t *testing.T) {
	b := &MockBackend{
		generateFunc: func(ctx context.Context, params GenerateParams) (*Output, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	opts := testOptions()
	opts.SynthesisTimeout = time.Minute
	g := loadedGateway(t, b, opts)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Synthesize(ctx, "p", 5, nil)
	require.Error(t, err)
	assert.False(t, errs.Is(err, errs.Timeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSynthesisIsSerialized(t *testing.T) {
	var active, maxActive atomic.Int32
	b := &MockBackend{
		generateFunc: func(ctx context.Context, params GenerateParams) (*Output, error) {
			n := active.Add(1)
			for {
				m := maxActive.Load()
				if n <= m || maxActive.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			return &Output{Samples: make([]float32, 10), SampleRate: 32000, Channels: 1}, nil
		},
	}
	g := loadedGateway(t, b, testOptions())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Synthesize(context.Background(), "p", 5, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestRawAudioMono(t *testing.T) {
	raw := RawAudio{Samples: []float64{1, 0, 0.5, 0.5, -1, 1}, Channels: 2, SampleRate: 3}
	assert.Equal(t, 3, raw.Frames())
	assert.InDelta(t, 1.0, raw.Duration(), 1e-12)
	assert.Equal(t, []float64{0.5, 0.5, 0}, raw.Mono())

	mono := RawAudio{Samples: []float64{0.1, 0.2}, Channels: 1, SampleRate: 2}
	assert.Equal(t, []float64{0.1, 0.2}, mono.Mono())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unloaded", Unloaded.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "loaded", Loaded.String())
	assert.Equal(t, "load_failed", LoadFailed.String())
}
