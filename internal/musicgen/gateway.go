// Package musicgen owns the lifecycle of the generative audio model: lazy
// loading, device selection, and serialized access to synthesis.
package musicgen

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/liujianjie/BeatForgeAI/internal/errs"
	"github.com/liujianjie/BeatForgeAI/internal/logger"
)

// TokensPerSecond is the model's generation step rate.
const TokensPerSecond = 50

// Devices
const (
	DeviceAuto = "auto"
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

// State is a step of the model lifecycle.
type State int

const (
	Unloaded State = iota
	Loading
	Loaded
	LoadFailed
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case LoadFailed:
		return "load_failed"
	}
	return "unknown"
}

// RawAudio is a freshly synthesized, unprocessed buffer.
type RawAudio struct {
	Samples    []float64 // interleaved
	Channels   int
	SampleRate int
}

// Frames returns the number of samples per channel.
func (r RawAudio) Frames() int {
	if r.Channels <= 0 {
		return 0
	}
	return len(r.Samples) / r.Channels
}

// Duration returns the buffer length in seconds.
func (r RawAudio) Duration() float64 {
	if r.SampleRate <= 0 {
		return 0
	}
	return float64(r.Frames()) / float64(r.SampleRate)
}

// Mono averages all channels into one.
func (r RawAudio) Mono() []float64 {
	if r.Channels <= 1 {
		out := make([]float64, len(r.Samples))
		copy(out, r.Samples)
		return out
	}
	frames := r.Frames()
	out := make([]float64, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		for c := 0; c < r.Channels; c++ {
			sum += r.Samples[f*r.Channels+c]
		}
		out[f] = sum / float64(r.Channels)
	}
	return out
}

// Status is a snapshot of the gateway.
type Status struct {
	Loaded               bool    `json:"loaded"`
	State                string  `json:"state"`
	Device               string  `json:"device"`
	AcceleratorAvailable bool    `json:"accelerator_available"`
	Model                string  `json:"model"`
	LoadLatencySeconds   float64 `json:"load_latency_seconds,omitempty"`
	LastError            string  `json:"last_error,omitempty"`
}

// Options configures a Gateway.
type Options struct {
	Model            string
	Device           string // auto, cuda or cpu
	SampleRate       int    // expected model output rate
	GuidanceScale    float64
	Concurrency      int           // parallel synthesis slots
	QueueTimeout     time.Duration // 0 waits forever
	SynthesisTimeout time.Duration // 0 disables

	// OnLoad, if set, is called after every load attempt.
	OnLoad func(ctx context.Context, latency time.Duration, err error)
}

type loadCall struct {
	done chan struct{}
	err  error
}

// Gateway serializes access to a single model instance.
type Gateway struct {
	backend Backend
	opts    Options
	slots   *semaphore.Weighted

	mu          sync.Mutex
	state       State
	device      string
	accelerator bool
	loadLatency time.Duration
	lastErr     error
	inflight    *loadCall
}

// NewGateway creates an unloaded gateway. Nothing touches the backend until
// the first EnsureLoaded.
func NewGateway(backend Backend, opts Options) *Gateway {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	opts.Device = strings.ToLower(strings.TrimSpace(opts.Device))
	if opts.Device == "" {
		opts.Device = DeviceAuto
	}
	return &Gateway{
		backend: backend,
		opts:    opts,
		slots:   semaphore.NewWeighted(int64(opts.Concurrency)),
		state:   Unloaded,
	}
}

// EnsureLoaded loads the model if it is not loaded yet. Concurrent callers
// share a single load; after a failure the next call tries again. The load
// itself is not tied to ctx, so one caller giving up does not fail the
// others.
func (g *Gateway) EnsureLoaded(ctx context.Context) error {
	const op = "ensure loaded"

	g.mu.Lock()
	if g.state == Loaded {
		g.mu.Unlock()
		return nil
	}
	call := g.inflight
	if call == nil {
		call = &loadCall{done: make(chan struct{})}
		g.inflight = call
		g.state = Loading
		go g.load(context.WithoutCancel(ctx), call)
	}
	g.mu.Unlock()

	select {
	case <-call.done:
		return call.err
	case <-ctx.Done():
		return errs.E(errs.ModelLoad, op, ctx.Err())
	}
}

func (g *Gateway) load(ctx context.Context, call *loadCall) {
	start := time.Now()
	device, accelerator, err := g.resolveAndLoad(ctx)
	latency := time.Since(start)

	g.mu.Lock()
	g.accelerator = accelerator
	if err != nil {
		g.state = LoadFailed
		g.lastErr = err
		call.err = err
	} else {
		g.state = Loaded
		g.device = device
		g.loadLatency = latency
		g.lastErr = nil
	}
	g.inflight = nil
	close(call.done)
	g.mu.Unlock()

	if err != nil {
		logger.Error("Model load failed", err, logger.Fields{
			"model":      g.opts.Model,
			"device":     device,
			"latency_ms": latency.Milliseconds(),
		})
	} else {
		logger.Info("Model loaded", logger.Fields{
			"model":      g.opts.Model,
			"device":     device,
			"latency_ms": latency.Milliseconds(),
		})
	}
	if g.opts.OnLoad != nil {
		g.opts.OnLoad(ctx, latency, err)
	}
}

func (g *Gateway) resolveAndLoad(ctx context.Context) (device string, accelerator bool, err error) {
	const op = "load model"

	device = g.opts.Device
	if device == DeviceAuto {
		h, err := g.backend.Health(ctx)
		if err != nil {
			return "", false, errs.E(errs.ModelLoad, op, err)
		}
		accelerator = h.Accelerator
		device = DeviceCPU
		if accelerator {
			device = DeviceCUDA
		}
	} else if device != DeviceCUDA && device != DeviceCPU {
		return "", false, errs.Errorf(errs.ModelLoad, op, "unsupported device %q", device)
	} else {
		accelerator = device == DeviceCUDA
	}

	logger.Info("Loading model", logger.Fields{"model": g.opts.Model, "device": device})
	if err := g.backend.Load(ctx, g.opts.Model, device); err != nil {
		return device, accelerator, errs.E(errs.ModelLoad, op, err)
	}
	return device, accelerator, nil
}

// Synthesize generates roughly durationSeconds of audio for prompt. The
// model must be loaded. A nil seed leaves sampling unseeded.
func (g *Gateway) Synthesize(ctx context.Context, prompt string, durationSeconds int, seed *int64) (RawAudio, error) {
	const op = "synthesize"

	if st := g.State(); st != Loaded {
		return RawAudio{}, errs.Errorf(errs.ModelLoad, op, "model is %s", st)
	}
	if durationSeconds <= 0 {
		return RawAudio{}, errs.Errorf(errs.Synthesis, op, "invalid duration %d", durationSeconds)
	}

	if err := g.acquire(ctx); err != nil {
		return RawAudio{}, err
	}
	defer g.slots.Release(1)

	sctx := ctx
	if g.opts.SynthesisTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, g.opts.SynthesisTimeout)
		defer cancel()
	}

	out, err := g.backend.Generate(sctx, GenerateParams{
		Prompt:        prompt,
		MaxNewTokens:  durationSeconds * TokensPerSecond,
		DoSample:      true,
		GuidanceScale: g.opts.GuidanceScale,
		Seed:          seed,
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
			return RawAudio{}, errs.E(errs.Timeout, op, fmt.Errorf("synthesis exceeded %s: %w", g.opts.SynthesisTimeout, err))
		}
		return RawAudio{}, errs.E(errs.Synthesis, op, err)
	}

	raw, err := g.convert(out)
	if err != nil {
		return RawAudio{}, errs.E(errs.Synthesis, op, err)
	}
	return raw, nil
}

// acquire takes a synthesis slot, giving up after QueueTimeout.
func (g *Gateway) acquire(ctx context.Context) error {
	const op = "acquire synthesis slot"

	qctx := ctx
	if g.opts.QueueTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, g.opts.QueueTimeout)
		defer cancel()
	}
	if err := g.slots.Acquire(qctx, 1); err != nil {
		if ctx.Err() != nil {
			return errs.E(errs.Synthesis, op, ctx.Err())
		}
		return errs.E(errs.Busy, op, fmt.Errorf("no synthesis slot free within %s", g.opts.QueueTimeout))
	}
	return nil
}

func (g *Gateway) convert(out *Output) (RawAudio, error) {
	if out == nil || len(out.Samples) == 0 {
		return RawAudio{}, errors.New("model returned no audio")
	}

	channels := out.Channels
	if channels == 0 {
		channels = 1
	}
	if channels < 0 || len(out.Samples)%channels != 0 {
		return RawAudio{}, fmt.Errorf("malformed buffer: %d samples for %d channels", len(out.Samples), out.Channels)
	}

	rate := out.SampleRate
	if rate == 0 {
		rate = g.opts.SampleRate
	}
	if g.opts.SampleRate > 0 && rate != g.opts.SampleRate {
		return RawAudio{}, fmt.Errorf("unexpected sample rate %d, want %d", rate, g.opts.SampleRate)
	}

	samples := make([]float64, len(out.Samples))
	for i, s := range out.Samples {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return RawAudio{}, fmt.Errorf("malformed buffer: non-finite sample at %d", i)
		}
		samples[i] = v
	}
	return RawAudio{Samples: samples, Channels: channels, SampleRate: rate}, nil
}

// State returns the current lifecycle state.
func (g *Gateway) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Device returns the device the model was loaded on, or "" before a load.
func (g *Gateway) Device() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.device
}

// Model returns the configured model identifier.
func (g *Gateway) Model() string {
	return g.opts.Model
}

// Status returns a snapshot of the gateway without touching the backend.
func (g *Gateway) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Status{
		Loaded:               g.state == Loaded,
		State:                g.state.String(),
		Device:               g.device,
		AcceleratorAvailable: g.accelerator,
		Model:                g.opts.Model,
		LoadLatencySeconds:   math.Round(g.loadLatency.Seconds()*100) / 100,
	}
	if s.Device == "" {
		s.Device = g.opts.Device
	}
	if g.lastErr != nil {
		s.LastError = g.lastErr.Error()
	}
	return s
}
