// Package generation chains prompt building, synthesis, post-processing
// and persistence into a single Generate call.
package generation

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/liujianjie/BeatForgeAI/internal/assets"
	"github.com/liujianjie/BeatForgeAI/internal/audio"
	"github.com/liujianjie/BeatForgeAI/internal/errs"
	"github.com/liujianjie/BeatForgeAI/internal/logger"
	"github.com/liujianjie/BeatForgeAI/internal/models"
	"github.com/liujianjie/BeatForgeAI/internal/musicgen"
	"github.com/liujianjie/BeatForgeAI/internal/prompt"
	"github.com/liujianjie/BeatForgeAI/internal/styles"
)

// Pipeline stages, reported as the Op of a failed Generate.
const (
	StageLoad        = "model load"
	StageSynthesize  = "synthesis"
	StagePostprocess = "post-processing"
	StagePersist     = "persistence"
)

// Normalization modes
const (
	NormalizePeak = "peak"
	NormalizeRMS  = "rms"
)

// Synthesizer is the model gateway as seen by the pipeline.
type Synthesizer interface {
	EnsureLoaded(ctx context.Context) error
	Synthesize(ctx context.Context, prompt string, durationSeconds int, seed *int64) (musicgen.RawAudio, error)
	Device() string
	Model() string
}

// AssetWriter stores a finished clip.
type AssetWriter interface {
	Persist(ctx context.Context, samples []float64, sampleRate, channels int, style styles.Style) (assets.Asset, error)
}

// Options tunes post-processing and limits.
type Options struct {
	MaxDuration   int
	NormalizeMode string // peak (default) or rms
	TargetLevelDB float64
	ApplyFades    bool
	FadeInMs      int
	FadeOutMs     int
}

// Result is what a successful Generate hands back.
type Result struct {
	Filename string
	Elapsed  time.Duration
	Metadata models.GenerationMetadata
	Audio    models.AudioInfo
	Asset    assets.Asset
}

// Pipeline runs generations. It is safe for concurrent use; concurrency
// limits live in the Synthesizer.
type Pipeline struct {
	model     Synthesizer
	writer    AssetWriter
	catalogue *styles.Catalogue
	prompts   *prompt.Builder
	opts      Options
}

// NewPipeline wires a pipeline. A nil catalogue uses styles.Default().
func NewPipeline(model Synthesizer, writer AssetWriter, catalogue *styles.Catalogue, opts Options) *Pipeline {
	if catalogue == nil {
		catalogue = styles.Default()
	}
	if opts.NormalizeMode == "" {
		opts.NormalizeMode = NormalizePeak
	}
	return &Pipeline{
		model:     model,
		writer:    writer,
		catalogue: catalogue,
		prompts:   prompt.NewPromptBuilder(),
		opts:      opts,
	}
}

// Generate turns a validated request into a stored clip. Durations above
// the configured maximum are capped, not rejected. No stage is retried.
func (p *Pipeline) Generate(ctx context.Context, req models.GenerationRequest) (*Result, error) {
	start := time.Now()

	if err := p.stage(ctx, StageLoad, errs.ModelLoad, func(ctx context.Context) error {
		return p.model.EnsureLoaded(ctx)
	}); err != nil {
		return nil, err
	}

	entry := p.catalogue.Lookup(req.Style)
	text := p.prompts.Build(req, entry)
	duration := p.capDuration(req.Duration)

	logger.Info("Generating music", logger.Fields{
		"prompt":   text,
		"style":    string(entry.ID),
		"duration": duration,
	})

	var raw musicgen.RawAudio
	if err := p.stage(ctx, StageSynthesize, errs.Synthesis, func(ctx context.Context) error {
		var err error
		raw, err = p.model.Synthesize(ctx, text, duration, req.Seed)
		return err
	}); err != nil {
		return nil, err
	}

	var samples []float64
	if err := p.stage(ctx, StagePostprocess, errs.Synthesis, func(context.Context) error {
		samples = p.postprocess(raw)
		if len(samples) == 0 {
			return errs.Errorf(errs.Synthesis, "mixdown", "no samples left")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	var asset assets.Asset
	if err := p.stage(ctx, StagePersist, errs.Storage, func(ctx context.Context) error {
		var err error
		asset, err = p.writer.Persist(ctx, samples, raw.SampleRate, 1, entry.ID)
		return err
	}); err != nil {
		return nil, err
	}

	info := audio.Describe(samples, raw.SampleRate)
	metadata := models.GenerationMetadata{
		Prompt:            text,
		Style:             entry.ID,
		BPM:               req.BPM,
		Key:               req.Key,
		Energy:            req.Energy,
		RequestedDuration: duration,
		ActualDuration:    math.Round(raw.Duration()*100) / 100,
		SampleRate:        raw.SampleRate,
		Device:            p.model.Device(),
		Model:             p.model.Model(),
	}

	elapsed := time.Since(start)
	logger.Info("Generation completed", logger.Fields{
		"filename":        asset.Filename,
		"elapsed_seconds": elapsed.Seconds(),
		"actual_duration": metadata.ActualDuration,
	})
	return &Result{
		Filename: asset.Filename,
		Elapsed:  elapsed,
		Metadata: metadata,
		Audio:    info,
		Asset:    asset,
	}, nil
}

// stage runs fn inside a Sentry span and tags any error with the stage.
// Errors without a kind get the stage's default.
func (p *Pipeline) stage(ctx context.Context, name string, kind errs.Kind, fn func(context.Context) error) error {
	span := sentry.StartSpan(ctx, "generation.stage")
	span.Description = name
	defer span.Finish()

	err := fn(span.Context())
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		if k := errs.KindOf(err); k != errs.Unknown {
			kind = k
		}
		return &errs.Error{Kind: kind, Op: name, Err: err}
	}
	span.Status = sentry.SpanStatusOK
	return nil
}

func (p *Pipeline) capDuration(d int) int {
	if p.opts.MaxDuration > 0 && d > p.opts.MaxDuration {
		return p.opts.MaxDuration
	}
	return d
}

// postprocess mixes down to mono, then normalizes and optionally fades.
func (p *Pipeline) postprocess(raw musicgen.RawAudio) []float64 {
	samples := raw.Mono()
	if p.opts.NormalizeMode == NormalizeRMS {
		samples = audio.Normalize(samples, p.opts.TargetLevelDB)
	} else {
		samples = audio.NormalizePeak(samples)
	}
	if p.opts.ApplyFades {
		samples = audio.ApplyFades(samples, raw.SampleRate, p.opts.FadeInMs, p.opts.FadeOutMs)
	}
	return samples
}

// StageOf returns the pipeline stage a Generate error came from, or "".
func StageOf(err error) string {
	var e *errs.Error
	if errors.As(err, &e) {
		switch e.Op {
		case StageLoad, StageSynthesize, StagePostprocess, StagePersist:
			return e.Op
		}
	}
	return ""
}
