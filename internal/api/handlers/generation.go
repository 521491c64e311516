package handlers

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liujianjie/BeatForgeAI/internal/errs"
	"github.com/liujianjie/BeatForgeAI/internal/generation"
	"github.com/liujianjie/BeatForgeAI/internal/logger"
	"github.com/liujianjie/BeatForgeAI/internal/metrics"
	"github.com/liujianjie/BeatForgeAI/internal/models"
	"github.com/liujianjie/BeatForgeAI/internal/observability"
	"github.com/liujianjie/BeatForgeAI/internal/prompt"
	"github.com/liujianjie/BeatForgeAI/internal/styles"
)

// Generator runs one generation end to end.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*generation.Result, error)
}

type GenerationHandler struct {
	pipeline        Generator
	catalogue       *styles.Catalogue
	prompts         *prompt.Builder
	defaultDuration int
	modelName       string

	sentryMetrics *metrics.SentryMetrics
	cloudwatch    *metrics.Client
	langfuse      *observability.LangfuseClient
}

// GenerationOptions carries the handler's collaborators besides the pipeline.
type GenerationOptions struct {
	Catalogue       *styles.Catalogue
	DefaultDuration int
	ModelName       string
	CloudWatch      *metrics.Client
	Langfuse        *observability.LangfuseClient
}

func NewGenerationHandler(pipeline Generator, opts GenerationOptions) *GenerationHandler {
	if opts.Catalogue == nil {
		opts.Catalogue = styles.Default()
	}
	if opts.CloudWatch == nil {
		opts.CloudWatch = &metrics.Client{}
	}
	return &GenerationHandler{
		pipeline:        pipeline,
		catalogue:       opts.Catalogue,
		prompts:         prompt.NewPromptBuilder(),
		defaultDuration: opts.DefaultDuration,
		modelName:       opts.ModelName,
		sentryMetrics:   metrics.NewSentryMetrics(),
		cloudwatch:      opts.CloudWatch,
		langfuse:        opts.Langfuse,
	}
}

// GenerateResponse mirrors the generation envelope clients already parse.
// Optional fields are null on failure.
type GenerateResponse struct {
	Success        bool                       `json:"success"`
	Message        string                     `json:"message"`
	Filename       *string                    `json:"filename"`
	DownloadURL    *string                    `json:"download_url"`
	Duration       *float64                   `json:"duration"`
	GenerationTime *float64                   `json:"generation_time"`
	Metadata       *models.GenerationMetadata `json:"metadata"`
	Audio          *models.AudioInfo          `json:"audio,omitempty"`
	RequestID      string                     `json:"request_id,omitempty"`
}

// Generate handles POST /api/ai/generate
func (h *GenerationHandler) Generate(c *gin.Context) {
	req := models.NewGenerationRequest(h.defaultDuration)
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	fields := logger.WithContext(c)
	fields["style"] = string(req.Style)
	fields["bpm"] = req.BPM
	fields["duration"] = req.Duration
	logger.Info("Generation request received", fields)

	ctx := c.Request.Context()
	trace := h.langfuse.StartTrace(ctx, "beatforge.generate", map[string]interface{}{
		"request_id": c.GetString("request_id"),
		"style":      string(req.Style),
		"bpm":        req.BPM,
		"key":        req.Key,
		"energy":     req.Energy,
		"duration":   req.Duration,
	})
	defer trace.Finish()
	text := h.prompts.Build(req, h.catalogue.Lookup(req.Style))
	obs := trace.Synthesis(h.modelName, text, map[string]interface{}{"seed": req.Seed})

	start := time.Now()
	result, err := h.pipeline.Generate(ctx, req)
	elapsed := time.Since(start)

	h.sentryMetrics.RecordGeneration(ctx, string(req.Style), elapsed, err == nil)
	h.cloudwatch.RecordGenerationDuration(string(req.Style), elapsed, err == nil)

	if err != nil {
		obs.Fail(err)
		h.fail(c, err, fields)
		return
	}
	obs.Succeed(result.Metadata)

	fields["filename"] = result.Filename
	logger.LogGeneration(ctx, result.Metadata.Model, result.Elapsed, fields)

	filename := result.Filename
	url := downloadURL(filename)
	duration := result.Metadata.ActualDuration
	genTime := math.Round(result.Elapsed.Seconds()*100) / 100
	c.JSON(http.StatusOK, GenerateResponse{
		Success:        true,
		Message:        msgGenerated,
		Filename:       &filename,
		DownloadURL:    &url,
		Duration:       &duration,
		GenerationTime: &genTime,
		Metadata:       &result.Metadata,
		Audio:          &result.Audio,
		RequestID:      c.GetString("request_id"),
	})
}

// fail reports a pipeline error. Model, synthesis and storage failures come
// back as success:false with status 200; admission failures keep their
// HTTP status.
func (h *GenerationHandler) fail(c *gin.Context, err error, fields logger.Fields) {
	fields["stage"] = generation.StageOf(err)
	fields["kind"] = errs.KindOf(err).String()
	fields["model"] = h.modelName

	status := statusFor(err)
	switch status {
	case http.StatusOK:
		logger.Error("Generation failed", err, fields)
		c.JSON(http.StatusOK, GenerateResponse{
			Success:   false,
			Message:   msgGenerationFailed + err.Error(),
			RequestID: c.GetString("request_id"),
		})
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		logger.Warn("Generation rejected", fields)
		c.AbortWithStatusJSON(status, GenerateResponse{
			Success:   false,
			Message:   msgGenerationFailed + err.Error(),
			RequestID: c.GetString("request_id"),
		})
	default:
		logger.Error("Generation failed with unexpected error", err, fields)
		abortWithError(c, http.StatusInternalServerError, "Internal server error: "+err.Error())
	}
}
