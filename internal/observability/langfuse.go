// Package observability sends one Langfuse trace per generation so prompts
// and their outcomes can be reviewed side by side.
package observability

import (
	"context"
	"log"
	"time"

	langfuse "github.com/henomis/langfuse-go"
	"github.com/henomis/langfuse-go/model"

	"github.com/liujianjie/BeatForgeAI/internal/config"
)

// LangfuseClient wraps the Langfuse client with our configuration
type LangfuseClient struct {
	client  *langfuse.Langfuse
	enabled bool
}

// NewLangfuse returns an enabled client when Langfuse is configured, and a
// disabled one otherwise. The SDK reads its keys from LANGFUSE_* variables.
func NewLangfuse(ctx context.Context, cfg *config.Config) *LangfuseClient {
	if !cfg.LangfuseEnabled || cfg.LangfuseSecretKey == "" || cfg.LangfusePublicKey == "" {
		log.Println("⚠️  Langfuse not configured (LANGFUSE_ENABLED=false or keys not set)")
		return &LangfuseClient{}
	}

	log.Printf("✅ Langfuse initialized (host: %s)", cfg.LangfuseHost)
	return &LangfuseClient{client: langfuse.New(ctx), enabled: true}
}

// IsEnabled returns whether Langfuse is enabled
func (c *LangfuseClient) IsEnabled() bool {
	return c != nil && c.enabled && c.client != nil
}

// StartTrace starts a new trace in Langfuse
func (c *LangfuseClient) StartTrace(ctx context.Context, name string, metadata map[string]interface{}) *Trace {
	if !c.IsEnabled() {
		return &Trace{ctx: ctx}
	}

	trace, err := c.client.Trace(&model.Trace{
		Name:     name,
		Metadata: metadata,
	})
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse trace: %v", err)
		return &Trace{ctx: ctx}
	}
	return &Trace{trace: trace, enabled: true, ctx: ctx, client: c.client}
}

// Trace represents a Langfuse trace
type Trace struct {
	trace   *model.Trace
	enabled bool
	ctx     context.Context
	client  *langfuse.Langfuse
}

// Synthesis opens a generation observation for one model call.
func (t *Trace) Synthesis(modelName, prompt string, metadata map[string]interface{}) *Observation {
	if !t.enabled {
		return &Observation{}
	}

	now := time.Now()
	gen, err := t.client.Generation(&model.Generation{
		TraceID:   t.trace.ID,
		Name:      "musicgen.synthesize",
		Model:     modelName,
		StartTime: &now,
		Input:     prompt,
		Metadata:  metadata,
	}, nil)
	if err != nil {
		log.Printf("⚠️  Failed to create Langfuse generation: %v", err)
		return &Observation{}
	}
	return &Observation{generation: gen, enabled: true, client: t.client}
}

// Finish flushes queued events for the trace.
func (t *Trace) Finish() {
	if t.enabled && t.client != nil {
		t.client.Flush(t.ctx)
	}
}

// Observation is an open Langfuse generation.
type Observation struct {
	generation *model.Generation
	enabled    bool
	client     *langfuse.Langfuse
}

// Succeed records output and closes the observation.
func (o *Observation) Succeed(output interface{}) {
	if !o.enabled {
		return
	}
	o.generation.Output = output
	o.end()
}

// Fail records err at error level and closes the observation.
func (o *Observation) Fail(err error) {
	if !o.enabled {
		return
	}
	o.generation.Level = model.ObservationLevelError
	o.generation.StatusMessage = err.Error()
	o.end()
}

func (o *Observation) end() {
	now := time.Now()
	o.generation.EndTime = &now
	if _, err := o.client.GenerationEnd(o.generation); err != nil {
		log.Printf("⚠️  Failed to end Langfuse generation: %v", err)
	}
}
