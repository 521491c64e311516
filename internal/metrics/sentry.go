package metrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryMetrics records performance spans in Sentry. Spans are no-ops when
// Sentry is not initialised.
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics client
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{enabled: true}
}

// spanRecord is one finished operation reported as a child span.
type spanRecord struct {
	op          string
	description string
	tags        map[string]string
	dataKey     string
	elapsed     time.Duration
	success     bool
}

func (m *SentryMetrics) record(ctx context.Context, r spanRecord) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, r.op)
	defer span.Finish()

	span.Description = r.description
	for k, v := range r.tags {
		span.SetTag(k, v)
	}
	span.SetTag("success", strconv.FormatBool(r.success))
	span.SetData(r.dataKey, r.elapsed.Milliseconds())
	if r.success {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}
}

// RecordAPIRequest records one HTTP request. 4xx and 5xx count as failures.
func (m *SentryMetrics) RecordAPIRequest(ctx context.Context, endpoint string, statusCode int, duration time.Duration) {
	m.record(ctx, spanRecord{
		op:          "api.request",
		description: fmt.Sprintf("API Request: %s", endpoint),
		tags:        map[string]string{"endpoint": endpoint, "status_code": strconv.Itoa(statusCode)},
		dataKey:     "duration_ms",
		elapsed:     duration,
		success:     statusCode < http.StatusBadRequest,
	})
}

// RecordGeneration records one pipeline run
func (m *SentryMetrics) RecordGeneration(ctx context.Context, style string, duration time.Duration, success bool) {
	m.record(ctx, spanRecord{
		op:          "generation.request",
		description: fmt.Sprintf("Generation Request: %s", style),
		tags:        map[string]string{"style": style},
		dataKey:     "duration_ms",
		elapsed:     duration,
		success:     success,
	})
}

// RecordModelLoad records how long bringing the model up took
func (m *SentryMetrics) RecordModelLoad(ctx context.Context, model string, latency time.Duration, success bool) {
	m.record(ctx, spanRecord{
		op:          "model.load",
		description: fmt.Sprintf("Model Load: %s", model),
		tags:        map[string]string{"model": model},
		dataKey:     "latency_ms",
		elapsed:     latency,
		success:     success,
	})
}
