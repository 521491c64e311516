package commands

import (
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/liujianjie/BeatForgeAI/internal/config"
)

const sentryFlushTimeout = 2 * time.Second

// initSentry initialises the global Sentry client. The returned func
// flushes pending events and is safe to call when Sentry is disabled.
func initSentry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
		return func() {}
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		Release:          "beatforge@" + version,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            !cfg.IsProduction(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			if event.Request != nil {
				event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
			}
			return event
		},
	})
	if err != nil {
		log.Printf("Failed to initialize Sentry: %v", err)
		return func() {}
	}

	log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, version)
	return func() { sentry.Flush(sentryFlushTimeout) }
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string, len(headers))
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[strings.ToLower(k)] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
