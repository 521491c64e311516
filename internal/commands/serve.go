package commands

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/liujianjie/BeatForgeAI/internal/api"
	"github.com/liujianjie/BeatForgeAI/internal/config"
	"github.com/liujianjie/BeatForgeAI/internal/logger"
)

const shutdownTimeout = 10 * time.Second

var serveWarmup bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API on HOST:PORT.

The model is loaded lazily on the first generation. Pass --warmup (or set
WARMUP_ON_START=true) to start loading it in the background at startup.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWarmup, "warmup", false, "load the model in the background at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	flush := initSentry(cfg)
	defer flush()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		sentry.CaptureException(err)
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.SetupRouter(api.Deps{
		Config:     cfg,
		Version:    version,
		Model:      a.gateway,
		Pipeline:   a.pipeline,
		Assets:     a.writer,
		Catalogue:  a.catalogue,
		CloudWatch: a.cloudwatch,
		Langfuse:   a.langfuse,
	})

	if serveWarmup || cfg.WarmupOnStart {
		go func() {
			if err := a.gateway.EnsureLoaded(ctx); err != nil {
				logger.Warn("Startup warm-up failed; the next request retries", logger.Fields{"error": err.Error()})
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 BeatForge AI %s listening on %s (model server: %s)", version, cfg.Addr(), cfg.ModelServerURL)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			sentry.CaptureException(err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
