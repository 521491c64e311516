package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/liujianjie/BeatForgeAI/internal/assets"
	"github.com/liujianjie/BeatForgeAI/internal/config"
	"github.com/liujianjie/BeatForgeAI/internal/generation"
	"github.com/liujianjie/BeatForgeAI/internal/metrics"
	"github.com/liujianjie/BeatForgeAI/internal/musicgen"
	"github.com/liujianjie/BeatForgeAI/internal/observability"
	"github.com/liujianjie/BeatForgeAI/internal/storage"
	"github.com/liujianjie/BeatForgeAI/internal/styles"
)

// app holds everything a command needs to run generations.
type app struct {
	cfg        *config.Config
	catalogue  *styles.Catalogue
	store      storage.FileStore
	gateway    *musicgen.Gateway
	writer     *assets.Writer
	pipeline   *generation.Pipeline
	cloudwatch *metrics.Client
	langfuse   *observability.LangfuseClient
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cloudwatch := metrics.NewClient(ctx, cfg.Environment)
	sentryMetrics := metrics.NewSentryMetrics()

	gateway := musicgen.NewGateway(musicgen.NewHTTPBackend(cfg.ModelServerURL), musicgen.Options{
		Model:            cfg.ModelName,
		Device:           cfg.ModelDevice,
		SampleRate:       config.SampleRate,
		GuidanceScale:    cfg.GuidanceScale,
		Concurrency:      cfg.ModelConcurrency,
		QueueTimeout:     cfg.QueueTimeout,
		SynthesisTimeout: cfg.SynthesisTimeout,
		OnLoad: func(ctx context.Context, latency time.Duration, err error) {
			sentryMetrics.RecordModelLoad(ctx, cfg.ModelName, latency, err == nil)
			cloudwatch.RecordModelLoad(cfg.ModelName, latency, err == nil)
		},
	})

	catalogue := styles.Default()
	writer := assets.NewWriter(store, cfg.FilePrefix)
	pipeline := generation.NewPipeline(gateway, writer, catalogue, generation.Options{
		MaxDuration:   cfg.MaxDuration,
		NormalizeMode: cfg.NormalizeMode,
		TargetLevelDB: cfg.TargetLevelDB,
		ApplyFades:    cfg.ApplyFades,
		FadeInMs:      cfg.FadeInMs,
		FadeOutMs:     cfg.FadeOutMs,
	})

	return &app{
		cfg:        cfg,
		catalogue:  catalogue,
		store:      store,
		gateway:    gateway,
		writer:     writer,
		pipeline:   pipeline,
		cloudwatch: cloudwatch,
		langfuse:   observability.NewLangfuse(ctx, cfg),
	}, nil
}

// newStore opens the configured asset store.
func newStore(ctx context.Context, cfg *config.Config) (storage.FileStore, error) {
	switch cfg.AssetStore {
	case "", "local":
		local, err := storage.NewLocal(cfg.AudioDir)
		if err != nil {
			return nil, fmt.Errorf("open audio dir %s: %w", cfg.AudioDir, err)
		}
		return local, nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("ASSET_STORE=s3 requires S3_BUCKET")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3Endpoint)
				o.UsePathStyle = true
			}
		})
		return storage.NewS3(client, cfg.S3Bucket, cfg.S3Prefix), nil
	default:
		return nil, fmt.Errorf("unknown ASSET_STORE %q (want local or s3)", cfg.AssetStore)
	}
}
