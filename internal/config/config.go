package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// SampleRate is the fixed output rate of the music model in Hz.
const SampleRate = 32000

// Config holds the application configuration
type Config struct {
	// Environment
	Environment string
	Host        string
	Port        string

	// Audio store
	AudioDir   string // local directory for generated clips
	AssetStore string // "local" or "s3"
	S3Bucket   string
	S3Prefix   string
	S3Endpoint string // optional, for S3-compatible stores
	FilePrefix string // app prefix in generated filenames

	// Model
	ModelServerURL   string
	ModelName        string
	ModelDevice      string // auto, cuda, cpu
	GuidanceScale    float64
	ModelConcurrency int
	QueueTimeout     time.Duration // 0 waits forever
	SynthesisTimeout time.Duration // 0 disables the limit
	WarmupOnStart    bool

	// Durations in seconds
	MaxDuration     int
	DefaultDuration int

	// Post-processing
	NormalizeMode string // peak or rms
	TargetLevelDB float64
	ApplyFades    bool
	FadeInMs      int
	FadeOutMs     int

	// Observability
	SentryDSN         string
	LangfusePublicKey string
	LangfuseSecretKey string
	LangfuseHost      string
	LangfuseEnabled   bool
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Host:        getEnv("HOST", "0.0.0.0"),
		Port:        getEnv("PORT", "8000"),

		AudioDir:   getEnv("AUDIO_DIR", "storage/audio"),
		AssetStore: strings.ToLower(getEnv("ASSET_STORE", "local")),
		S3Bucket:   getEnv("S3_BUCKET", ""),
		S3Prefix:   getEnv("S3_PREFIX", "audio"),
		S3Endpoint: getEnv("S3_ENDPOINT", ""),
		FilePrefix: getEnv("FILE_PREFIX", "beatforge"),

		ModelServerURL:   getEnv("MODEL_SERVER_URL", "http://localhost:8001"),
		ModelName:        getEnv("MODEL_NAME", "facebook/musicgen-small"),
		ModelDevice:      strings.ToLower(getEnv("MODEL_DEVICE", "auto")),
		GuidanceScale:    getEnvFloat("GUIDANCE_SCALE", 3.0),
		ModelConcurrency: getEnvInt("MODEL_CONCURRENCY", 1),
		QueueTimeout:     getEnvDuration("QUEUE_TIMEOUT", 0),
		SynthesisTimeout: getEnvDuration("SYNTHESIS_TIMEOUT", 5*time.Minute),
		WarmupOnStart:    getEnv("WARMUP_ON_START", "false") == "true",

		MaxDuration:     getEnvInt("MAX_DURATION", 30),
		DefaultDuration: getEnvInt("DEFAULT_DURATION", 10),

		NormalizeMode: strings.ToLower(getEnv("NORMALIZE_MODE", "peak")),
		TargetLevelDB: getEnvFloat("TARGET_LEVEL_DB", -3.0),
		ApplyFades:    getEnv("APPLY_FADES", "false") == "true",
		FadeInMs:      getEnvInt("FADE_IN_MS", 50),
		FadeOutMs:     getEnvInt("FADE_OUT_MS", 100),

		SentryDSN:         getEnv("SENTRY_DSN", ""),
		LangfusePublicKey: getEnv("LANGFUSE_PUBLIC_KEY", ""),
		LangfuseSecretKey: getEnv("LANGFUSE_SECRET_KEY", ""),
		LangfuseHost:      getEnv("LANGFUSE_HOST", "https://cloud.langfuse.com"),
		LangfuseEnabled:   getEnv("LANGFUSE_ENABLED", "false") == "true",
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("30s") or plain seconds ("30").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UseS3 reports whether generated clips go to an S3 bucket instead of disk
func (c *Config) UseS3() bool {
	return c.AssetStore == "s3"
}

// Addr returns the listen address for the HTTP server
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}
