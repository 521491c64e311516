package api

import (
	"github.com/gin-gonic/gin"
	"github.com/liujianjie/BeatForgeAI/internal/api/handlers"
	apimiddleware "github.com/liujianjie/BeatForgeAI/internal/api/middleware"
	"github.com/liujianjie/BeatForgeAI/internal/config"
	"github.com/liujianjie/BeatForgeAI/internal/metrics"
	"github.com/liujianjie/BeatForgeAI/internal/observability"
	"github.com/liujianjie/BeatForgeAI/internal/styles"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Config     *config.Config
	Version    string
	Model      handlers.ModelLoader
	Pipeline   handlers.Generator
	Assets     handlers.AssetStore
	Catalogue  *styles.Catalogue
	CloudWatch *metrics.Client
	Langfuse   *observability.LangfuseClient
}

func SetupRouter(deps Deps) *gin.Engine {
	router := gin.New()

	// Recovery middleware (must be first)
	router.Use(apimiddleware.RecoverWithSentry())

	// Sentry middleware for error tracking
	router.Use(apimiddleware.SentryMiddleware())

	// Request tracking and structured logging
	router.Use(apimiddleware.RequestTracking(deps.CloudWatch))

	// CORS middleware
	router.Use(apimiddleware.CORS())

	router.GET("/", handlers.Banner(deps.Version))

	api := router.Group("/api")
	{
		healthHandler := handlers.NewHealthHandler(deps.Model)
		api.GET("/health", healthHandler.HealthCheck)

		metricsHandler := handlers.NewMetricsHandler(deps.Version, deps.Model)
		api.GET("/metrics", metricsHandler.GetMetrics)

		// AI generation
		stylesHandler := handlers.NewStylesHandler(deps.Catalogue)
		api.GET("/ai/styles", stylesHandler.ListStyles)

		generationHandler := handlers.NewGenerationHandler(deps.Pipeline, handlers.GenerationOptions{
			Catalogue:       deps.Catalogue,
			DefaultDuration: deps.Config.DefaultDuration,
			ModelName:       deps.Config.ModelName,
			CloudWatch:      deps.CloudWatch,
			Langfuse:        deps.Langfuse,
		})
		api.POST("/ai/generate", generationHandler.Generate)

		warmupHandler := handlers.NewWarmupHandler(deps.Model)
		api.POST("/ai/warmup", warmupHandler.Warmup)

		// Stored clips
		audioHandler := handlers.NewAudioHandler(deps.Assets)
		api.GET("/audio/list/all", audioHandler.List)
		api.GET("/audio/:filename", audioHandler.Download)
	}

	return router
}
