package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liujianjie/BeatForgeAI/internal/logger"
	"github.com/liujianjie/BeatForgeAI/internal/musicgen"
)

// ModelLoader loads the model on demand.
type ModelLoader interface {
	EnsureLoaded(ctx context.Context) error
	Status() musicgen.Status
}

type WarmupHandler struct {
	model ModelLoader
}

func NewWarmupHandler(model ModelLoader) *WarmupHandler {
	return &WarmupHandler{model: model}
}

// Warmup handles POST /api/ai/warmup. It blocks until the model is loaded
// or the load fails; concurrent callers share one load.
func (h *WarmupHandler) Warmup(c *gin.Context) {
	if err := h.model.EnsureLoaded(c.Request.Context()); err != nil {
		logger.Error("Model warm-up failed", err, logger.WithContext(c))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": err.Error(),
			"model":   h.model.Status(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Model loaded",
		"model":   h.model.Status(),
	})
}
