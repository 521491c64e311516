package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liujianjie/BeatForgeAI/internal/musicgen"
)

// ModelStatus reports the model gateway state without loading anything.
type ModelStatus interface {
	Status() musicgen.Status
}

type HealthHandler struct {
	model ModelStatus
}

func NewHealthHandler(model ModelStatus) *HealthHandler {
	return &HealthHandler{model: model}
}

type HealthResponse struct {
	Status       string          `json:"status"`
	ModelLoaded  bool            `json:"model_loaded"`
	GPUAvailable bool            `json:"gpu_available"`
	Device       string          `json:"device"`
	Model        musicgen.Status `json:"model"`
}

// HealthCheck returns the health status of the API. It never triggers a
// model load.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	status := h.model.Status()
	c.JSON(http.StatusOK, HealthResponse{
		Status:       "ok",
		ModelLoaded:  status.Loaded,
		GPUAvailable: status.AcceleratorAvailable,
		Device:       status.Device,
		Model:        status,
	})
}
