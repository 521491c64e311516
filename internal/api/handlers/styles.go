package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liujianjie/BeatForgeAI/internal/styles"
)

type StylesHandler struct {
	catalogue *styles.Catalogue
}

func NewStylesHandler(catalogue *styles.Catalogue) *StylesHandler {
	if catalogue == nil {
		catalogue = styles.Default()
	}
	return &StylesHandler{catalogue: catalogue}
}

type StyleInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	BPMRange    []int  `json:"bpm_range"`
}

type StyleListResponse struct {
	Styles []StyleInfo `json:"styles"`
}

// ListStyles returns every supported style in catalogue order.
func (h *StylesHandler) ListStyles(c *gin.Context) {
	entries := h.catalogue.Entries()
	out := make([]StyleInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, StyleInfo{
			ID:          string(e.ID),
			Name:        e.Name,
			Description: e.Description,
			BPMRange:    []int{e.Tempo.Min, e.Tempo.Max},
		})
	}
	c.JSON(http.StatusOK, StyleListResponse{Styles: out})
}
