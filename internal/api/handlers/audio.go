package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liujianjie/BeatForgeAI/internal/assets"
	"github.com/liujianjie/BeatForgeAI/internal/errs"
	"github.com/liujianjie/BeatForgeAI/internal/logger"
	"github.com/liujianjie/BeatForgeAI/internal/storage"
)

// AssetStore serves stored clips.
type AssetStore interface {
	Open(ctx context.Context, name string) (io.ReadCloser, storage.Object, error)
	List(ctx context.Context) ([]assets.Listing, error)
}

type AudioHandler struct {
	assets AssetStore
}

func NewAudioHandler(store AssetStore) *AudioHandler {
	return &AudioHandler{assets: store}
}

type AudioFile struct {
	Filename    string `json:"filename"`
	SizeBytes   int64  `json:"size_bytes"`
	DownloadURL string `json:"download_url"`
	Style       string `json:"style,omitempty"`
}

type AudioListResponse struct {
	Files []AudioFile `json:"files"`
	Total int         `json:"total"`
}

// Download handles GET /api/audio/:filename
func (h *AudioHandler) Download(c *gin.Context) {
	name := c.Param("filename")

	r, obj, err := h.assets.Open(c.Request.Context(), name)
	if err != nil {
		fields := logger.WithContext(c)
		fields["filename"] = name
		switch errs.KindOf(err) {
		case errs.NotFound:
			abortWithError(c, http.StatusNotFound, "Audio file not found")
		case errs.Forbidden:
			logger.Warn("Rejected audio path", fields)
			abortWithError(c, http.StatusForbidden, "Access denied")
		default:
			logger.Error("Failed to open audio file", err, fields)
			abortWithError(c, http.StatusInternalServerError, "Failed to read audio file")
		}
		return
	}
	defer r.Close()

	c.DataFromReader(http.StatusOK, obj.Size, wavContentType, r, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, obj.Name),
	})
}

// List handles GET /api/audio/list/all
func (h *AudioHandler) List(c *gin.Context) {
	listing, err := h.assets.List(c.Request.Context())
	if err != nil {
		logger.Error("Failed to list audio files", err, logger.WithContext(c))
		abortWithError(c, http.StatusInternalServerError, "Failed to list audio files")
		return
	}

	files := make([]AudioFile, 0, len(listing))
	for _, l := range listing {
		files = append(files, AudioFile{
			Filename:    l.Filename,
			SizeBytes:   l.SizeBytes,
			DownloadURL: downloadURL(l.Filename),
			Style:       string(l.Style),
		})
	}
	c.JSON(http.StatusOK, AudioListResponse{Files: files, Total: len(files)})
}
