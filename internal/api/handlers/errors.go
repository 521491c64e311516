package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liujianjie/BeatForgeAI/internal/errs"
)

// statusFor maps an error kind to its HTTP status. Pipeline failures map to
// 200 because they are reported inside the generation envelope.
func statusFor(err error) int {
	switch errs.KindOf(err) {
	case errs.Validation:
		return http.StatusBadRequest
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Forbidden:
		return http.StatusForbidden
	case errs.Busy:
		return http.StatusServiceUnavailable
	case errs.Timeout:
		return http.StatusGatewayTimeout
	case errs.ModelLoad, errs.Synthesis, errs.Storage:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes the standard error body.
func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      msg,
		"request_id": c.GetString("request_id"),
	})
}
