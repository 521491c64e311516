package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Banner handles GET / with a short description of the service.
func Banner(version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        serviceName,
			"version":     version,
			"description": serviceDescription,
			"health":      apiPrefix + "/health",
			"api_prefix":  apiPrefix,
		})
	}
}
