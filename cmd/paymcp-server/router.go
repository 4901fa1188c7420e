package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/paymcp/paymcp-go/metrics"
)

// newRouter mounts the MCP endpoint next to /health and /metrics
func newRouter(mcpPath string, mcpHandler http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.Any(mcpPath, gin.WrapH(mcpHandler))
	return router
}
