package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medical-rag-platform/services"
)

func SetupHealthRoutes(router *gin.Engine) {
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Medical Chatbot API is running"})
	})
}

func SetupMetricsRoutes(router *gin.Engine, metrics *services.Metrics) {
	router.GET("/metrics", func(c *gin.Context) {
		c.JSON(http.StatusOK, metrics.Snapshot())
	})
}
