package handlers

import (
	"legaljudge-backend/config"
	"legaljudge-backend/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRouter wires middleware and routes
func SetupRouter(cfg *config.Config, h *AnalysisHandler) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.RequestLogger(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Server.AllowedOrigins),
	)

	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.POST("/analyze-brief", h.AnalyzeBrief)
	}

	return r
}
