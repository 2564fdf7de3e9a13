package api

import (
	"github.com/gin-gonic/gin"

	"github.com/ldevaal/wiredns/internal/api/handlers"
	"github.com/ldevaal/wiredns/internal/api/middleware"
	"github.com/ldevaal/wiredns/internal/config"
)

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, cfg *config.Config) {
	api := r.Group("/api/v1")

	// Optional API key protection.
	if cfg != nil && cfg.API.APIKey != "" {
		api.Use(middleware.RequireAPIKey(cfg.API.APIKey))
	}

	api.GET("/health", h.Health)
	api.GET("/stats", h.Stats)
	api.GET("/resolve", h.Resolve)
}
