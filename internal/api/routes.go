package api

import (
	"github.com/gin-gonic/gin"

	"github.com/playspades/backend/internal/api/handlers"
	"github.com/playspades/backend/internal/config"
	"github.com/playspades/backend/internal/middleware"
	"github.com/playspades/backend/internal/room"
	"github.com/playspades/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, orch *ws.Orchestrator, rooms *room.Manager, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.WebSocketCORSCheck(cfg))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(rooms))
		v1.GET("/ws", orch.HandleWebSocket)
	}
}
