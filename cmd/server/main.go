package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/playspades/backend/internal/api"
	"github.com/playspades/backend/internal/config"
	"github.com/playspades/backend/internal/room"
	"github.com/playspades/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Rooms live only in process memory; there is nothing to connect to.
	rooms := room.NewManager()
	hub := ws.NewHub()
	orch := ws.NewOrchestrator(hub, rooms, cfg)

	// Set up Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	api.SetupRoutes(router, orch, rooms, cfg)

	port := cfg.Port
	if port == "" {
		port = "3001"
	}

	log.Printf("Starting PlaySpades server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
