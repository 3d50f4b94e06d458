package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/playspades/backend/internal/room"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status
func HealthCheck(rooms *room.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "playspades-api",
			"version": version,
			"uptime":  time.Since(startTime).String(),
			"rooms":   rooms.Count(),
		})
	}
}
