package middleware

import (
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/playspades/backend/internal/config"
)

// devOrigins are the local frontend dev servers allowed cross-origin access.
var devOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
}

// CORSMiddleware returns a CORS middleware for development. In production
// origin restriction is on: no cross-origin headers are served at all.
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	if cfg.Environment == "production" {
		log.Printf("[CORS] Production mode: cross-origin requests disabled")
		return func(c *gin.Context) { c.Next() }
	}

	log.Printf("[CORS] Development allowed origins: %v", devOrigins)
	return cors.New(cors.Config{
		AllowOrigins: devOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Accept",
			"Cache-Control", "X-Requested-With",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// WebSocketCORSCheck validates WebSocket upgrade origins before the
// connection reaches the upgrader.
func WebSocketCORSCheck(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.ToLower(c.GetHeader("Upgrade")) != "websocket" {
			c.Next()
			return
		}

		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		var allowed bool
		if cfg.Environment == "development" {
			for _, o := range devOrigins {
				if origin == o {
					allowed = true
					break
				}
			}
			// Any localhost port is fine in dev.
			allowed = allowed ||
				strings.HasPrefix(origin, "http://localhost:") ||
				strings.HasPrefix(origin, "http://127.0.0.1:")
		} else {
			allowed = strings.HasSuffix(origin, "://"+c.Request.Host)
			if cfg.FrontendURL != "" && origin == cfg.FrontendURL {
				allowed = true
			}
		}

		if !allowed {
			c.JSON(403, gin.H{"error": "WebSocket origin not allowed"})
			c.Abort()
			return
		}

		c.Next()
	}
}
