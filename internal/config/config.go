package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Server
	Port        string
	FrontendURL string

	// Pacing delays (milliseconds). These exist so clients can animate;
	// state stays consistent at every lock acquisition regardless.
	TrickSettleMs     int
	TrickClearMs      int
	RoundEndMs        int
	DisconnectGraceMs int
	AutoActDelayMs    int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Server
		Port:        getEnv("PORT", "3001"),
		FrontendURL: getEnv("FRONTEND_URL", ""),

		// Pacing
		TrickSettleMs:     getEnvInt("TRICK_SETTLE_MS", 500),
		TrickClearMs:      getEnvInt("TRICK_CLEAR_MS", 1500),
		RoundEndMs:        getEnvInt("ROUND_END_MS", 2000),
		DisconnectGraceMs: getEnvInt("DISCONNECT_GRACE_MS", 5000),
		AutoActDelayMs:    getEnvInt("AUTO_ACT_DELAY_MS", 300),
	}
}

// TrickSettleDelay is the pause between the full-trick broadcast and resolution.
func (c *Config) TrickSettleDelay() time.Duration {
	return time.Duration(c.TrickSettleMs) * time.Millisecond
}

// TrickClearDelay is the pause between resolution and the next-trick broadcast.
func (c *Config) TrickClearDelay() time.Duration {
	return time.Duration(c.TrickClearMs) * time.Millisecond
}

// RoundEndDelay is the pause between the last trick's resolution and round scoring.
func (c *Config) RoundEndDelay() time.Duration {
	return time.Duration(c.RoundEndMs) * time.Millisecond
}

// DisconnectGrace is how long a disconnected player's turn is held open for
// a reconnect before the server acts for them.
func (c *Config) DisconnectGrace() time.Duration {
	return time.Duration(c.DisconnectGraceMs) * time.Millisecond
}

// AutoActDelay is the short pause before checking whether the new current
// actor is disconnected.
func (c *Config) AutoActDelay() time.Duration {
	return time.Duration(c.AutoActDelayMs) * time.Millisecond
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
