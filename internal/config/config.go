package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration loaded from environment variables.
type Config struct {
	// ServerURL is the websocket endpoint of the quiz server, including the
	// /ws path.
	ServerURL string

	DialTimeout   time.Duration
	WriteTimeout  time.Duration
	ShutdownGrace time.Duration

	// Port is where the dev server listens.
	Port string

	LogLevel string
}

// Load reads configuration from the environment, after a best-effort .env
// load for local development.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerURL:     getEnv("BEANBAG_SERVER_URL", "ws://localhost:8080/ws"),
		DialTimeout:   getEnvSeconds("BEANBAG_DIAL_TIMEOUT_SECONDS", 10),
		WriteTimeout:  getEnvSeconds("BEANBAG_WRITE_TIMEOUT_SECONDS", 3),
		ShutdownGrace: getEnvSeconds("BEANBAG_SHUTDOWN_GRACE_SECONDS", 3),
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("BEANBAG_LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(fallback) * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return time.Duration(fallback) * time.Second
	}
	return time.Duration(n) * time.Second
}
