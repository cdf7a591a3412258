package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// TechnicIA backend (indexing + query service)
	BackendURL     string
	BackendProfile string // "index" (default) or "chat"
	QueryLimit     int    // sent as {"limit": n}; 0 omits the field

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Sessions
	SessionTTL    time.Duration
	SessionSecret string

	// Drop folder watched for new PDFs (empty disables the watcher)
	WatchDir string

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendURL:     getEnv("BACKEND_URL", "http://localhost:8000"),
		BackendProfile: getEnv("BACKEND_PROFILE", ProfileIndex),
		QueryLimit:     getEnvInt("QUERY_LIMIT", 5),

		HTTPTimeout: getEnvPositiveDuration("HTTP_TIMEOUT", 2*time.Minute),

		// The chat flow makes a single attempt per user action.
		MaxRetries:     getEnvInt("MAX_RETRIES", 0),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 200*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		SessionTTL:    getEnvPositiveDuration("SESSION_TTL", 2*time.Hour),
		SessionSecret: getEnv("SESSION_SECRET", "technicia-dev-secret-change-me"),

		WatchDir: getEnv("WATCH_DIR", ""),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// getEnvPositiveDuration is getEnvDuration for settings where zero or a
// negative value makes no sense (timeouts, lifetimes).
func getEnvPositiveDuration(key string, fallback time.Duration) time.Duration {
	if d := getEnvDuration(key, fallback); d > 0 {
		return d
	}
	return fallback
}
