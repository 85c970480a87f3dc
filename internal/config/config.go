// Package config loads application configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Remote document store
	DocstoreURL        string
	DocstoreAPIKey     string
	DocstoreServiceKey string
	UseRemote          bool
	SyncInterval       time.Duration

	// External services
	ContentAPIURL  string
	GeocoderAPIURL string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL       time.Duration
	IdempotencyTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Sessions
	JWTSecret  string
	SessionTTL time.Duration
}

// Load reads configuration from environment variables with defaults.
// A .env file in the working directory is applied first (without
// overriding variables already set in the environment).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DocstoreURL:        getEnv("DOCSTORE_URL", ""),
		DocstoreAPIKey:     getEnv("DOCSTORE_API_KEY", ""),
		DocstoreServiceKey: getEnv("DOCSTORE_SERVICE_KEY", ""),
		UseRemote:          getEnv("USE_REMOTE_STORE", "true") == "true",
		SyncInterval:       getEnvDuration("SYNC_INTERVAL", 5*time.Second),

		ContentAPIURL:  getEnv("CONTENT_API_URL", "http://localhost:8090"),
		GeocoderAPIURL: getEnv("GEOCODER_API_URL", "http://localhost:8091"),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxBackoff:     getEnvDuration("MAX_BACKOFF", 5*time.Second),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL:       getEnvDuration("CACHE_TTL", 5*time.Minute),
		IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		JWTSecret:  getEnv("JWT_SECRET", "dealspot-default-dev-secret-change-me"),
		SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour),
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
