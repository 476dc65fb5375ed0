// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// DBPath is the SQLite database file path.
	DBPath string

	// JWTSecret signs session tokens. Required.
	JWTSecret string

	// TokenDuration is how long session tokens stay valid.
	TokenDuration time.Duration

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// ExpiryInterval is how often the stale-turn sweep runs.
	ExpiryInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first if present; real environment
// variables take precedence.
func Load() (*Config, error) {
	// Missing .env is fine in production; variables come from the host.
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		DBPath:         getEnvOrDefault("DB_PATH", "data/roundtable.db"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		TokenDuration:  24 * time.Hour,
		ExpiryInterval: time.Hour,
	}

	if cfg.JWTSecret = os.Getenv("JWT_SECRET"); cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	if v := os.Getenv("TOKEN_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_DURATION: %w", err)
		}
		cfg.TokenDuration = d
	}

	if v := os.Getenv("TURN_EXPIRY_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TURN_EXPIRY_INTERVAL: %w", err)
		}
		cfg.ExpiryInterval = d
	}

	return cfg, nil
}

// getEnvOrDefault returns environment variable value or default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
