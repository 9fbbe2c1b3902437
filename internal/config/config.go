// Package config provides environment-driven application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all gateway configuration. RedisURL, NATSURL and ToolServerURL
// are optional: an empty or unreachable value downgrades the corresponding
// capability instead of failing startup.
type Config struct {
	Port          string
	RedisURL      string
	NATSURL       string
	ToolServerURL string
	ToolAuthToken string

	SessionTTL        time.Duration
	HeartbeatInterval time.Duration

	// StreamLookupRetries and StreamLookupDelay bound the eventual-consistency
	// window when a client opens a stream right after creating a session.
	StreamLookupRetries int
	StreamLookupDelay   time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		RedisURL:            getEnv("REDIS_URL", ""),
		NATSURL:             getEnv("NATS_URL", ""),
		ToolServerURL:       getEnv("TOOL_SERVER_URL", ""),
		ToolAuthToken:       getEnv("TOOL_AUTH_TOKEN", ""),
		SessionTTL:          getEnvDuration("SESSION_TTL", 24*time.Hour),
		HeartbeatInterval:   getEnvDuration("HEARTBEAT_INTERVAL", 30*time.Second),
		StreamLookupRetries: getEnvInt("STREAM_LOOKUP_RETRIES", 3),
		StreamLookupDelay:   getEnvDuration("STREAM_LOOKUP_DELAY", 200*time.Millisecond),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the required fields and value ranges.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL must be positive")
	}
	if c.StreamLookupRetries < 0 {
		return fmt.Errorf("STREAM_LOOKUP_RETRIES must be >= 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
