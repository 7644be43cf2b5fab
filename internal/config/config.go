// Package config loads the service configuration from the environment,
// with an optional .env file for development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds the application configuration.
type Config struct {
	Environment string
	ListenAddr  string

	// Backend selects the storage implementation. The memory backend
	// exists for development and loses everything on restart.
	Backend     string
	DatabaseURL string

	// AuditDBPath is the SQLite file for the audit trail. Empty
	// disables the trail; ":memory:" keeps it for the process only.
	AuditDBPath string

	// RedisAddr enables the shared rate limiter when set.
	RedisAddr         string
	RateLimitCapacity int
	RateLimitRefill   float64

	AllowedCIDRs []string
	MaxBodyBytes int64
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:       envOr("APP_ENV", "development"),
		ListenAddr:        envOr("LISTEN_ADDR", ":8080"),
		Backend:           envOr("STORAGE_BACKEND", BackendPostgres),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		AuditDBPath:       os.Getenv("AUDIT_DB_PATH"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RateLimitCapacity: 60,
		RateLimitRefill:   1,
		MaxBodyBytes:      1 << 20,
	}

	if v := os.Getenv("RATE_LIMIT_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_CAPACITY: %w", err)
		}
		cfg.RateLimitCapacity = n
	}
	if v := os.Getenv("RATE_LIMIT_REFILL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_REFILL: %w", err)
		}
		cfg.RateLimitRefill = f
	}
	if v := os.Getenv("MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_BODY_BYTES: %w", err)
		}
		cfg.MaxBodyBytes = n
	}
	if v := os.Getenv("ALLOWED_CIDRS"); v != "" {
		cfg.AllowedCIDRs = strings.Split(v, ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required with the postgres backend")
		}
	case BackendMemory:
		if c.Environment == "production" {
			return errors.New("the memory backend is not allowed in production")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Backend)
	}

	if c.ListenAddr == "" {
		return errors.New("LISTEN_ADDR must not be empty")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
