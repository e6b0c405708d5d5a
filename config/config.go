// Package config loads the gateway's process configuration from the
// environment once at startup. There is no reflection-based decoding
// framework: Load reads each variable explicitly and applies its default,
// the way the example corpus's own entrypoints do (codeready-toolchain-tarsy's
// cmd/tarsy/main.go's getEnv helper, taipm-go-deep-agent's main.go).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the gateway's full process configuration, populated once by
// Load and passed down by value/pointer to every component that needs a
// setting rather than having each package read the environment itself.
type Config struct {
	// HTTPAddr is the address httpapi's server listens on.
	HTTPAddr string
	// GinMode is "debug", "release", or "test" (gin.SetMode).
	GinMode string

	// DatabaseURL is the Postgres connection string usage/pgstore's
	// pgxpool.Pool is built from.
	DatabaseURL string

	// RedisAddr backs features/stream/pulse's durable Sink. An explicitly
	// empty REDIS_ADDR disables that sink; an unset one defaults to
	// localhost:6379. The rate limiter cmd/gateway builds does not use Redis.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AnthropicAPIKey, OpenAIAPIKey, GeminiAPIKey configure the three
	// provider adapters. Empty means that provider is not registered.
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string

	// DefaultConcurrentLimit is read from DEFAULT_CONCURRENT_LIMIT (default
	// 64). cmd/gateway does not pass it on: provider.Pool applies its own
	// built-in default of 64 when an organization has no explicit limit.
	DefaultConcurrentLimit int

	// RequestTimeout is read from REQUEST_TIMEOUT (default 5m). No
	// component applies it; CreateResponse calls carry no deadline of their
	// own.
	RequestTimeout time.Duration

	// OtelExporterEndpoint is read from OTEL_EXPORTER_OTLP_ENDPOINT. No
	// exporter is configured from it.
	OtelExporterEndpoint string
}

// Load reads a .env file at path (if present; a missing file is not an
// error, matching tarsy's "continue with existing environment variables"
// fallback) via godotenv, then decodes Config from the process environment.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file %q: %w", path, err)
		}
	}

	concurrentLimit, err := intEnv("DEFAULT_CONCURRENT_LIMIT", 64)
	if err != nil {
		return nil, err
	}
	redisDB, err := intEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := durationEnv("REQUEST_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	// Unlike the other settings, an explicitly empty REDIS_ADDR is kept as
	// empty so a deployment can opt out of the durable stream sink.
	redisAddr := "localhost:6379"
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok {
		redisAddr = v
	}

	cfg := &Config{
		HTTPAddr:               stringEnv("HTTP_ADDR", ":8080"),
		GinMode:                stringEnv("GIN_MODE", "release"),
		DatabaseURL:            stringEnv("DATABASE_URL", ""),
		RedisAddr:              redisAddr,
		RedisPassword:          stringEnv("REDIS_PASSWORD", ""),
		RedisDB:                redisDB,
		AnthropicAPIKey:        stringEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:           stringEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:           stringEnv("GEMINI_API_KEY", ""),
		DefaultConcurrentLimit: concurrentLimit,
		RequestTimeout:         requestTimeout,
		OtelExporterEndpoint:   stringEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s=%q: %w", key, v, err)
	}
	return d, nil
}
