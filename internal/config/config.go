package config

import (
	"fmt"
	"os"

	"github.com/threadline/backend/internal/util"
)

// Config holds server configuration loaded from the environment
type Config struct {
	Port        string
	Environment string

	LogLevel string
	LogFile  string

	JWTSecret []byte

	RedisHost     string
	RedisPort     string
	RedisPassword string

	OTelEnabled     bool
	OTLPEndpoint    string
	OTelSamplingPct int
}

// Load reads configuration from environment variables. Call after godotenv has
// populated the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8787"),
		Environment: getEnv("ENVIRONMENT", "development"),

		LogLevel: os.Getenv("LOG_LEVEL"),
		LogFile:  os.Getenv("LOG_FILE"),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     os.Getenv("REDIS_PORT"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		OTelEnabled:     os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:    os.Getenv("OTLP_ENDPOINT"),
		OTelSamplingPct: util.ParseInt(os.Getenv("OTEL_SAMPLING_PERCENT"), 100),
	}

	if len(cfg.JWTSecret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SamplingRate converts the sampling percentage to the [0,1] ratio the tracer
// expects
func (c *Config) SamplingRate() float64 {
	return float64(c.OTelSamplingPct) / 100
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
