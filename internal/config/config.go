package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL     string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBSlowThreshold time.Duration
	DBLogLevel      string

	// JWT (tokens are issued by the external auth service)
	JWTSecret string

	// Background Workers
	WorkerCount              int
	DefaultedRefreshInterval time.Duration

	// CORS
	AllowedOrigins []string

	// Events
	KafkaBrokers []string
	KafkaTopic   string

	// Observability
	MetricsEnabled bool
	SentryDSN      string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                     getEnv("PORT", "8080"),
		Environment:              getEnv("ENVIRONMENT", "development"),
		LogLevel:                 getEnv("LOG_LEVEL", ""),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:           getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
		DBMaxIdleConns:           getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		DBSlowThreshold:          getEnvAsDuration("DB_SLOW_THRESHOLD", 200*time.Millisecond),
		DBLogLevel:               getEnv("DB_LOG_LEVEL", ""),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		WorkerCount:              getEnvAsInt("WORKER_COUNT", 5),
		DefaultedRefreshInterval: getEnvAsDuration("DEFAULTED_REFRESH_INTERVAL", 15*time.Minute),
		AllowedOrigins:           getEnvAsSlice("CORS_ORIGINS", []string{"*"}),
		KafkaBrokers:             getEnvAsSlice("KAFKA_BROKERS", nil),
		KafkaTopic:               getEnv("KAFKA_TOPIC", "installments.events"),
		MetricsEnabled:           getEnvAsBool("METRICS_ENABLED", true),
		SentryDSN:                getEnv("SENTRY_DSN", ""),
	}

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.IsProduction() {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration strings ("90s", "15m")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
