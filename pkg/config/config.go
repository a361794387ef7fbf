package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/flowdeck/pkg/observability"
	"github.com/platinummonkey/flowdeck/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database storage.ConnectionConfig

	// Resolve cache configuration
	Cache CacheConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// CacheConfig holds resolve cache settings. When RedisURL is empty the
// service falls back to the in-process LRU cache; when Enabled is false
// resolutions always hit the database.
type CacheConfig struct {
	Enabled       bool
	TTL           time.Duration
	LRUSize       int
	RedisURL      string
	RedisPassword string
	RedisDB       int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("FLOWDECK_HOST", "0.0.0.0"),
		Port:            getEnv("FLOWDECK_PORT", "8080"),
		ReadTimeout:     getEnvDuration("FLOWDECK_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("FLOWDECK_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("FLOWDECK_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("FLOWDECK_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadDatabaseConfig() storage.ConnectionConfig {
	cfg := storage.DefaultConnectionConfig()

	if url := getEnv("FLOWDECK_DATABASE_URL", ""); url != "" {
		cfg.URL = url
	}
	if maxConns := getEnvInt("FLOWDECK_DATABASE_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("FLOWDECK_DATABASE_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("FLOWDECK_DATABASE_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}

	return cfg
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:       getEnvBool("FLOWDECK_CACHE_ENABLED", true),
		TTL:           getEnvDuration("FLOWDECK_CACHE_TTL", 5*time.Minute),
		LRUSize:       getEnvInt("FLOWDECK_CACHE_LRU_SIZE", 4096),
		RedisURL:      getEnv("FLOWDECK_REDIS_URL", ""),
		RedisPassword: getEnv("FLOWDECK_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("FLOWDECK_REDIS_DB", 0),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("FLOWDECK_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("FLOWDECK_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be numeric: %q", c.Server.Port)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Cache.Enabled {
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("cache TTL must be positive")
		}
		if c.Cache.RedisURL == "" && c.Cache.LRUSize <= 0 {
			return fmt.Errorf("cache LRU size must be positive")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
