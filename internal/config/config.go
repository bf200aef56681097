// Package config provides configuration management for the cache connector.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration before the cache facade is built.
//
// Environment Variables:
//
// Facade settings:
//   - CACHE_ENABLED: Whether caching is enabled at all (default: true)
//   - CACHE_DEFAULT_PROVIDER: Default backend - "memory", "docstore", "redis" or "noop" (default: memory)
//   - CACHE_DEFAULT_TTL: Default entry time-to-live (default: 5m)
//   - CACHE_NAMESPACE: Prefix joined into keys built via BuildKey (default: cache)
//   - LOG_LEVEL: Logging level (default: info)
//
// In-process backend:
//   - CACHE_MEMORY_MAX_SIZE: Size budget in bytes before LRU eviction (default: 52428800)
//   - CACHE_MEMORY_CHECK_PERIOD: Expired-entry sweep interval, 0 disables (default: 60s)
//   - CACHE_MEMORY_DEEP_COPY: Deep-copy values on read (default: false)
//
// Shared-store backend:
//   - CACHE_STORE_DRIVER: database/sql driver - "sqlite3" or "pgx" (default: sqlite3)
//   - CACHE_STORE_DSN: Driver connection string (default: ./cache.db)
//   - CACHE_STORE_TABLE: Table holding one row per cache key (default: cache_entries)
//   - CACHE_STORE_CLEANUP_ENABLED: Periodic expired-entry cleanup (default: true)
//   - CACHE_STORE_CLEANUP_INTERVAL: Cleanup schedule interval (default: 5m)
//
// Distributed backend:
//   - CACHE_REDIS_HOST: Redis host (default: localhost)
//   - CACHE_REDIS_PORT: Redis port (default: 6379)
//   - CACHE_REDIS_PASSWORD: Redis password
//   - CACHE_REDIS_DB: Redis database index 0-15 (default: 0)
//   - CACHE_REDIS_CONNECT_TIMEOUT: Dial timeout (default: 5s)
//   - CACHE_REDIS_TLS: Enable TLS on the connection (default: false)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values consumed by the cache connector.
// All fields correspond to environment variables that can be set to
// override the default values.
type Config struct {
	// Facade settings
	Enabled         bool          // Whether caching is enabled globally
	DefaultProvider string        // Backend used when no per-call override is given
	DefaultTTL      time.Duration // TTL applied when a set does not specify one
	Namespace       string        // Key namespace for BuildKey
	LogLevel        string        // Logging level (debug, info, warn, error)

	// In-process backend
	MemoryMaxSize     int64         // Size budget in bytes before LRU eviction
	MemoryCheckPeriod time.Duration // Expired-entry sweep interval (0 disables the sweep)
	MemoryDeepCopy    bool          // Deep-copy values on read

	// Shared-store backend
	StoreDriver          string        // database/sql driver name ("sqlite3" or "pgx")
	StoreDSN             string        // Driver connection string
	StoreTable           string        // Table holding one row per cache key
	StoreCleanupEnabled  bool          // Whether the periodic cleanup runs
	StoreCleanupInterval time.Duration // Cleanup schedule interval

	// Distributed backend
	RedisHost           string        // Redis host
	RedisPort           int           // Redis port
	RedisPassword       string        // Redis authentication password
	RedisDB             int           // Redis database index (0-15)
	RedisConnectTimeout time.Duration // Dial timeout
	RedisTLS            bool          // Enable TLS on the connection
}

// Load creates a new Config instance with values loaded from environment
// variables. A .env file in the working directory is loaded first if present.
//
// This function does not validate the configuration - call Validate() on the
// returned Config before use.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Enabled:         getBoolEnv("CACHE_ENABLED", true),
		DefaultProvider: getEnv("CACHE_DEFAULT_PROVIDER", "memory"),
		DefaultTTL:      getDurationEnv("CACHE_DEFAULT_TTL", 5*time.Minute),
		Namespace:       getEnv("CACHE_NAMESPACE", "cache"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		MemoryMaxSize:     getInt64Env("CACHE_MEMORY_MAX_SIZE", 50*1024*1024),
		MemoryCheckPeriod: getDurationEnv("CACHE_MEMORY_CHECK_PERIOD", 60*time.Second),
		MemoryDeepCopy:    getBoolEnv("CACHE_MEMORY_DEEP_COPY", false),

		StoreDriver:          getEnv("CACHE_STORE_DRIVER", "sqlite3"),
		StoreDSN:             getEnv("CACHE_STORE_DSN", "./cache.db"),
		StoreTable:           getEnv("CACHE_STORE_TABLE", "cache_entries"),
		StoreCleanupEnabled:  getBoolEnv("CACHE_STORE_CLEANUP_ENABLED", true),
		StoreCleanupInterval: getDurationEnv("CACHE_STORE_CLEANUP_INTERVAL", 5*time.Minute),

		RedisHost:           getEnv("CACHE_REDIS_HOST", "localhost"),
		RedisPort:           getIntEnv("CACHE_REDIS_PORT", 6379),
		RedisPassword:       getEnv("CACHE_REDIS_PASSWORD", ""),
		RedisDB:             getIntEnv("CACHE_REDIS_DB", 0),
		RedisConnectTimeout: getDurationEnv("CACHE_REDIS_CONNECT_TIMEOUT", 5*time.Second),
		RedisTLS:            getBoolEnv("CACHE_REDIS_TLS", false),
	}
}

// Validate checks that the configuration is internally consistent and all
// values fall inside their valid ranges.
func (c *Config) Validate() error {
	switch c.DefaultProvider {
	case "memory", "docstore", "redis", "noop":
	default:
		return fmt.Errorf("invalid CACHE_DEFAULT_PROVIDER %q: must be memory, docstore, redis or noop", c.DefaultProvider)
	}

	if c.DefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive, got %s", c.DefaultTTL)
	}

	if c.MemoryMaxSize <= 0 {
		return fmt.Errorf("CACHE_MEMORY_MAX_SIZE must be positive, got %d", c.MemoryMaxSize)
	}

	if c.StoreDriver != "sqlite3" && c.StoreDriver != "pgx" {
		return fmt.Errorf("invalid CACHE_STORE_DRIVER %q: must be sqlite3 or pgx", c.StoreDriver)
	}

	if c.StoreDSN == "" {
		return fmt.Errorf("CACHE_STORE_DSN is required")
	}

	if c.RedisDB < 0 || c.RedisDB > 15 {
		return fmt.Errorf("CACHE_REDIS_DB must be between 0 and 15, got %d", c.RedisDB)
	}

	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		return fmt.Errorf("CACHE_REDIS_PORT must be a valid port, got %d", c.RedisPort)
	}

	return nil
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getIntEnv retrieves an integer environment variable value or returns a default value.
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getInt64Env retrieves a 64-bit integer environment variable value or returns a default value.
func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv retrieves a duration environment variable value or returns a default value.
// Values parse with time.ParseDuration (e.g. "30s", "5m").
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
