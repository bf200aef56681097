package rediskv

import (
	"fmt"
	"time"

	"cache-connector/internal/common/errors"
)

// Config holds the distributed KV provider settings.
type Config struct {
	Host           string        // Redis host
	Port           int           // Redis port
	Password       string        // Redis authentication password
	DB             int           // Redis database index (0-15)
	ConnectTimeout time.Duration // Dial timeout
	TLS            bool          // Enable TLS on the connection
	DefaultTTL     time.Duration // TTL applied when a set does not specify one
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	// Set defaults
	if c.Host == "" {
		c.Host = "localhost"
	}

	if c.Port == 0 {
		c.Port = 6379
	}

	if c.Port < 0 || c.Port > 65535 {
		return errors.ConfigError(fmt.Sprintf("invalid Redis port %d", c.Port))
	}

	if c.DB < 0 || c.DB > 15 {
		return errors.ConfigError(fmt.Sprintf("Redis db index must be between 0 and 15, got %d", c.DB))
	}

	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}

	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 5 * time.Minute
	}

	return nil
}

// GetType returns the provider type name.
func (c *Config) GetType() string {
	return "redis"
}

// Address returns the host:port pair for the Redis client.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultConfig returns a distributed KV configuration with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           6379,
		DB:             0,
		ConnectTimeout: 5 * time.Second,
		DefaultTTL:     5 * time.Minute,
	}
}
