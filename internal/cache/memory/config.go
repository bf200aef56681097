package memory

import (
	"time"

	"cache-connector/internal/common/errors"
)

// Config holds the in-process provider settings.
type Config struct {
	MaxSize        int64         // Size budget in bytes before LRU eviction
	CheckPeriod    time.Duration // Expired-entry sweep interval (0 disables the sweep)
	DefaultTTL     time.Duration // TTL applied when a set does not specify one
	DeepCopyOnRead bool          // Return a deep copy of cached values on read
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.MaxSize < 0 {
		return errors.ConfigError("memory cache max size cannot be negative")
	}

	// Set defaults
	if c.MaxSize == 0 {
		c.MaxSize = 50 * 1024 * 1024
	}

	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 5 * time.Minute
	}

	if c.CheckPeriod < 0 {
		c.CheckPeriod = 0
	}

	return nil
}

// GetType returns the provider type name.
func (c *Config) GetType() string {
	return "memory"
}

// DefaultConfig returns a memory provider configuration with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		MaxSize:        50 * 1024 * 1024,
		CheckPeriod:    60 * time.Second,
		DefaultTTL:     5 * time.Minute,
		DeepCopyOnRead: false,
	}
}
