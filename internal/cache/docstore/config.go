package docstore

import (
	"fmt"
	"regexp"
	"time"

	"cache-connector/internal/common/errors"
)

// Config holds the shared-store provider settings.
type Config struct {
	Driver          string        // database/sql driver name ("sqlite3" or "pgx")
	DSN             string        // Driver connection string
	Table           string        // Table holding one row per cache key
	DefaultTTL      time.Duration // TTL applied when a set does not specify one
	CleanupEnabled  bool          // Whether the periodic cleanup runs
	CleanupInterval time.Duration // Cleanup schedule interval
}

// Table names are interpolated into DDL/queries, so they are restricted to
// plain identifiers.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return errors.ConfigError("shared-store DSN is required")
	}

	// Set defaults
	if c.Driver == "" {
		c.Driver = "sqlite3"
	}

	if c.Driver != "sqlite3" && c.Driver != "pgx" {
		return errors.ConfigError(fmt.Sprintf("unsupported shared-store driver %q", c.Driver))
	}

	if c.Table == "" {
		c.Table = "cache_entries"
	}

	if !tableNamePattern.MatchString(c.Table) {
		return errors.ConfigError(fmt.Sprintf("invalid shared-store table name %q", c.Table))
	}

	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 5 * time.Minute
	}

	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}

	return nil
}

// GetType returns the provider type name.
func (c *Config) GetType() string {
	return "docstore"
}

// DefaultConfig returns a shared-store configuration with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Driver:          "sqlite3",
		DSN:             "./cache.db",
		Table:           "cache_entries",
		DefaultTTL:      5 * time.Minute,
		CleanupEnabled:  true,
		CleanupInterval: 5 * time.Minute,
	}
}
