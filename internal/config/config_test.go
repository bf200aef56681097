package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.True(t, cfg.Enabled)
	assert.Equal(t, "memory", cfg.DefaultProvider)
	assert.Equal(t, 5*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, "cache", cfg.Namespace)
	assert.Equal(t, int64(50*1024*1024), cfg.MemoryMaxSize)
	assert.Equal(t, 60*time.Second, cfg.MemoryCheckPeriod)
	assert.False(t, cfg.MemoryDeepCopy)
	assert.Equal(t, "sqlite3", cfg.StoreDriver)
	assert.Equal(t, "cache_entries", cfg.StoreTable)
	assert.Equal(t, "localhost", cfg.RedisHost)
	assert.Equal(t, 6379, cfg.RedisPort)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 5*time.Second, cfg.RedisConnectTimeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("CACHE_DEFAULT_PROVIDER", "redis")
	t.Setenv("CACHE_DEFAULT_TTL", "30s")
	t.Setenv("CACHE_NAMESPACE", "myapp")
	t.Setenv("CACHE_MEMORY_MAX_SIZE", "1024")
	t.Setenv("CACHE_REDIS_PORT", "6380")
	t.Setenv("CACHE_REDIS_TLS", "true")

	cfg := Load()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "redis", cfg.DefaultProvider)
	assert.Equal(t, 30*time.Second, cfg.DefaultTTL)
	assert.Equal(t, "myapp", cfg.Namespace)
	assert.Equal(t, int64(1024), cfg.MemoryMaxSize)
	assert.Equal(t, 6380, cfg.RedisPort)
	assert.True(t, cfg.RedisTLS)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CACHE_DEFAULT_TTL", "not-a-duration")
	t.Setenv("CACHE_MEMORY_MAX_SIZE", "not-a-number")
	t.Setenv("CACHE_ENABLED", "not-a-bool")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, int64(50*1024*1024), cfg.MemoryMaxSize)
	assert.True(t, cfg.Enabled)
}

func TestValidate(t *testing.T) {
	valid := Load()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "invalid default provider",
			mutate: func(c *Config) { c.DefaultProvider = "memcached" },
			errMsg: "CACHE_DEFAULT_PROVIDER",
		},
		{
			name:   "non-positive ttl",
			mutate: func(c *Config) { c.DefaultTTL = 0 },
			errMsg: "CACHE_DEFAULT_TTL",
		},
		{
			name:   "non-positive max size",
			mutate: func(c *Config) { c.MemoryMaxSize = -1 },
			errMsg: "CACHE_MEMORY_MAX_SIZE",
		},
		{
			name:   "unknown store driver",
			mutate: func(c *Config) { c.StoreDriver = "mysql" },
			errMsg: "CACHE_STORE_DRIVER",
		},
		{
			name:   "empty store dsn",
			mutate: func(c *Config) { c.StoreDSN = "" },
			errMsg: "CACHE_STORE_DSN",
		},
		{
			name:   "redis db out of range",
			mutate: func(c *Config) { c.RedisDB = 16 },
			errMsg: "CACHE_REDIS_DB",
		},
		{
			name:   "redis port out of range",
			mutate: func(c *Config) { c.RedisPort = 0 },
			errMsg: "CACHE_REDIS_PORT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
