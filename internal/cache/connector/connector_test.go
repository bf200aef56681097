package connector

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cache-connector/internal/cache"
	"cache-connector/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Enabled:         true,
		DefaultProvider: "memory",
		DefaultTTL:      time.Minute,
		Namespace:       "app",
		LogLevel:        "info",

		MemoryMaxSize: 1 << 20,

		StoreDriver: "sqlite3",
		StoreDSN:    fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(t.TempDir(), "cache.db")),
		StoreTable:  "cache_entries",

		RedisHost:           "localhost",
		RedisPort:           6379,
		RedisConnectTimeout: time.Second,
	}
}

func newTestConnector(t *testing.T, cfg *config.Config) *Connector {
	t.Helper()
	connector, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = connector.Destroy() })
	return connector
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.DefaultProvider = "memcached"

	connector, err := New(cfg)
	assert.Error(t, err)
	assert.Nil(t, connector)
}

func TestDefaultBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t, testConfig(t))

	require.NoError(t, connector.Set(ctx, "k", "v", Options{}))

	value, found := connector.Get(ctx, "k")
	require.True(t, found)
	assert.Equal(t, "v", value)
	assert.True(t, connector.Has(ctx, "k"))
}

func TestDisabledCachingIsNoop(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Enabled = false
	connector := newTestConnector(t, cfg)

	require.NoError(t, connector.Set(ctx, "k", "v", Options{}))

	_, found := connector.Get(ctx, "k")
	assert.False(t, found)
	assert.False(t, connector.Has(ctx, "k"))
	assert.Zero(t, connector.InvalidateByTags(ctx, []string{"x"}))
	assert.Empty(t, connector.AllStats(ctx))
}

func TestUnknownBackendFallsBackToNoop(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t, testConfig(t))

	require.NoError(t, connector.Set(ctx, "k", "v", Options{Backend: "memcached"}))

	_, found := connector.Get(ctx, "k", "memcached")
	assert.False(t, found)
}

func TestFailedBackendFallsBackToNoop(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.DefaultProvider = "redis"
	cfg.RedisHost = "invalid"
	cfg.RedisConnectTimeout = 100 * time.Millisecond
	connector := newTestConnector(t, cfg)

	require.NoError(t, connector.Set(ctx, "k", "v", Options{}))

	_, found := connector.Get(ctx, "k")
	assert.False(t, found)

	// The failed construction is not memoized.
	assert.Empty(t, connector.AllStats(ctx))
}

func TestBackendOverride(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t, testConfig(t))

	require.NoError(t, connector.Set(ctx, "mem-only", 1, Options{}))
	require.NoError(t, connector.Set(ctx, "store-only", 2, Options{Backend: "docstore"}))

	_, found := connector.Get(ctx, "store-only")
	assert.False(t, found)

	value, found := connector.Get(ctx, "store-only", "docstore")
	require.True(t, found)
	assert.Equal(t, float64(2), value)
}

func TestRedisBackendOverride(t *testing.T) {
	ctx := context.Background()
	s := miniredis.RunT(t)
	port, err := strconv.Atoi(s.Port())
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.RedisHost = s.Host()
	cfg.RedisPort = port
	connector := newTestConnector(t, cfg)

	require.NoError(t, connector.Set(ctx, "k", "v", Options{Backend: "redis"}))

	value, found := connector.Get(ctx, "k", "redis")
	require.True(t, found)
	assert.Equal(t, "v", value)

	stats := connector.AllStats(ctx)
	assert.Contains(t, stats, "redis")
	assert.NotContains(t, stats, "memory")
}

func TestSetAppliesDefaultTTL(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t, testConfig(t))

	require.NoError(t, connector.Set(ctx, "k", "v", Options{}))

	entry, found := connector.GetWithMetadata(ctx, "k")
	require.True(t, found)
	assert.WithinDuration(t, time.Now().Add(time.Minute), entry.Metadata.ExpiresAt, 2*time.Second)
}

func TestInvalidation(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t, testConfig(t))

	require.NoError(t, connector.Set(ctx, "user:1", 1, Options{Tags: []string{"users"}}))
	require.NoError(t, connector.Set(ctx, "user:2", 2, Options{Tags: []string{"users"}}))
	require.NoError(t, connector.Set(ctx, "order:1", 3, Options{}))

	assert.Equal(t, 2, connector.InvalidateByTags(ctx, []string{"users"}))
	assert.Equal(t, 1, connector.InvalidateByPattern(ctx, "order:", cache.PatternPrefix))
	assert.False(t, connector.Delete(ctx, "order:1"))
}

func TestBuildKey(t *testing.T) {
	connector := newTestConnector(t, testConfig(t))

	assert.Equal(t, "app:users:42", connector.BuildKey("users", "42"))
	assert.Equal(t, "app", connector.BuildKey())
}

func TestAllStatsOnlyCoversInstantiatedBackends(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t, testConfig(t))

	assert.Empty(t, connector.AllStats(ctx))

	_, _ = connector.Get(ctx, "anything")

	stats := connector.AllStats(ctx)
	assert.Len(t, stats, 1)
	assert.Contains(t, stats, "memory")
	assert.Equal(t, int64(1), stats["memory"].Misses)
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t, testConfig(t))

	require.NoError(t, connector.Set(ctx, "a", 1, Options{}))
	require.NoError(t, connector.Set(ctx, "b", 2, Options{Backend: "docstore"}))

	require.NoError(t, connector.ClearAll(ctx))

	_, found := connector.Get(ctx, "a")
	assert.False(t, found)
	_, found = connector.Get(ctx, "b", "docstore")
	assert.False(t, found)
}

func TestDestroy(t *testing.T) {
	ctx := context.Background()
	connector := newTestConnector(t, testConfig(t))

	require.NoError(t, connector.Set(ctx, "k", "v", Options{}))
	require.NoError(t, connector.Destroy())
	require.NoError(t, connector.Destroy())

	// A destroyed connector degrades to noop instead of rebuilding backends.
	require.NoError(t, connector.Set(ctx, "k2", "v", Options{}))
	_, found := connector.Get(ctx, "k2")
	assert.False(t, found)
}
