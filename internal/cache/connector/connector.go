// Package connector exposes the cache facade applications talk to. It owns
// the registry of backend factories, builds providers lazily from
// configuration on first use, and degrades to a no-op cache whenever caching
// is disabled or a backend cannot be constructed. Read failures never reach
// the caller; only writes to durable backends surface errors.
package connector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cache-connector/internal/cache"
	"cache-connector/internal/cache/docstore"
	"cache-connector/internal/cache/memory"
	"cache-connector/internal/cache/rediskv"
	"cache-connector/internal/common/errors"
	"cache-connector/internal/common/logging"
	"cache-connector/internal/config"
)

// Options controls a single Set call.
type Options struct {
	TTL     time.Duration // Entry lifetime; zero uses the configured default
	Tags    []string      // Tags for group invalidation
	Backend string        // Backend override; empty uses the default backend
}

// Connector is the cache facade. Providers are created on first use per
// backend and reused for the connector's lifetime.
type Connector struct {
	config   *config.Config
	registry *cache.Registry
	logger   logging.Logger
	noop     *cache.NoopProvider

	mu        sync.Mutex
	providers map[string]cache.Provider
	destroyed bool
}

// New creates a cache connector from the given configuration. No backend is
// contacted here; providers connect lazily when first used.
func New(cfg *config.Config) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	registry := cache.NewRegistry()
	registry.Register(memory.GetFactory())
	registry.Register(docstore.GetFactory())
	registry.Register(rediskv.GetFactory())

	return &Connector{
		config:    cfg,
		registry:  registry,
		logger:    logging.GetGlobalLogger().WithFields(logging.String("component", "cache")),
		noop:      cache.NewNoopProvider(),
		providers: make(map[string]cache.Provider),
	}, nil
}

// Get retrieves a value by key. An optional backend name overrides the
// configured default for this call.
func (c *Connector) Get(ctx context.Context, key string, backend ...string) (interface{}, bool) {
	return c.resolve(backend).Get(ctx, key)
}

// GetWithMetadata retrieves the full entry for key, including access and
// expiry metadata.
func (c *Connector) GetWithMetadata(ctx context.Context, key string, backend ...string) (*cache.Entry, bool) {
	return c.resolve(backend).GetWithMetadata(ctx, key)
}

// Set stores a value. Write errors from durable backends propagate so callers
// can decide whether a failed cache write matters to them.
func (c *Connector) Set(ctx context.Context, key string, value interface{}, opts Options) error {
	provider := c.resolveName(opts.Backend)

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	return provider.Set(ctx, key, value, cache.SetOptions{TTL: ttl, Tags: opts.Tags})
}

// Delete removes a single entry. Returns true when an entry was removed.
func (c *Connector) Delete(ctx context.Context, key string, backend ...string) bool {
	return c.resolve(backend).Delete(ctx, key)
}

// Has reports whether a live entry exists for key. This is a full read on
// the backend, so hit counters and recency move exactly as they do for Get.
func (c *Connector) Has(ctx context.Context, key string, backend ...string) bool {
	return c.resolve(backend).Has(ctx, key)
}

// InvalidateByTags removes every entry carrying at least one of the given
// tags and returns the number of entries removed.
func (c *Connector) InvalidateByTags(ctx context.Context, tags []string, backend ...string) int {
	return c.resolve(backend).InvalidateByTags(ctx, tags)
}

// InvalidateByPattern removes every entry whose key matches the pattern
// under the given mode and returns the number of entries removed.
func (c *Connector) InvalidateByPattern(ctx context.Context, pattern string, mode cache.PatternMode, backend ...string) int {
	return c.resolve(backend).InvalidateByPattern(ctx, pattern, mode)
}

// Clear removes all entries from one backend.
func (c *Connector) Clear(ctx context.Context, backend ...string) error {
	return c.resolve(backend).Clear(ctx)
}

// ClearAll clears every backend instantiated so far. Backends that were
// never used have nothing to clear and are not built for the occasion.
func (c *Connector) ClearAll(ctx context.Context) error {
	var firstErr error
	for name, provider := range c.instantiated() {
		if err := provider.Clear(ctx); err != nil {
			c.logger.Error("Failed to clear cache backend", err, logging.String("backend", name))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Stats returns counters for one backend.
func (c *Connector) Stats(ctx context.Context, backend ...string) cache.Stats {
	return c.resolve(backend).Stats(ctx)
}

// AllStats returns counters for every backend instantiated so far, keyed by
// backend name.
func (c *Connector) AllStats(ctx context.Context) map[string]cache.Stats {
	stats := make(map[string]cache.Stats)
	for name, provider := range c.instantiated() {
		stats[name] = provider.Stats(ctx)
	}
	return stats
}

// BuildKey joins the configured namespace and the given parts with ":".
func (c *Connector) BuildKey(parts ...string) string {
	return strings.Join(append([]string{c.config.Namespace}, parts...), ":")
}

// Destroy releases every instantiated provider. Safe to call more than once.
func (c *Connector) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return nil
	}
	c.destroyed = true

	var firstErr error
	for name, provider := range c.providers {
		if err := provider.Destroy(); err != nil {
			c.logger.Error("Failed to destroy cache backend", err, logging.String("backend", name))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.providers = make(map[string]cache.Provider)
	return firstErr
}

// resolve picks the provider for an optional variadic backend override.
func (c *Connector) resolve(backend []string) cache.Provider {
	name := ""
	if len(backend) > 0 {
		name = backend[0]
	}
	return c.resolveName(name)
}

// resolveName returns the provider for the named backend, building it on
// first use. Caching disabled, an unknown name, or a failed construction all
// degrade to the shared no-op provider; construction failures are not
// memoized, so a backend that comes up later starts serving.
func (c *Connector) resolveName(name string) cache.Provider {
	if !c.config.Enabled {
		return c.noop
	}

	if name == "" {
		name = c.config.DefaultProvider
	}
	if name == cache.TypeNoop {
		return c.noop
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return c.noop
	}
	if provider, ok := c.providers[name]; ok {
		return provider
	}

	providerConfig, err := c.providerConfig(name)
	if err != nil {
		c.logger.Error("Unknown cache backend, falling back to noop", err, logging.String("backend", name))
		return c.noop
	}

	provider, err := c.registry.Create(name, providerConfig)
	if err != nil {
		c.logger.Error("Failed to create cache backend, falling back to noop", err, logging.String("backend", name))
		return c.noop
	}

	c.logger.Info("Cache backend ready", logging.String("backend", name))
	c.providers[name] = provider
	return provider
}

// providerConfig maps a backend name to its provider configuration derived
// from the connector configuration.
func (c *Connector) providerConfig(name string) (cache.ProviderConfig, error) {
	switch name {
	case cache.TypeMemory:
		return &memory.Config{
			MaxSize:        c.config.MemoryMaxSize,
			CheckPeriod:    c.config.MemoryCheckPeriod,
			DefaultTTL:     c.config.DefaultTTL,
			DeepCopyOnRead: c.config.MemoryDeepCopy,
		}, nil
	case cache.TypeDocstore:
		return &docstore.Config{
			Driver:          c.config.StoreDriver,
			DSN:             c.config.StoreDSN,
			Table:           c.config.StoreTable,
			DefaultTTL:      c.config.DefaultTTL,
			CleanupEnabled:  c.config.StoreCleanupEnabled,
			CleanupInterval: c.config.StoreCleanupInterval,
		}, nil
	case cache.TypeRedis:
		return &rediskv.Config{
			Host:           c.config.RedisHost,
			Port:           c.config.RedisPort,
			Password:       c.config.RedisPassword,
			DB:             c.config.RedisDB,
			ConnectTimeout: c.config.RedisConnectTimeout,
			TLS:            c.config.RedisTLS,
			DefaultTTL:     c.config.DefaultTTL,
		}, nil
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown cache backend %q", name))
	}
}

// instantiated snapshots the providers built so far.
func (c *Connector) instantiated() map[string]cache.Provider {
	c.mu.Lock()
	defer c.mu.Unlock()

	snapshot := make(map[string]cache.Provider, len(c.providers))
	for name, provider := range c.providers {
		snapshot[name] = provider
	}
	return snapshot
}
