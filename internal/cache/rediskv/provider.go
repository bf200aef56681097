// Package rediskv provides the distributed cache backend on a remote
// key-value store with native per-key expiry. Every entry occupies two keys,
// the raw value and a parallel JSON metadata record, and each tag maps to a
// set of member keys kept alive slightly longer than the entries themselves.
package rediskv

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"cache-connector/internal/cache"
	"cache-connector/internal/cache/base"
	"cache-connector/internal/common/errors"
	"cache-connector/internal/common/logging"
)

const (
	// metaKeyPrefix namespaces the per-entry metadata records.
	metaKeyPrefix = "cache:meta:"
	// tagKeyPrefix namespaces the per-tag member sets.
	tagKeyPrefix = "cache:tags:"
	// tagTTLGrace keeps tag sets alive past their entries to tolerate
	// clock skew between entry and tag-set expiry.
	tagTTLGrace = 60 * time.Second
	// scanCount is the per-iteration hint for cursor scans.
	scanCount = 100
)

// Provider implements cache.Provider over a Redis-compatible store.
type Provider struct {
	client    *redis.Client
	config    *Config
	books     *base.Bookkeeper
	logger    logging.Logger
	mu        sync.Mutex
	connected bool
	destroyed bool
}

// NewProvider creates a distributed KV provider and verifies the connection.
func NewProvider(config *Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := &redis.Options{
		Addr:        config.Address(),
		Password:    config.Password,
		DB:          config.DB,
		DialTimeout: config.ConnectTimeout,
	}
	if config.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.ConnectionError("failed to connect to Redis", err)
	}

	return &Provider{
		client:    client,
		config:    config,
		books:     base.NewBookkeeper(config.DefaultTTL),
		logger:    logging.GetGlobalLogger().WithFields(logging.String("provider", "redis")),
		connected: true,
	}, nil
}

// Type returns the provider type name.
func (p *Provider) Type() string {
	return cache.TypeRedis
}

// Get retrieves a value by key, fetching value and metadata in one pipeline.
func (p *Provider) Get(ctx context.Context, key string) (interface{}, bool) {
	entry, ok := p.getEntry(ctx, key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// GetWithMetadata retrieves the full entry for key.
func (p *Provider) GetWithMetadata(ctx context.Context, key string) (*cache.Entry, bool) {
	return p.getEntry(ctx, key)
}

// Set writes the value, its metadata and its tag-set memberships as one
// atomic pipelined batch so entries are never partially visible. Write
// failures on this durable backend propagate to the caller.
func (p *Provider) Set(ctx context.Context, key string, value interface{}, opts cache.SetOptions) error {
	if !p.isConnected() {
		p.logger.Warn("Skipping set while disconnected", logging.String("key", key))
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return errors.SerializationError("failed to serialize value for Redis", err).
			WithContext("key", key)
	}

	meta := p.books.NewMetadata(value, opts)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return errors.SerializationError("failed to serialize metadata for Redis", err)
	}

	ttl := p.books.ResolveTTL(opts.TTL)

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.Set(ctx, metaKey(key), metaJSON, ttl)
	for _, tag := range meta.Tags {
		pipe.SAdd(ctx, tagKey(tag), key)
		pipe.Expire(ctx, tagKey(tag), ttl+tagTTLGrace)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return errors.BackingStoreError("failed to write Redis entry", err)
	}
	return nil
}

// Delete removes a key, its metadata and its tag-set memberships.
func (p *Provider) Delete(ctx context.Context, key string) bool {
	if !p.isConnected() {
		return false
	}

	// Metadata first: it knows which tag sets need cleaning.
	var tags []string
	if metaJSON, err := p.client.Get(ctx, metaKey(key)).Bytes(); err == nil {
		var meta cache.Metadata
		if err := json.Unmarshal(metaJSON, &meta); err == nil {
			tags = meta.Tags
		}
	}

	pipe := p.client.TxPipeline()
	delCmd := pipe.Del(ctx, key)
	pipe.Del(ctx, metaKey(key))
	for _, tag := range tags {
		pipe.SRem(ctx, tagKey(tag), key)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Error("Failed to delete Redis entry", err,
			logging.String("operation", "delete"), logging.String("key", key))
		return false
	}
	return delCmd.Val() > 0
}

// Has reports whether a live entry exists for key, with the same access
// bookkeeping as a successful Get.
func (p *Provider) Has(ctx context.Context, key string) bool {
	_, ok := p.getEntry(ctx, key)
	return ok
}

// InvalidateByTags removes every member of each tag set, then the tag set
// itself, and returns the number of distinct entries removed. Tag sets can
// hold stale members (keys already deleted through another tag or pattern,
// or natively expired), so only members whose DEL removed a live key count.
func (p *Provider) InvalidateByTags(ctx context.Context, tags []string) int {
	if !p.isConnected() {
		return 0
	}

	seen := make(map[string]struct{})
	for _, tag := range tags {
		members, err := p.client.SMembers(ctx, tagKey(tag)).Result()
		if err != nil {
			p.logger.Error("Failed to list tag members", err,
				logging.String("operation", "invalidate_tags"), logging.String("tag", tag))
			continue
		}

		pipe := p.client.TxPipeline()
		delCmds := make(map[string]*redis.IntCmd, len(members))
		for _, member := range members {
			delCmds[member] = pipe.Del(ctx, member)
			pipe.Del(ctx, metaKey(member))
		}
		pipe.Del(ctx, tagKey(tag))

		if _, err := pipe.Exec(ctx); err != nil {
			p.logger.Error("Failed to invalidate tag members", err,
				logging.String("operation", "invalidate_tags"), logging.String("tag", tag))
			continue
		}

		for member, cmd := range delCmds {
			if cmd.Val() > 0 {
				seen[member] = struct{}{}
			}
		}
	}
	return len(seen)
}

// InvalidateByPattern removes every entry whose key matches the pattern,
// translated to the store's glob syntax and walked with a cursor scan.
// Metadata and tag-index keys never match, so bookkeeping structures survive.
func (p *Provider) InvalidateByPattern(ctx context.Context, pattern string, mode cache.PatternMode) int {
	if !p.isConnected() {
		return 0
	}

	var glob string
	switch mode {
	case cache.PatternPrefix:
		glob = pattern + "*"
	case cache.PatternSuffix:
		glob = "*" + pattern
	case cache.PatternContains:
		glob = "*" + pattern + "*"
	default:
		p.logger.Warn("Unsupported pattern mode for invalidation", logging.String("mode", string(mode)))
		return 0
	}

	matched, err := p.scanKeys(ctx, glob, true)
	if err != nil {
		p.logger.Error("Failed to scan keys for pattern invalidation", err,
			logging.String("operation", "invalidate_pattern"))
		return 0
	}
	if len(matched) == 0 {
		return 0
	}

	pipe := p.client.TxPipeline()
	for _, key := range matched {
		pipe.Del(ctx, key)
		pipe.Del(ctx, metaKey(key))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Error("Failed to delete matched keys", err,
			logging.String("operation", "invalidate_pattern"))
		return 0
	}
	return len(matched)
}

// Clear removes every key this provider can see, bookkeeping included,
// through a cursor scan rather than FLUSHDB so a shared db index stays safe.
func (p *Provider) Clear(ctx context.Context) error {
	if !p.isConnected() {
		return nil
	}

	keys, err := p.scanKeys(ctx, "*", false)
	if err != nil {
		return errors.BackingStoreError("failed to scan keyspace for clear", err)
	}

	for start := 0; start < len(keys); start += scanCount {
		end := start + scanCount
		if end > len(keys) {
			end = len(keys)
		}
		if err := p.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return errors.BackingStoreError("failed to clear keyspace", err)
		}
	}
	return nil
}

// Stats returns counters from this process plus entry count and size
// reconstructed by scanning the metadata records.
func (p *Provider) Stats(ctx context.Context) cache.Stats {
	var entryCount, size int64

	if p.isConnected() {
		metaKeys, err := p.scanKeys(ctx, metaKeyPrefix+"*", false)
		if err != nil {
			p.logger.Error("Failed to scan metadata keys", err, logging.String("operation", "stats"))
		} else {
			entryCount = int64(len(metaKeys))
			for _, mk := range metaKeys {
				metaJSON, err := p.client.Get(ctx, mk).Bytes()
				if err != nil {
					continue
				}
				var meta cache.Metadata
				if err := json.Unmarshal(metaJSON, &meta); err == nil {
					size += meta.Size
				}
			}
		}
	}

	return p.books.Snapshot(entryCount, size)
}

// Cleanup is a no-op: native per-key expiry already reclaims space.
func (p *Provider) Cleanup(ctx context.Context) int {
	return 0
}

// Destroy marks the provider disconnected and closes the client. Idempotent.
func (p *Provider) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return nil
	}
	p.destroyed = true
	p.connected = false
	return p.client.Close()
}

func (p *Provider) isConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// getEntry fetches value and metadata in one pipeline, re-checks expiry
// against the local clock, and performs hit/miss bookkeeping.
func (p *Provider) getEntry(ctx context.Context, key string) (*cache.Entry, bool) {
	if !p.isConnected() {
		p.logger.Debug("Skipping get while disconnected", logging.String("key", key))
		p.books.RecordMiss()
		return nil, false
	}

	pipe := p.client.Pipeline()
	valCmd := pipe.Get(ctx, key)
	metaCmd := pipe.Get(ctx, metaKey(key))
	_, _ = pipe.Exec(ctx)

	if valCmd.Err() == redis.Nil || metaCmd.Err() == redis.Nil {
		p.books.RecordMiss()
		return nil, false
	}
	if valCmd.Err() != nil || metaCmd.Err() != nil {
		err := valCmd.Err()
		if err == nil {
			err = metaCmd.Err()
		}
		p.logger.Error("Failed to fetch Redis entry", err,
			logging.String("operation", "get"), logging.String("key", key))
		p.books.RecordMiss()
		return nil, false
	}

	var meta cache.Metadata
	if err := json.Unmarshal([]byte(metaCmd.Val()), &meta); err != nil {
		p.logger.Error("Failed to deserialize Redis metadata", err,
			logging.String("operation", "get"), logging.String("key", key))
		p.books.RecordMiss()
		return nil, false
	}

	// Native TTL should have removed it already; re-check against the
	// local clock anyway.
	if base.IsExpired(meta.ExpiresAt) {
		p.client.Del(ctx, key, metaKey(key))
		p.books.RecordExpirations(1)
		p.books.RecordMiss()
		return nil, false
	}

	var value interface{}
	if err := json.Unmarshal([]byte(valCmd.Val()), &value); err != nil {
		p.logger.Error("Failed to deserialize Redis value", err,
			logging.String("operation", "get"), logging.String("key", key))
		p.books.RecordMiss()
		return nil, false
	}

	meta.HitCount++
	meta.LastAccessedAt = time.Now()
	p.books.RecordHit()

	// Access bookkeeping is eventually consistent: rewrite the metadata in
	// the background with its remaining TTL, log and continue on failure.
	go func() {
		bg := context.Background()
		remaining, err := p.client.TTL(bg, metaKey(key)).Result()
		if err != nil || remaining <= 0 {
			return
		}
		updated, err := json.Marshal(meta)
		if err != nil {
			return
		}
		if err := p.client.Set(bg, metaKey(key), updated, remaining).Err(); err != nil {
			p.logger.Warn("Failed to update access metadata",
				logging.String("key", key), logging.Err(err))
		}
	}()

	return &cache.Entry{Key: key, Value: value, Metadata: meta}, true
}

// scanKeys walks the keyspace with a cursor, never a blocking full listing.
// With skipBookkeeping set, metadata and tag-index keys are excluded.
func (p *Provider) scanKeys(ctx context.Context, glob string, skipBookkeeping bool) ([]string, error) {
	var keys []string

	iter := p.client.Scan(ctx, 0, glob, scanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if skipBookkeeping && (strings.HasPrefix(key, metaKeyPrefix) || strings.HasPrefix(key, tagKeyPrefix)) {
			continue
		}
		keys = append(keys, key)
	}
	return keys, iter.Err()
}

func metaKey(key string) string {
	return metaKeyPrefix + key
}

func tagKey(tag string) string {
	return tagKeyPrefix + tag
}

var _ cache.Provider = (*Provider)(nil)
