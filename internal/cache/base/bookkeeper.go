// Package base provides the bookkeeping shared by every cache provider.
// Providers embed a Bookkeeper by composition rather than inheriting from a
// base type, so each backend stays independently constructible and testable.
package base

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"cache-connector/internal/cache"
)

// Bookkeeper tracks one provider's hit/miss/eviction/expiration counters and
// resolves TTLs against the provider's configured default.
type Bookkeeper struct {
	mu          sync.Mutex
	hits        int64
	misses      int64
	evictions   int64
	expirations int64
	defaultTTL  time.Duration
}

// NewBookkeeper creates a bookkeeper with the given default TTL.
// A zero or negative defaultTTL falls back to 5 minutes.
func NewBookkeeper(defaultTTL time.Duration) *Bookkeeper {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &Bookkeeper{defaultTTL: defaultTTL}
}

// RecordHit increments the hit counter.
func (b *Bookkeeper) RecordHit() {
	b.mu.Lock()
	b.hits++
	b.mu.Unlock()
}

// RecordMiss increments the miss counter.
func (b *Bookkeeper) RecordMiss() {
	b.mu.Lock()
	b.misses++
	b.mu.Unlock()
}

// RecordEvictions adds n to the eviction counter.
func (b *Bookkeeper) RecordEvictions(n int64) {
	b.mu.Lock()
	b.evictions += n
	b.mu.Unlock()
}

// RecordExpirations adds n to the expiration counter.
func (b *Bookkeeper) RecordExpirations(n int64) {
	b.mu.Lock()
	b.expirations += n
	b.mu.Unlock()
}

// Snapshot derives a Stats value from the counters plus the caller-supplied
// entry count and size. HitRatio is hits/(hits+misses), 0 before any read.
func (b *Bookkeeper) Snapshot(entryCount, size int64) cache.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ratio float64
	if total := b.hits + b.misses; total > 0 {
		ratio = float64(b.hits) / float64(total)
	}

	return cache.Stats{
		Hits:        b.hits,
		Misses:      b.misses,
		HitRatio:    ratio,
		EntryCount:  entryCount,
		Size:        size,
		Evictions:   b.evictions,
		Expirations: b.expirations,
	}
}

// ResolveTTL returns ttl, or the configured default when ttl is zero or negative.
func (b *Bookkeeper) ResolveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return b.defaultTTL
	}
	return ttl
}

// ExpiresAt computes the expiry instant for an entry written now.
func (b *Bookkeeper) ExpiresAt(ttl time.Duration) time.Time {
	return time.Now().Add(b.ResolveTTL(ttl))
}

// NewMetadata builds the metadata for a freshly written entry.
func (b *Bookkeeper) NewMetadata(value interface{}, opts cache.SetOptions) cache.Metadata {
	now := time.Now()
	return cache.Metadata{
		CreatedAt:      now,
		ExpiresAt:      now.Add(b.ResolveTTL(opts.TTL)),
		HitCount:       0,
		LastAccessedAt: now,
		Tags:           opts.Tags,
		Size:           EstimateSize(value),
	}
}

// IsExpired reports whether an entry with the given expiry is past it.
func IsExpired(expiresAt time.Time) bool {
	return !expiresAt.IsZero() && time.Now().After(expiresAt)
}

// MatchPattern reports whether key matches pattern under the given mode.
// An unknown mode matches nothing.
func MatchPattern(key, pattern string, mode cache.PatternMode) bool {
	switch mode {
	case cache.PatternPrefix:
		return strings.HasPrefix(key, pattern)
	case cache.PatternSuffix:
		return strings.HasSuffix(key, pattern)
	case cache.PatternContains:
		return strings.Contains(key, pattern)
	default:
		return false
	}
}

// EstimateSize approximates the in-memory footprint of a value: twice the
// byte length of its canonical JSON form, allowing for multi-byte text
// encoding. Values that fail to serialize estimate as 0 rather than erroring.
func EstimateSize(value interface{}) int64 {
	data, err := json.Marshal(value)
	if err != nil {
		return 0
	}
	return int64(len(data)) * 2
}
