// Package cache defines the provider contract shared by every cache backend:
// the entry and stats model, the Provider interface, and the factory registry
// the connector uses to build backends lazily.
package cache

import (
	"context"
	"time"
)

// Provider type names accepted by the facade and the registry.
const (
	TypeMemory   = "memory"
	TypeDocstore = "docstore"
	TypeRedis    = "redis"
	TypeNoop     = "noop"
)

// PatternMode selects how InvalidateByPattern matches keys.
type PatternMode string

const (
	// PatternPrefix matches keys starting with the pattern
	PatternPrefix PatternMode = "prefix"
	// PatternSuffix matches keys ending with the pattern
	PatternSuffix PatternMode = "suffix"
	// PatternContains matches keys containing the pattern as a substring
	PatternContains PatternMode = "contains"
)

// Metadata carries the per-entry bookkeeping stored alongside every value.
type Metadata struct {
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	HitCount       int64     `json:"hit_count"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	Tags           []string  `json:"tags,omitempty"`
	Size           int64     `json:"size,omitempty"`
}

// Entry is a cached value together with its key and metadata.
type Entry struct {
	Key      string      `json:"key"`
	Value    interface{} `json:"value"`
	Metadata Metadata    `json:"metadata"`
}

// SetOptions controls a single Set call.
// A zero TTL means the provider's configured default; tags are attached to
// the entry for later bulk invalidation.
type SetOptions struct {
	TTL  time.Duration
	Tags []string
}

// Stats is a point-in-time snapshot of one provider's counters.
// HitRatio is derived at read time and is 0 when no reads have happened.
// Stats are not durable: a restart resets them.
type Stats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRatio    float64 `json:"hit_ratio"`
	EntryCount  int64   `json:"entry_count"`
	Size        int64   `json:"size"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
}

// Provider is the capability interface every cache backend implements.
//
// Read-path methods (Get, GetWithMetadata, Has, Delete, the invalidations,
// Stats, Cleanup) never surface backend errors: failures are logged and
// reported as a miss, false or 0. Set returns its error so callers relying
// on a durable write can detect a silent failure. An entry past its expiry
// is never returned; discovering one removes it and counts one expiration.
type Provider interface {
	// Type returns the provider type name.
	Type() string

	// Get retrieves a value by key. The second return is false on a miss.
	Get(ctx context.Context, key string) (interface{}, bool)

	// GetWithMetadata retrieves the full entry, metadata included.
	GetWithMetadata(ctx context.Context, key string) (*Entry, bool)

	// Set stores a value under key, replacing any previous entry and its
	// metadata wholesale.
	Set(ctx context.Context, key string, value interface{}, opts SetOptions) error

	// Delete removes a key, reporting whether an entry existed.
	Delete(ctx context.Context, key string) bool

	// Has reports whether a live entry exists for key. It performs the same
	// access bookkeeping as a successful Get.
	Has(ctx context.Context, key string) bool

	// InvalidateByTags removes every entry carrying any of the given tags
	// and returns the number of entries removed.
	InvalidateByTags(ctx context.Context, tags []string) int

	// InvalidateByPattern removes every entry whose key matches the pattern
	// under the given mode and returns the number of entries removed.
	// An unsupported mode removes nothing.
	InvalidateByPattern(ctx context.Context, pattern string, mode PatternMode) int

	// Clear removes all entries owned by this provider.
	Clear(ctx context.Context) error

	// Stats returns a snapshot of this provider's counters.
	Stats(ctx context.Context) Stats

	// Cleanup actively removes expired entries and returns how many were
	// removed. Backends with native expiry may implement this as a no-op.
	Cleanup(ctx context.Context) int

	// Destroy releases provider resources (background sweeps, connections).
	// Destroy is idempotent.
	Destroy() error
}

// ProviderConfig is implemented by each backend's configuration type.
type ProviderConfig interface {
	Validate() error
	GetType() string
}

// ProviderFactory builds a provider from its configuration.
type ProviderFactory interface {
	Create(config ProviderConfig) (Provider, error)
	GetType() string
}
