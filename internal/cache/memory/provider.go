// Package memory provides the in-process cache backend: a map-backed store
// with TTL expiry and size-bounded least-recently-used eviction. Entries are
// evicted in ascending last-access order whenever a write would push the
// store past its byte budget.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"cache-connector/internal/cache"
	"cache-connector/internal/cache/base"
	"cache-connector/internal/common/logging"
)

// Provider implements cache.Provider over an in-process map.
type Provider struct {
	mu          sync.Mutex
	entries     map[string]*cache.Entry
	currentSize int64
	books       *base.Bookkeeper
	config      *Config
	logger      logging.Logger
	done        chan struct{}
	destroyed   bool
}

// NewProvider creates an in-process provider and, when a check period is
// configured, starts its background sweep.
func NewProvider(config *Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		entries: make(map[string]*cache.Entry),
		books:   base.NewBookkeeper(config.DefaultTTL),
		config:  config,
		logger:  logging.GetGlobalLogger().WithFields(logging.String("provider", "memory")),
		done:    make(chan struct{}),
	}

	if config.CheckPeriod > 0 {
		go p.sweep()
	}

	return p, nil
}

// Type returns the provider type name.
func (p *Provider) Type() string {
	return cache.TypeMemory
}

// Get retrieves a value by key, performing access bookkeeping on a hit.
func (p *Provider) Get(ctx context.Context, key string) (interface{}, bool) {
	entry, ok := p.lookup(key)
	if !ok {
		return nil, false
	}

	value := entry.Value
	if p.config.DeepCopyOnRead {
		value = deepCopy(value)
	}
	return value, true
}

// GetWithMetadata retrieves the full entry for key.
func (p *Provider) GetWithMetadata(ctx context.Context, key string) (*cache.Entry, bool) {
	entry, ok := p.lookup(key)
	if !ok {
		return nil, false
	}

	if p.config.DeepCopyOnRead {
		entry.Value = deepCopy(entry.Value)
	}
	return &entry, true
}

// Set stores a value under key, evicting least-recently-used entries first
// when the write would exceed the configured size budget.
func (p *Provider) Set(ctx context.Context, key string, value interface{}, opts cache.SetOptions) error {
	meta := p.books.NewMetadata(value, opts)

	p.mu.Lock()
	defer p.mu.Unlock()

	// Overwrites replace the entry wholesale; reclaim the old size first.
	if existing, ok := p.entries[key]; ok {
		p.currentSize -= existing.Metadata.Size
		delete(p.entries, key)
	}

	if p.currentSize+meta.Size > p.config.MaxSize {
		p.evictLocked(meta.Size)
	}

	p.entries[key] = &cache.Entry{Key: key, Value: value, Metadata: meta}
	p.currentSize += meta.Size
	return nil
}

// Delete removes a key, reporting whether an entry existed.
func (p *Provider) Delete(ctx context.Context, key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[key]
	if !ok {
		return false
	}

	p.removeLocked(entry)
	return true
}

// Has reports whether a live entry exists for key, with the same access
// bookkeeping as a successful Get.
func (p *Provider) Has(ctx context.Context, key string) bool {
	_, ok := p.lookup(key)
	return ok
}

// InvalidateByTags removes every entry carrying any of the given tags.
func (p *Provider) InvalidateByTags(ctx context.Context, tags []string) int {
	if len(tags) == 0 {
		return 0
	}

	wanted := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		wanted[tag] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for _, entry := range p.entries {
		for _, tag := range entry.Metadata.Tags {
			if _, ok := wanted[tag]; ok {
				p.removeLocked(entry)
				removed++
				break
			}
		}
	}
	return removed
}

// InvalidateByPattern removes every entry whose key matches the pattern
// under the given mode.
func (p *Provider) InvalidateByPattern(ctx context.Context, pattern string, mode cache.PatternMode) int {
	switch mode {
	case cache.PatternPrefix, cache.PatternSuffix, cache.PatternContains:
	default:
		p.logger.Warn("Unsupported pattern mode for invalidation", logging.String("mode", string(mode)))
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for key, entry := range p.entries {
		if base.MatchPattern(key, pattern, mode) {
			p.removeLocked(entry)
			removed++
		}
	}
	return removed
}

// Clear removes all entries.
func (p *Provider) Clear(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = make(map[string]*cache.Entry)
	p.currentSize = 0
	return nil
}

// Stats returns a snapshot of the provider's counters.
func (p *Provider) Stats(ctx context.Context) cache.Stats {
	p.mu.Lock()
	entryCount := int64(len(p.entries))
	size := p.currentSize
	p.mu.Unlock()

	return p.books.Snapshot(entryCount, size)
}

// Cleanup removes all currently-expired entries and returns how many.
func (p *Provider) Cleanup(ctx context.Context) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for _, entry := range p.entries {
		if base.IsExpired(entry.Metadata.ExpiresAt) {
			p.removeLocked(entry)
			removed++
		}
	}

	if removed > 0 {
		p.books.RecordExpirations(int64(removed))
	}
	return removed
}

// Destroy stops the background sweep. Destroy is idempotent.
func (p *Provider) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return nil
	}

	p.destroyed = true
	close(p.done)
	return nil
}

// lookup finds a live entry by key and performs hit/miss/expiry bookkeeping.
// It returns a copy of the entry so no shared struct escapes the critical
// section; concurrent lookups mutate the stored metadata under the mutex.
func (p *Provider) lookup(key string) (cache.Entry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[key]
	if !ok {
		p.books.RecordMiss()
		return cache.Entry{}, false
	}

	if base.IsExpired(entry.Metadata.ExpiresAt) {
		p.removeLocked(entry)
		p.books.RecordExpirations(1)
		p.books.RecordMiss()
		return cache.Entry{}, false
	}

	entry.Metadata.HitCount++
	entry.Metadata.LastAccessedAt = time.Now()
	p.books.RecordHit()
	return *entry, true
}

// evictLocked frees space in ascending last-access order until at least
// needed bytes are reclaimed or the map is empty. Caller must hold the mutex.
func (p *Provider) evictLocked(needed int64) {
	candidates := make([]*cache.Entry, 0, len(p.entries))
	for _, entry := range p.entries {
		candidates = append(candidates, entry)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Metadata.LastAccessedAt.Before(candidates[j].Metadata.LastAccessedAt)
	})

	var freed int64
	evicted := int64(0)
	for _, entry := range candidates {
		if freed >= needed {
			break
		}
		freed += entry.Metadata.Size
		p.removeLocked(entry)
		evicted++
	}

	if evicted > 0 {
		p.books.RecordEvictions(evicted)
		p.logger.Debug("Evicted entries to free space",
			logging.Int64("evicted", evicted),
			logging.Int64("freed_bytes", freed),
		)
	}
}

// removeLocked deletes an entry and subtracts its size. Caller must hold the mutex.
func (p *Provider) removeLocked(entry *cache.Entry) {
	delete(p.entries, entry.Key)
	p.currentSize -= entry.Metadata.Size
}

// sweep periodically removes expired entries until Destroy is called.
func (p *Provider) sweep() {
	ticker := time.NewTicker(p.config.CheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.Cleanup(context.Background())
		}
	}
}

// deepCopy clones a value through a JSON round trip. Values that do not
// survive the round trip are returned as-is.
func deepCopy(value interface{}) interface{} {
	data, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var clone interface{}
	if err := json.Unmarshal(data, &clone); err != nil {
		return value
	}
	return clone
}

var _ cache.Provider = (*Provider)(nil)
