// Package docstore provides the shared-store cache backend: one row per
// cache key in a SQL table, shared across process instances and surviving
// cold starts. It runs on database/sql with either the sqlite3 or the pgx
// stdlib driver; tag membership lives in a companion junction table so tag
// invalidation is exact rather than pattern-matched.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"

	"cache-connector/internal/cache"
	"cache-connector/internal/cache/base"
	"cache-connector/internal/common/errors"
	"cache-connector/internal/common/logging"
)

// deleteBatchSize bounds every bulk delete issued against the store.
const deleteBatchSize = 500

// Provider implements cache.Provider over a SQL document table.
type Provider struct {
	db        *sql.DB
	config    *Config
	books     *base.Bookkeeper
	logger    logging.Logger
	scheduler *cron.Cron
	mu        sync.Mutex
	destroyed bool
}

// NewProvider opens the backing database, migrates the cache tables and,
// when enabled, starts the periodic cleanup schedule.
func NewProvider(config *Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, errors.ConnectionError("failed to open shared store", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.ConnectionError("failed to ping shared store", err)
	}

	p := &Provider{
		db:     db,
		config: config,
		books:  base.NewBookkeeper(config.DefaultTTL),
		logger: logging.GetGlobalLogger().WithFields(logging.String("provider", "docstore")),
	}

	if err := p.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	if config.CleanupEnabled {
		p.scheduler = cron.New()
		_, err := p.scheduler.AddFunc(fmt.Sprintf("@every %s", config.CleanupInterval), func() {
			p.Cleanup(context.Background())
		})
		if err != nil {
			db.Close()
			return nil, errors.ConfigError(fmt.Sprintf("failed to schedule shared-store cleanup: %v", err))
		}
		p.scheduler.Start()
	}

	return p, nil
}

func (p *Provider) migrate() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL,
			hit_count BIGINT NOT NULL DEFAULT 0,
			last_accessed_at BIGINT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			size BIGINT NOT NULL DEFAULT 0
		)`, p.config.Table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_tags (
			key TEXT NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (key, tag)
		)`, p.config.Table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s (expires_at)`, p.config.Table, p.config.Table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_tags_tag ON %s_tags (tag)`, p.config.Table, p.config.Table),
	}

	for _, stmt := range statements {
		if _, err := p.db.Exec(stmt); err != nil {
			return errors.BackingStoreError("failed to migrate shared store", err)
		}
	}
	return nil
}

// Type returns the provider type name.
func (p *Provider) Type() string {
	return cache.TypeDocstore
}

// Get retrieves a value by key. Access metadata is updated fire-and-forget:
// a failed update is logged and never fails the read.
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

// Set writes or overwrites the full document for key. Write failures on this
// durable backend propagate to the caller.
func (p *Provider) Set(ctx context.Context, key string, value interface{}, opts cache.SetOptions) error {
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return errors.SerializationError("failed to serialize value for shared store", err).
			WithContext("key", key)
	}

	meta := p.books.NewMetadata(value, opts)
	tagsJSON, err := json.Marshal(meta.Tags)
	if err != nil {
		return errors.SerializationError("failed to serialize tags for shared store", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.BackingStoreError("failed to begin shared-store write", err)
	}
	defer tx.Rollback()

	upsert := p.rebind(fmt.Sprintf(`INSERT INTO %s
		(key, value, created_at, expires_at, hit_count, last_accessed_at, tags, size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			hit_count = excluded.hit_count,
			last_accessed_at = excluded.last_accessed_at,
			tags = excluded.tags,
			size = excluded.size`, p.config.Table))
	if _, err := tx.ExecContext(ctx, upsert,
		key, string(valueJSON),
		meta.CreatedAt.UnixMilli(), meta.ExpiresAt.UnixMilli(),
		meta.HitCount, meta.LastAccessedAt.UnixMilli(),
		string(tagsJSON), meta.Size,
	); err != nil {
		return errors.BackingStoreError("failed to write shared-store entry", err)
	}

	if _, err := tx.ExecContext(ctx,
		p.rebind(fmt.Sprintf(`DELETE FROM %s_tags WHERE key = ?`, p.config.Table)), key,
	); err != nil {
		return errors.BackingStoreError("failed to replace shared-store tags", err)
	}

	for _, tag := range meta.Tags {
		if _, err := tx.ExecContext(ctx,
			p.rebind(fmt.Sprintf(`INSERT INTO %s_tags (key, tag) VALUES (?, ?)`, p.config.Table)),
			key, tag,
		); err != nil {
			return errors.BackingStoreError("failed to write shared-store tag", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.BackingStoreError("failed to commit shared-store write", err)
	}
	return nil
}

// Delete removes a key, reporting whether an entry existed.
func (p *Provider) Delete(ctx context.Context, key string) bool {
	return p.deleteKeys(ctx, []string{key}) > 0
}

// Has reports whether a live entry exists for key, with the same access
// bookkeeping as a successful Get.
func (p *Provider) Has(ctx context.Context, key string) bool {
	_, ok := p.getEntry(ctx, key)
	return ok
}

// InvalidateByTags removes every entry carrying any of the given tags,
// deleting in bounded batches per tag.
func (p *Provider) InvalidateByTags(ctx context.Context, tags []string) int {
	removed := 0
	for _, tag := range tags {
		rows, err := p.db.QueryContext(ctx,
			p.rebind(fmt.Sprintf(`SELECT key FROM %s_tags WHERE tag = ?`, p.config.Table)), tag)
		if err != nil {
			p.logger.Error("Failed to query tag members", err, logging.String("operation", "invalidate_tags"))
			continue
		}

		keys, err := scanKeys(rows)
		if err != nil {
			p.logger.Error("Failed to scan tag members", err, logging.String("operation", "invalidate_tags"))
			continue
		}

		removed += p.deleteKeys(ctx, keys)
	}
	return removed
}

// InvalidateByPattern removes every entry whose key matches the pattern.
// Prefix mode runs as a lexicographic range query; suffix and contains modes
// scan the whole table and match client-side, which is the expensive path.
func (p *Provider) InvalidateByPattern(ctx context.Context, pattern string, mode cache.PatternMode) int {
	var keys []string

	switch mode {
	case cache.PatternPrefix:
		if pattern != "" {
			keys = p.keysInPrefixRange(ctx, pattern)
			break
		}
		fallthrough
	case cache.PatternSuffix, cache.PatternContains:
		all, err := p.allKeys(ctx)
		if err != nil {
			p.logger.Error("Failed to scan keys for pattern invalidation", err,
				logging.String("operation", "invalidate_pattern"))
			return 0
		}
		for _, key := range all {
			if base.MatchPattern(key, pattern, mode) {
				keys = append(keys, key)
			}
		}
	default:
		p.logger.Warn("Unsupported pattern mode for invalidation", logging.String("mode", string(mode)))
		return 0
	}

	return p.deleteKeys(ctx, keys)
}

// Clear removes all entries through repeated bounded-batch deletes.
func (p *Provider) Clear(ctx context.Context) error {
	for {
		rows, err := p.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT key FROM %s LIMIT %d`, p.config.Table, deleteBatchSize))
		if err != nil {
			return errors.BackingStoreError("failed to scan shared store for clear", err)
		}

		keys, err := scanKeys(rows)
		if err != nil {
			return errors.BackingStoreError("failed to read shared-store keys for clear", err)
		}

		if len(keys) == 0 {
			return nil
		}
		// A pass that removes nothing means deletes are failing while the
		// select still succeeds; bail out instead of re-selecting forever.
		if p.deleteKeys(ctx, keys) == 0 {
			return errors.BackingStoreError("shared-store clear made no progress", nil)
		}
	}
}

// Stats returns counters from this process plus entry count and size
// reconstructed by scanning the table.
func (p *Provider) Stats(ctx context.Context) cache.Stats {
	var entryCount, size int64
	row := p.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM %s`, p.config.Table))
	if err := row.Scan(&entryCount, &size); err != nil {
		p.logger.Error("Failed to read shared-store stats", err, logging.String("operation", "stats"))
	}
	return p.books.Snapshot(entryCount, size)
}

// Cleanup removes all expired documents in bounded batches and returns the count.
func (p *Provider) Cleanup(ctx context.Context) int {
	removed := 0
	now := time.Now().UnixMilli()

	for {
		rows, err := p.db.QueryContext(ctx,
			p.rebind(fmt.Sprintf(`SELECT key FROM %s WHERE expires_at < ? LIMIT %d`, p.config.Table, deleteBatchSize)),
			now)
		if err != nil {
			p.logger.Error("Failed to query expired entries", err, logging.String("operation", "cleanup"))
			break
		}

		keys, err := scanKeys(rows)
		if err != nil {
			p.logger.Error("Failed to scan expired entries", err, logging.String("operation", "cleanup"))
			break
		}

		if len(keys) == 0 {
			break
		}
		removed += p.deleteKeys(ctx, keys)
	}

	if removed > 0 {
		p.books.RecordExpirations(int64(removed))
		p.logger.Debug("Removed expired entries", logging.Int("removed", removed))
	}
	return removed
}

// Destroy stops the cleanup schedule and closes the database. Idempotent.
func (p *Provider) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return nil
	}
	p.destroyed = true

	if p.scheduler != nil {
		p.scheduler.Stop()
	}
	return p.db.Close()
}

// getEntry fetches a live entry by key, handling lazy expiry and the
// fire-and-forget access-metadata update.
func (p *Provider) getEntry(ctx context.Context, key string) (*cache.Entry, bool) {
	query := p.rebind(fmt.Sprintf(`SELECT value, created_at, expires_at, hit_count, last_accessed_at, tags, size
		FROM %s WHERE key = ?`, p.config.Table))

	var (
		valueJSON, tagsJSON                                string
		createdAt, expiresAt, hitCount, lastAccessed, size int64
	)
	err := p.db.QueryRowContext(ctx, query, key).
		Scan(&valueJSON, &createdAt, &expiresAt, &hitCount, &lastAccessed, &tagsJSON, &size)
	if err == sql.ErrNoRows {
		p.books.RecordMiss()
		return nil, false
	}
	if err != nil {
		p.logger.Error("Failed to fetch shared-store entry", err,
			logging.String("operation", "get"), logging.String("key", key))
		p.books.RecordMiss()
		return nil, false
	}

	if time.Now().UnixMilli() > expiresAt {
		p.deleteKeys(ctx, []string{key})
		p.books.RecordExpirations(1)
		p.books.RecordMiss()
		return nil, false
	}

	var value interface{}
	if err := json.Unmarshal([]byte(valueJSON), &value); err != nil {
		p.logger.Error("Failed to deserialize shared-store value", err,
			logging.String("operation", "get"), logging.String("key", key))
		p.books.RecordMiss()
		return nil, false
	}

	var tags []string
	if err := json.Unmarshal([]byte(tagsJSON), &tags); err != nil {
		tags = nil
	}

	now := time.Now()
	p.books.RecordHit()

	// Access bookkeeping is eventually consistent: the update runs in the
	// background and a failure is logged, never surfaced to the reader.
	go func() {
		update := p.rebind(fmt.Sprintf(
			`UPDATE %s SET hit_count = hit_count + 1, last_accessed_at = ? WHERE key = ?`, p.config.Table))
		if _, err := p.db.Exec(update, now.UnixMilli(), key); err != nil {
			p.logger.Warn("Failed to update access metadata",
				logging.String("key", key), logging.Err(err))
		}
	}()

	return &cache.Entry{
		Key:   key,
		Value: value,
		Metadata: cache.Metadata{
			CreatedAt:      time.UnixMilli(createdAt),
			ExpiresAt:      time.UnixMilli(expiresAt),
			HitCount:       hitCount + 1,
			LastAccessedAt: now,
			Tags:           tags,
			Size:           size,
		},
	}, true
}

// keysInPrefixRange returns keys in [pattern, incrementLastByte(pattern))
// using the table's primary-key ordering.
func (p *Provider) keysInPrefixRange(ctx context.Context, pattern string) []string {
	upper := incrementLastByte(pattern)

	var (
		rows *sql.Rows
		err  error
	)
	if upper == "" {
		rows, err = p.db.QueryContext(ctx,
			p.rebind(fmt.Sprintf(`SELECT key FROM %s WHERE key >= ?`, p.config.Table)), pattern)
	} else {
		rows, err = p.db.QueryContext(ctx,
			p.rebind(fmt.Sprintf(`SELECT key FROM %s WHERE key >= ? AND key < ?`, p.config.Table)),
			pattern, upper)
	}
	if err != nil {
		p.logger.Error("Failed to range-scan keys", err, logging.String("operation", "invalidate_pattern"))
		return nil
	}

	keys, err := scanKeys(rows)
	if err != nil {
		p.logger.Error("Failed to scan ranged keys", err, logging.String("operation", "invalidate_pattern"))
		return nil
	}
	return keys
}

func (p *Provider) allKeys(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT key FROM %s`, p.config.Table))
	if err != nil {
		return nil, err
	}
	return scanKeys(rows)
}

// deleteKeys removes entries and their tag rows in batches of deleteBatchSize,
// returning the number of entries that actually existed.
func (p *Provider) deleteKeys(ctx context.Context, keys []string) int {
	removed := 0
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		batch := keys[start:end]

		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(batch)), ", ")
		args := make([]interface{}, len(batch))
		for i, key := range batch {
			args[i] = key
		}

		tx, err := p.db.BeginTx(ctx, nil)
		if err != nil {
			p.logger.Error("Failed to begin batch delete", err, logging.String("operation", "delete"))
			continue
		}

		result, err := tx.ExecContext(ctx,
			p.rebind(fmt.Sprintf(`DELETE FROM %s WHERE key IN (%s)`, p.config.Table, placeholders)),
			args...)
		if err != nil {
			tx.Rollback()
			p.logger.Error("Failed to delete shared-store entries", err, logging.String("operation", "delete"))
			continue
		}

		if _, err := tx.ExecContext(ctx,
			p.rebind(fmt.Sprintf(`DELETE FROM %s_tags WHERE key IN (%s)`, p.config.Table, placeholders)),
			args...); err != nil {
			tx.Rollback()
			p.logger.Error("Failed to delete shared-store tag rows", err, logging.String("operation", "delete"))
			continue
		}

		if err := tx.Commit(); err != nil {
			p.logger.Error("Failed to commit batch delete", err, logging.String("operation", "delete"))
			continue
		}

		if affected, err := result.RowsAffected(); err == nil {
			removed += int(affected)
		}
	}
	return removed
}

// rebind converts ? placeholders to $n for the pgx driver.
func (p *Provider) rebind(query string) string {
	if p.config.Driver != "pgx" {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func scanKeys(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// incrementLastByte returns the smallest string lexicographically greater
// than every string with the given prefix, or "" when no such bound exists.
func incrementLastByte(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}

var _ cache.Provider = (*Provider)(nil)
