// Command cache-connector is a smoke tool for the cache facade. It loads the
// environment configuration, runs a write/read/invalidate round trip against
// the configured backend and prints the resulting counters. Useful for
// verifying a deployment's backend settings before wiring the library into a
// service.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"cache-connector/internal/cache"
	"cache-connector/internal/cache/connector"
	"cache-connector/internal/common/logging"
	"cache-connector/internal/config"
)

func main() {
	cfg := config.Load()

	logger, err := logging.NewZapLogger(logging.LogConfig{Level: logging.ParseLevel(cfg.LogLevel), Output: os.Stdout})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobalLogger(logger)

	conn, err := connector.New(cfg)
	if err != nil {
		logger.Error("Invalid cache configuration", err)
		os.Exit(1)
	}
	defer conn.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	key := conn.BuildKey("smoke", fmt.Sprintf("%d", time.Now().UnixNano()))
	if err := conn.Set(ctx, key, map[string]interface{}{"checked_at": time.Now().Format(time.RFC3339)}, connector.Options{
		TTL:  time.Minute,
		Tags: []string{"smoke"},
	}); err != nil {
		logger.Error("Cache write failed", err, logging.String("backend", cfg.DefaultProvider))
		os.Exit(1)
	}

	if _, found := conn.Get(ctx, key); !found {
		logger.Error("Cache read after write missed", nil, logging.String("backend", cfg.DefaultProvider))
		os.Exit(1)
	}

	removed := conn.InvalidateByTags(ctx, []string{"smoke"})
	logger.Info("Cache backend round trip succeeded",
		logging.String("backend", cfg.DefaultProvider),
		logging.Int("invalidated", removed))

	for name, stats := range conn.AllStats(ctx) {
		printStats(name, stats)
	}
}

func printStats(name string, stats cache.Stats) {
	fmt.Printf("%s: entries=%d size=%d hits=%d misses=%d ratio=%.2f evictions=%d expirations=%d\n",
		name, stats.EntryCount, stats.Size, stats.Hits, stats.Misses, stats.HitRatio, stats.Evictions, stats.Expirations)
}
