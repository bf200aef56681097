package docstore

import (
	"cache-connector/internal/cache"
)

// GetFactory returns a shared-store provider factory for the cache registry.
func GetFactory() cache.ProviderFactory {
	return cache.NewFactory[*Config](
		"docstore",
		func(config *Config) (cache.Provider, error) {
			return NewProvider(config)
		},
	)
}
