package memory

import (
	"cache-connector/internal/cache"
)

// GetFactory returns a memory provider factory for the cache registry.
func GetFactory() cache.ProviderFactory {
	return cache.NewFactory[*Config](
		"memory",
		func(config *Config) (cache.Provider, error) {
			return NewProvider(config)
		},
	)
}
