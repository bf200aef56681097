package rediskv

import (
	"cache-connector/internal/cache"
)

// GetFactory returns a distributed KV provider factory for the cache registry.
func GetFactory() cache.ProviderFactory {
	return cache.NewFactory[*Config](
		"redis",
		func(config *Config) (cache.Provider, error) {
			return NewProvider(config)
		},
	)
}
