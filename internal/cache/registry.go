package cache

import (
	"fmt"
	"sync"
)

// Registry maps provider type names to their factories.
type Registry struct {
	factories map[string]ProviderFactory
	mu        sync.RWMutex
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]ProviderFactory),
	}
}

// Register adds a factory under its provider type, replacing any previous one.
func (r *Registry) Register(factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[factory.GetType()] = factory
}

// Create builds a provider of the given type from config.
func (r *Registry) Create(providerType string, config ProviderConfig) (Provider, error) {
	r.mu.RLock()
	factory, exists := r.factories[providerType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("cache provider type %s not registered", providerType)
	}

	return factory.Create(config)
}

// IsRegistered reports whether a factory exists for the given provider type.
func (r *Registry) IsRegistered(providerType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[providerType]
	return exists
}

// AvailableTypes returns the registered provider type names.
func (r *Registry) AvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for providerType := range r.factories {
		types = append(types, providerType)
	}
	return types
}

// Factory is a generic ProviderFactory over a concrete config type.
type Factory[C ProviderConfig] struct {
	typeName string
	creator  func(C) (Provider, error)
}

// NewFactory creates a factory for the given provider type name.
func NewFactory[C ProviderConfig](typeName string, creator func(C) (Provider, error)) *Factory[C] {
	return &Factory[C]{
		typeName: typeName,
		creator:  creator,
	}
}

// Create builds a provider, rejecting configs of the wrong concrete type.
func (f *Factory[C]) Create(config ProviderConfig) (Provider, error) {
	typed, ok := config.(C)
	if !ok {
		return nil, fmt.Errorf("invalid config type for %s provider, expected %T but got %T", f.typeName, typed, config)
	}
	return f.creator(typed)
}

// GetType returns the provider type name of this factory.
func (f *Factory[C]) GetType() string {
	return f.typeName
}
