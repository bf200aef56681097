package cache

import "context"

// NoopProvider is the shared do-nothing backend. The connector hands it out
// when caching is globally disabled or when a real backend fails to
// construct, so call sites keep a uniform surface with zero cache behavior.
type NoopProvider struct{}

// NewNoopProvider returns the no-op provider.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

func (n *NoopProvider) Type() string { return TypeNoop }

func (n *NoopProvider) Get(ctx context.Context, key string) (interface{}, bool) {
	return nil, false
}

func (n *NoopProvider) GetWithMetadata(ctx context.Context, key string) (*Entry, bool) {
	return nil, false
}

func (n *NoopProvider) Set(ctx context.Context, key string, value interface{}, opts SetOptions) error {
	return nil
}

func (n *NoopProvider) Delete(ctx context.Context, key string) bool { return false }

func (n *NoopProvider) Has(ctx context.Context, key string) bool { return false }

func (n *NoopProvider) InvalidateByTags(ctx context.Context, tags []string) int { return 0 }

func (n *NoopProvider) InvalidateByPattern(ctx context.Context, pattern string, mode PatternMode) int {
	return 0
}

func (n *NoopProvider) Clear(ctx context.Context) error { return nil }

func (n *NoopProvider) Stats(ctx context.Context) Stats { return Stats{} }

func (n *NoopProvider) Cleanup(ctx context.Context) int { return 0 }

func (n *NoopProvider) Destroy() error { return nil }

var _ Provider = (*NoopProvider)(nil)
