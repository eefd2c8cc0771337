package provider

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kursadbilgin/notify-gateway/internal/domain"
)

// Registry maps providers to adapters. It is filled once at startup and only
// read afterwards, so it is safe to share across concurrent dispatches.
type Registry struct {
	adapters    map[domain.Provider]Adapter
	unavailable map[domain.Provider]error
}

func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{
		adapters:    make(map[domain.Provider]Adapter),
		unavailable: make(map[domain.Provider]error),
	}
	for _, a := range adapters {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(a Adapter) error {
	if a == nil {
		return fmt.Errorf("adapter is required")
	}

	p := a.Provider()
	if !p.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, p)
	}
	if _, exists := r.adapters[p]; exists {
		return fmt.Errorf("adapter for %s already registered", p)
	}

	delete(r.unavailable, p)
	r.adapters[p] = a
	return nil
}

// Install registers the result of an adapter constructor. A config error
// marks the provider unavailable instead of failing startup.
func (r *Registry) Install(p domain.Provider, a Adapter, constructErr error) error {
	if constructErr != nil {
		if !errors.Is(constructErr, domain.ErrConfig) {
			return fmt.Errorf("failed to build %s adapter: %w", p, constructErr)
		}
		r.unavailable[p] = constructErr
		return nil
	}
	return r.Register(a)
}

// Resolve returns the adapter for p, a config error when its adapter could
// not be built, or ErrUnsupportedProvider.
func (r *Registry) Resolve(p domain.Provider) (Adapter, error) {
	if a, ok := r.adapters[p]; ok {
		return a, nil
	}
	if err, ok := r.unavailable[p]; ok {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, p)
}

// Providers returns the providers with a working adapter, sorted.
func (r *Registry) Providers() []domain.Provider {
	providers := make([]domain.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })
	return providers
}
