package scraper

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"ListingHarvester/pkg/config"
)

// ErrUnknownBackend is returned for a backend name nobody registered.
var ErrUnknownBackend = errors.New("unknown backend")

// Registry maps backend names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds a factory under name. Names must be unique.
func (r *Registry) Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("invalid backend registration %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Factory returns the factory registered under name.
func (r *Registry) Factory(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return f, nil
}

// New builds the backend named by cfg.Backend.
func (r *Registry) New(cfg config.Config, logger arbor.ILogger) (Parser, error) {
	f, err := r.Factory(cfg.Backend)
	if err != nil {
		return nil, err
	}
	return f(cfg, logger)
}

// Names lists registered backends in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
