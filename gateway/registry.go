package gateway

import (
	"fmt"
	"sync"
)

// Registry manages the available payment source implementations.
type Registry struct {
	sources map[string]SourceFactory
	mu      sync.RWMutex
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]SourceFactory)}
}

// Register adds a payment source factory to the registry.
func (r *Registry) Register(name string, factory SourceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = factory
}

// Create instantiates a payment source by name.
func (r *Registry) Create(name string) (PaymentSource, error) {
	r.mu.RLock()
	factory, exists := r.sources[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("payment gateway '%s' is not registered", name)
	}
	return factory(), nil
}

// Names returns all registered gateway names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}

// DefaultRegistry is the global registry that gateway implementations
// register themselves with at init time.
var DefaultRegistry = NewRegistry()

// Register registers a source with the default registry.
func Register(name string, factory SourceFactory) {
	DefaultRegistry.Register(name, factory)
}

// Create instantiates a source from the default registry.
func Create(name string) (PaymentSource, error) {
	return DefaultRegistry.Create(name)
}
