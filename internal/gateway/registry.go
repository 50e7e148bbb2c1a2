package gateway

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the configured gateway adapters keyed by identifier.
// New gateways are added by implementing Adapter and registering it here,
// never by branching at call sites.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own name. Registering a duplicate
// name replaces the previous adapter.
func (r *Registry) Register(a Adapter) {
	if a == nil {
		panic("gateway: cannot register nil adapter")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Lookup returns the adapter for the given gateway identifier.
func (r *Registry) Lookup(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("gateway: no adapter registered for %q", name)
	}
	return a, nil
}

// Names returns the registered gateway identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
