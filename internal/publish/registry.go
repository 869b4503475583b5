package publish

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the static map from platform api_name to Adapter. It is
// populated once at startup; an unknown api_name at publish time is a
// permanent configuration error, never a retry candidate.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter under its own Name. Registering the same name
// twice returns an error; the registry is meant to be assembled once.
func (r *Registry) Register(adapter Adapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("adapter %q already registered", name)
	}

	r.adapters[name] = adapter
	return nil
}

// Resolve returns the adapter registered for the api_name.
func (r *Registry) Resolve(apiName string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[apiName]
	if !ok {
		return nil, NewError(
			KindConfiguration,
			"unknown_platform",
			fmt.Sprintf("no adapter registered for platform %q", apiName),
			nil,
		)
	}

	return adapter, nil
}

// Names returns the registered api_names in sorted order.
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
