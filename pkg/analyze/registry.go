package analyze

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Routine is a pluggable analysis unit: it takes a file path and returns
// findings. Implementations must be safe for concurrent use and free of
// side effects beyond their return value; a routine abandoned mid-run by a
// timeout or crash leaves nothing behind to roll back.
type Routine interface {
	// Name is the stable key the routine is registered and resolved under.
	Name() string

	// Extensions lists the file extensions the routine understands (with
	// leading dot). An empty list means the routine applies to every file.
	Extensions() []string

	// Run analyzes one file.
	Run(ctx context.Context, path string) ([]Finding, error)
}

// RoutineFactory produces a routine instance. Factories are registered at
// startup; resolution happens by table lookup, never by dynamic path
// construction.
type RoutineFactory func() Routine

// Registry maps stable string names to routine factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]RoutineFactory
}

// NewRegistry creates an empty routine registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]RoutineFactory)}
}

// Register adds a factory under the given name, replacing any previous
// registration.
func (r *Registry) Register(name string, factory RoutineFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Resolve returns a routine instance for the given name.
func (r *Registry) Resolve(name string) (Routine, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown routine %q", name)
	}
	return factory(), nil
}

// Names returns the registered routine names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
