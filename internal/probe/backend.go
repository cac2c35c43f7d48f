package probe

import (
	"context"
	"fmt"
)

// Backend is a measurement source. Ping probes host and sends every record to
// out followed by EndEvent, unless it fails. ctx ends when the owner abandons
// the task; cancel is closed when the owner asks the probe to stop and must be
// polled between blocking steps. Cancellation is not an error: a probe that
// stops on cancel ends with CancelledEvent instead.
type Backend interface {
	Name() string
	Ping(ctx context.Context, host string, cancel <-chan struct{}, out chan<- Event) error
}

// Registry is an ordered collection of backends.
type Registry struct {
	backends []Backend
	index    map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register appends b. A backend with the same name replaces the earlier one in place.
func (r *Registry) Register(b Backend) {
	if i, ok := r.index[b.Name()]; ok {
		r.backends[i] = b
		return
	}
	r.index[b.Name()] = len(r.backends)
	r.backends = append(r.backends, b)
}

// Get returns a backend by name.
func (r *Registry) Get(name string) (Backend, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.backends[i], true
}

// At returns the backend registered at position i.
func (r *Registry) At(i int) (Backend, error) {
	if i < 0 || i >= len(r.backends) {
		return nil, fmt.Errorf("backend index %d out of range (have %d)", i, len(r.backends))
	}
	return r.backends[i], nil
}

// Len returns the number of registered backends.
func (r *Registry) Len() int { return len(r.backends) }

// Names returns backend names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name()
	}
	return names
}
