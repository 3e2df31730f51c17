package carrier

import (
	"context"
	"fmt"

	"FreightTracker/internal/domain"
	"FreightTracker/internal/ports"
)

// Adapter is one carrier source: a thin producer of raw events for a tracking number.
// Scrape returns an error only for adapter-level failures; "nothing found" is an empty event list.
type Adapter interface {
	Name() string
	Scrape(ctx context.Context, sess ports.Session, trackingNumber string) (domain.Shipment, error)
}

// Registry keeps a mapping from adapter names to their implementations.
type Registry struct {
	adapters map[string]Adapter
	order    []string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

// Register adds or replaces an adapter. Registration order is the default tracking order.
func (r *Registry) Register(adapter Adapter) {
	if r.adapters == nil {
		r.adapters = map[string]Adapter{}
	}
	name := adapter.Name()
	if _, exists := r.adapters[name]; !exists {
		r.order = append(r.order, name)
	}
	r.adapters[name] = adapter
}

// Resolve returns an adapter by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Adapter, error) {
	if adapter, ok := r.adapters[name]; ok {
		return adapter, nil
	}
	return nil, fmt.Errorf("carrier adapter %s is not registered", name)
}

// Names lists registered adapters in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Ordered returns the adapters in the given order; an empty list means registration order.
func (r *Registry) Ordered(names []string) ([]Adapter, error) {
	if len(names) == 0 {
		names = r.order
	}
	adapters := make([]Adapter, 0, len(names))
	for _, name := range names {
		adapter, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}
