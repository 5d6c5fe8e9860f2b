package gateway

import (
	"fmt"
	"sort"
	"sync"

	"github.com/payflow/payflow/internal/application/ports"
)

var _ ports.GatewayRegistry = (*Registry)(nil)

// Registry resolves gateways by name with a configured default.
type Registry struct {
	mu          sync.RWMutex
	gateways    map[string]ports.Gateway
	defaultName string
}

// NewRegistry creates an empty registry.
func NewRegistry(defaultName string) *Registry {
	return &Registry{
		gateways:    make(map[string]ports.Gateway),
		defaultName: defaultName,
	}
}

// Register adds a gateway under its own name.
func (r *Registry) Register(gw ports.Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[gw.Name()] = gw
}

// Get returns the named gateway; empty name selects the default.
func (r *Registry) Get(name string) (ports.Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		name = r.defaultName
	}
	gw, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("unknown gateway %q (available: %v)", name, r.names())
	}
	return gw, nil
}

func (r *Registry) names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
