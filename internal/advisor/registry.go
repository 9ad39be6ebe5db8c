// Package advisor holds the registry of external routing advisors.
package advisor

import (
	"context"
	"sync"
)

// CapChainReorder is the capability the fabric looks for before
// handing a chain to an advisor.
const CapChainReorder = "chain_reorder"

// Client is one external advisor endpoint.
type Client interface {
	Name() string
	Connected() bool
	Capabilities() []string
	CallTool(ctx context.Context, name string, args map[string]any) (map[string]any, error)
}

// Registry keeps advisors in insertion order; consultation order is
// registration order.
type Registry struct {
	mu      sync.RWMutex
	clients []Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a client. A client with a duplicate name replaces
// the earlier registration in place.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.clients {
		if existing.Name() == c.Name() {
			r.clients[i] = c
			return
		}
	}
	r.clients = append(r.clients, c)
}

// Unregister removes a client by name, reporting whether it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.clients {
		if c.Name() == name {
			r.clients = append(r.clients[:i], r.clients[i+1:]...)
			return true
		}
	}
	return false
}

// ClientsWithCapability returns connected clients advertising the
// capability, in registration order.
func (r *Registry) ClientsWithCapability(capability string) []Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Client
	for _, c := range r.clients {
		if !c.Connected() {
			continue
		}
		for _, have := range c.Capabilities() {
			if have == capability {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
