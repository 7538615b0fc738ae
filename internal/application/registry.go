package application

import (
	"github.com/ericfisherdev/fitpanel/internal/domain/model"
)

// ProviderRegistry holds the configured provider clients. Providers without
// an OAuth application registration are simply absent. It is immutable after
// construction.
type ProviderRegistry struct {
	clients map[model.ProviderID]*ProviderClient
}

// NewProviderRegistry creates a registry holding clients. A later client for
// the same provider replaces an earlier one.
func NewProviderRegistry(clients ...*ProviderClient) *ProviderRegistry {
	r := &ProviderRegistry{clients: make(map[model.ProviderID]*ProviderClient, len(clients))}
	for _, c := range clients {
		r.clients[c.ID()] = c
	}
	return r
}

// Get returns the client for id, if configured.
func (r *ProviderRegistry) Get(id model.ProviderID) (*ProviderClient, bool) {
	c, ok := r.clients[id]
	return c, ok
}

// Pullers returns the configured clients in pull order.
func (r *ProviderRegistry) Pullers() []Puller {
	out := make([]Puller, 0, len(r.clients))
	for _, id := range model.AllProviders {
		if c, ok := r.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out
}
