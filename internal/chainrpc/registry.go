package chainrpc

import (
	apperrors "github.com/zivra/zivra-custody/pkg/errors"
)

// Registry resolves a chain family to its RPC client.
type Registry struct {
	clients map[string]Client
}

// NewRegistry creates a registry over the given clients
func NewRegistry(clients ...Client) *Registry {
	m := make(map[string]Client, len(clients))
	for _, c := range clients {
		m[c.Family()] = c
	}
	return &Registry{clients: m}
}

// ForFamily returns the client for a chain family
func (r *Registry) ForFamily(family string) (Client, error) {
	c, ok := r.clients[family]
	if !ok {
		return nil, apperrors.ChainNotSupported(family)
	}
	return c, nil
}

// Families lists the chain families with a registered client
func (r *Registry) Families() []string {
	families := make([]string, 0, len(r.clients))
	for f := range r.clients {
		families = append(families, f)
	}
	return families
}
