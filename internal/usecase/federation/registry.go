package federation

import (
	"fmt"
	"slices"

	"github.com/kailas-cloud/fedcat/internal/domain/source"
)

// Registry holds the gateways known to the process.
//
// Federated gateways take part in enterprise queries and are tried first during
// resource fallback. Connected gateways are auxiliary: they are only consulted for
// resource fallback or when named explicitly. The local gateway, if any, is the
// catalog this node owns; it may also appear in the federated list.
type Registry struct {
	federated []source.Gateway
	connected []source.Gateway
	local     source.Gateway
}

// NewRegistry validates gateway ids and builds a registry. Order is preserved.
func NewRegistry(federated, connected []source.Gateway, local source.Gateway) (*Registry, error) {
	seen := make(map[string]struct{}, len(federated)+len(connected))
	for _, g := range slices.Concat(federated, connected) {
		if g == nil {
			return nil, fmt.Errorf("nil gateway")
		}
		id := g.ID()
		if id == "" {
			return nil, fmt.Errorf("gateway with empty id")
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate gateway id %q", id)
		}
		seen[id] = struct{}{}
	}
	if local != nil {
		if other, ok := find(slices.Concat(federated, connected), local.ID()); ok && other != local {
			return nil, fmt.Errorf("local gateway id %q clashes with another gateway", local.ID())
		}
	}
	return &Registry{
		federated: slices.Clone(federated),
		connected: slices.Clone(connected),
		local:     local,
	}, nil
}

// Federated returns the federated gateways in registration order.
func (r *Registry) Federated() []source.Gateway { return slices.Clone(r.federated) }

// Connected returns the connected gateways in registration order.
func (r *Registry) Connected() []source.Gateway { return slices.Clone(r.connected) }

// Local returns the local gateway.
func (r *Registry) Local() (source.Gateway, bool) { return r.local, r.local != nil }

// FallbackOrder returns federated gateways followed by connected gateways.
func (r *Registry) FallbackOrder() []source.Gateway {
	return slices.Concat(r.federated, r.connected)
}

// Lookup finds a gateway by id among federated, connected and local gateways.
func (r *Registry) Lookup(id string) (source.Gateway, bool) {
	if g, ok := find(r.FallbackOrder(), id); ok {
		return g, true
	}
	if r.local != nil && r.local.ID() == id {
		return r.local, true
	}
	return nil, false
}

// All returns every distinct gateway, local last if it is not also federated.
func (r *Registry) All() []source.Gateway {
	all := r.FallbackOrder()
	if r.local != nil && !slices.Contains(all, r.local) {
		all = append(all, r.local)
	}
	return all
}

func find(gs []source.Gateway, id string) (source.Gateway, bool) {
	for _, g := range gs {
		if g.ID() == id {
			return g, true
		}
	}
	return nil, false
}
