package federation

import "github.com/kailas-cloud/fedcat/internal/domain/source"

// GatewaySet resolves the gateways a query is dispatched to.
type GatewaySet interface {
	Federated() []source.Gateway
	Local() (source.Gateway, bool)
	Lookup(id string) (source.Gateway, bool)
}
