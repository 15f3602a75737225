package fanout

import (
	"context"

	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/response"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
)

// Federator runs a query across the underlying sources.
type Federator interface {
	Query(ctx context.Context, req query.Request) (*response.Response, error)
}

// GatewayLister lists the sources hidden behind the facade.
type GatewayLister interface {
	Federated() []source.Gateway
}
