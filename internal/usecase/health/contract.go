package health

import (
	"context"

	"github.com/kailas-cloud/fedcat/internal/domain/source"
)

// CachePinger checks resource cache backend availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// GatewayLister lists the sources whose availability is reported.
type GatewayLister interface {
	All() []source.Gateway
}
