package resource

import (
	"context"

	domres "github.com/kailas-cloud/fedcat/internal/domain/resource"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/response"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
)

// Finder runs catalog queries used to resolve a request to a record.
type Finder interface {
	Query(ctx context.Context, req query.Request) (*response.Response, error)
}

// GatewaySet supplies retrieval candidates.
type GatewaySet interface {
	FallbackOrder() []source.Gateway
	Local() (source.Gateway, bool)
	Lookup(id string) (source.Gateway, bool)
}

// Cache stores retrieved payloads across requests. Implementations swallow their own failures.
type Cache interface {
	Get(ctx context.Context, key domres.CacheKey) (domres.Resource, bool)
	Put(ctx context.Context, key domres.CacheKey, res domres.Resource)
}
