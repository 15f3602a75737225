package chi

import (
	"context"

	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
	domres "github.com/kailas-cloud/fedcat/internal/domain/resource"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/response"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
	healthuc "github.com/kailas-cloud/fedcat/internal/usecase/health"
)

// Catalog is the federation as one logical source.
type Catalog interface {
	ValidateQueryRequest(req *query.Request) error
	Query(ctx context.Context, req query.Request) (*response.Response, error)
	GetSourceInfo(ctx context.Context, req source.InfoRequest) (source.InfoResponse, error)
	Create(ctx context.Context, cards []metacard.Metacard) error
	Update(ctx context.Context, cards []metacard.Metacard) error
	Delete(ctx context.Context, ids []string) error
}

// Resources retrieves products.
type Resources interface {
	GetResource(ctx context.Context, req domres.Request, enterprise bool) (domres.Response, error)
	GetLocalResource(ctx context.Context, req domres.Request) (domres.Response, error)
	GetResourceFromSource(ctx context.Context, req domres.Request, sourceID string) (domres.Response, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
