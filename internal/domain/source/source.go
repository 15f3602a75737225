package source

import (
	"context"
	"slices"

	"github.com/kailas-cloud/fedcat/internal/domain/resource"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/response"
	"github.com/kailas-cloud/fedcat/internal/domain/search/result"
)

// Gateway is the contract every remote or local source implements.
// Implementations must bound their own I/O: a hanging source must not block callers
// beyond the context deadline.
type Gateway interface {
	ID() string
	Version() string
	ContentTypes() []string
	IsAvailable(ctx context.Context) bool
	// Query fails with domain.ErrUnsupportedQuery when the request cannot be expressed.
	Query(ctx context.Context, req query.Request) (QueryResult, error)
	// RetrieveResource fails with domain.ErrResourceNotFound, domain.ErrResourceNotSupported
	// or domain.ErrIO.
	RetrieveResource(ctx context.Context, uri string, properties map[string]any) (resource.Resource, error)
}

// QueryResult is what one gateway returns for one query.
type QueryResult struct {
	Results []result.Result
	Hits    int64
	Details []response.ProcessingDetail
}

// Descriptor advertises a source's identity and content for capability discovery.
type Descriptor struct {
	ID           string
	Version      string
	Available    bool
	ContentTypes []string
}

// InfoRequest asks for descriptors of all or of specific sources.
type InfoRequest struct {
	Enterprise bool
	SourceIDs  []string
}

// InfoResponse lists source descriptors.
type InfoResponse struct {
	Request InfoRequest
	Sources []Descriptor
}

// Describe builds a descriptor from a gateway, probing availability.
func Describe(ctx context.Context, g Gateway) Descriptor {
	return Descriptor{
		ID:           g.ID(),
		Version:      g.Version(),
		Available:    g.IsAvailable(ctx),
		ContentTypes: slices.Clone(g.ContentTypes()),
	}
}
