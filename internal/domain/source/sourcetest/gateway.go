// Package sourcetest provides a scriptable source.Gateway for tests.
package sourcetest

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/kailas-cloud/fedcat/internal/domain"
	"github.com/kailas-cloud/fedcat/internal/domain/resource"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
)

// Gateway is an in-memory gateway whose behaviour is set through its fields.
// Unset funcs fall back to: always available, empty result, ResourceNotFound.
type Gateway struct {
	GatewayID string
	Types     []string
	Down      bool

	QueryFn    func(ctx context.Context, req query.Request) (source.QueryResult, error)
	RetrieveFn func(ctx context.Context, uri string, props map[string]any) (resource.Resource, error)

	queries   atomic.Int64
	mu        sync.Mutex
	retrieved []string
	lastProps map[string]any
}

var _ source.Gateway = (*Gateway)(nil)

// New creates a gateway with the given id.
func New(id string, contentTypes ...string) *Gateway {
	return &Gateway{GatewayID: id, Types: contentTypes}
}

func (g *Gateway) ID() string { return g.GatewayID }
func (g *Gateway) Version() string { return "test" }
func (g *Gateway) ContentTypes() []string { return slices.Clone(g.Types) }
func (g *Gateway) IsAvailable(context.Context) bool { return !g.Down }

func (g *Gateway) Query(ctx context.Context, req query.Request) (source.QueryResult, error) {
	g.queries.Add(1)
	if g.QueryFn != nil {
		return g.QueryFn(ctx, req)
	}
	return source.QueryResult{}, nil
}

func (g *Gateway) RetrieveResource(ctx context.Context, uri string, props map[string]any) (resource.Resource, error) {
	g.mu.Lock()
	g.retrieved = append(g.retrieved, uri)
	g.lastProps = props
	g.mu.Unlock()
	if g.RetrieveFn != nil {
		return g.RetrieveFn(ctx, uri, props)
	}
	return resource.Resource{}, domain.NewResourceNotFound(uri)
}

// Queries returns how many times Query was called.
func (g *Gateway) Queries() int { return int(g.queries.Load()) }

// Retrieved returns the URIs passed to RetrieveResource, in call order.
func (g *Gateway) Retrieved() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.retrieved)
}

// LastProperties returns the properties of the most recent retrieval.
func (g *Gateway) LastProperties() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastProps
}
