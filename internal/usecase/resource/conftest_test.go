package resource

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
	domres "github.com/kailas-cloud/fedcat/internal/domain/resource"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/result"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
	"github.com/kailas-cloud/fedcat/internal/domain/source/sourcetest"
	"github.com/kailas-cloud/fedcat/internal/usecase/federation"
)

// catalog makes g answer queries by evaluating the filter over cards.
func catalog(g *sourcetest.Gateway, cards ...metacard.Metacard) *sourcetest.Gateway {
	g.QueryFn = func(_ context.Context, req query.Request) (source.QueryResult, error) {
		var out []result.Result
		for _, c := range cards {
			if req.Query().Filter().Matches(c) {
				out = append(out, result.New(c, 1))
			}
		}
		return source.QueryResult{Results: out, Hits: int64(len(out))}, nil
	}
	return g
}

// lenient makes g answer every query with cards, ignoring the filter.
func lenient(g *sourcetest.Gateway, cards ...metacard.Metacard) *sourcetest.Gateway {
	g.QueryFn = func(context.Context, query.Request) (source.QueryResult, error) {
		out := make([]result.Result, 0, len(cards))
		for _, c := range cards {
			out = append(out, result.New(c, 1))
		}
		return source.QueryResult{Results: out, Hits: int64(len(out))}, nil
	}
	return g
}

func payload(name, data string) func(context.Context, string, map[string]any) (domres.Resource, error) {
	return func(context.Context, string, map[string]any) (domres.Resource, error) {
		return domres.Resource{Name: name, MimeType: "text/plain", Data: []byte(data)}, nil
	}
}

func failing(err error) func(context.Context, string, map[string]any) (domres.Resource, error) {
	return func(context.Context, string, map[string]any) (domres.Resource, error) {
		return domres.Resource{}, err
	}
}

func newCard(t *testing.T, id string, opts ...metacard.Option) metacard.Metacard {
	t.Helper()
	c, err := metacard.New(id, opts...)
	require.NoError(t, err)
	return c
}

func newByID(t *testing.T, id string, props map[string]any) domres.Request {
	t.Helper()
	req, err := domres.NewRequest(domres.ByID, id, props)
	require.NoError(t, err)
	return req
}

func asGateways(gs ...*sourcetest.Gateway) []source.Gateway {
	out := make([]source.Gateway, len(gs))
	for i, g := range gs {
		out[i] = g
	}
	return out
}

func newTestCoordinator(
	t *testing.T, federated, connected []*sourcetest.Gateway, local *sourcetest.Gateway, opts ...Option,
) *Coordinator {
	t.Helper()
	var loc source.Gateway
	if local != nil {
		loc = local
	}
	reg, err := federation.NewRegistry(asGateways(federated...), asGateways(connected...), loc)
	require.NoError(t, err)
	return New(federation.New(reg, zap.NewNop()), reg, zap.NewNop(), opts...)
}

// memCache is a Cache that records traffic.
type memCache struct {
	mu      sync.Mutex
	entries map[domres.CacheKey]domres.Resource
	puts    int
	gets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[domres.CacheKey]domres.Resource)}
}

func (m *memCache) Get(_ context.Context, key domres.CacheKey) (domres.Resource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	r, ok := m.entries[key]
	return r, ok
}

func (m *memCache) has(key domres.CacheKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok
}

func (m *memCache) Put(_ context.Context, key domres.CacheKey, res domres.Resource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.entries[key] = res
}
