package federation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
	"github.com/kailas-cloud/fedcat/internal/domain/search/filter"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/result"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
	"github.com/kailas-cloud/fedcat/internal/domain/source/sourcetest"
)

func newRequest(t *testing.T, timeout time.Duration, enterprise bool, ids ...string) query.Request {
	t.Helper()
	expr, err := filter.Text("river")
	require.NoError(t, err)
	q, err := query.New(expr, query.WithTimeout(timeout))
	require.NoError(t, err)
	return query.NewRequest(q, enterprise, ids, nil)
}

func cards(t *testing.T, sourceID string, ids ...string) []result.Result {
	t.Helper()
	out := make([]result.Result, 0, len(ids))
	for _, id := range ids {
		var opts []metacard.Option
		if sourceID != "" {
			opts = append(opts, metacard.WithSource(sourceID))
		}
		card, err := metacard.New(id, opts...)
		require.NoError(t, err)
		out = append(out, result.New(card, 1))
	}
	return out
}

func returning(rs []result.Result, hits int64) func(context.Context, query.Request) (source.QueryResult, error) {
	return func(context.Context, query.Request) (source.QueryResult, error) {
		return source.QueryResult{Results: rs, Hits: hits}, nil
	}
}

func newTestOrchestrator(t *testing.T, federated []source.Gateway, local source.Gateway, opts ...Option) *Orchestrator {
	t.Helper()
	reg, err := NewRegistry(federated, nil, local)
	require.NoError(t, err)
	return New(reg, zap.NewNop(), opts...)
}

func gateways(gs ...*sourcetest.Gateway) []source.Gateway {
	out := make([]source.Gateway, len(gs))
	for i, g := range gs {
		out[i] = g
	}
	return out
}
