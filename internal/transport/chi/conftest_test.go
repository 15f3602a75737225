package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
	domres "github.com/kailas-cloud/fedcat/internal/domain/resource"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/result"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
	"github.com/kailas-cloud/fedcat/internal/domain/source/sourcetest"
	"github.com/kailas-cloud/fedcat/internal/usecase/fanout"
	"github.com/kailas-cloud/fedcat/internal/usecase/federation"
	healthuc "github.com/kailas-cloud/fedcat/internal/usecase/health"
	resourceuc "github.com/kailas-cloud/fedcat/internal/usecase/resource"
)

const facadeID = "fedcat"

// catalogGateway answers queries by evaluating the filter over cards.
func catalogGateway(id string, cards ...metacard.Metacard) *sourcetest.Gateway {
	g := sourcetest.New(id, "text/plain")
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

func mustCard(t *testing.T, id string, opts ...metacard.Option) metacard.Metacard {
	t.Helper()
	c, err := metacard.New(id, opts...)
	if err != nil {
		t.Fatalf("metacard.New: %v", err)
	}
	return c
}

func serving(data string) func(context.Context, string, map[string]any) (domres.Resource, error) {
	return func(_ context.Context, _ string, props map[string]any) (domres.Resource, error) {
		res := domres.Resource{Name: "report.txt", MimeType: "text/plain", Data: []byte(data)}
		return res.Skip(domres.BytesToSkip(props)), nil
	}
}

// newTestAPI wires the real federation services over fake gateways.
func newTestAPI(t *testing.T, apiKeys []string, gateways ...*sourcetest.Gateway) http.Handler {
	t.Helper()
	federated := make([]source.Gateway, len(gateways))
	for i, g := range gateways {
		federated[i] = g
	}
	reg, err := federation.NewRegistry(federated, nil, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	logger := zap.NewNop()
	orch := federation.New(reg, logger)
	facade := fanout.New(facadeID, "1.0", orch, reg, logger)
	coord := resourceuc.New(orch, reg, logger)
	health := healthuc.New(nil, reg)

	return NewRouter(NewServer(facade, coord, health, logger), logger, apiKeys)
}

func do(t *testing.T, h http.Handler, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, http.NoBody)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}
