package fedcat_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
	domres "github.com/kailas-cloud/fedcat/internal/domain/resource"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/result"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
	"github.com/kailas-cloud/fedcat/internal/domain/source/sourcetest"
	chiTransport "github.com/kailas-cloud/fedcat/internal/transport/chi"
	"github.com/kailas-cloud/fedcat/internal/usecase/fanout"
	"github.com/kailas-cloud/fedcat/internal/usecase/federation"
	healthuc "github.com/kailas-cloud/fedcat/internal/usecase/health"
	resourceuc "github.com/kailas-cloud/fedcat/internal/usecase/resource"
	fedcat "github.com/kailas-cloud/fedcat/pkg/sdk"
)

const apiKey = "e2e-key"

func card(t *testing.T, id string, opts ...metacard.Option) metacard.Metacard {
	t.Helper()
	c, err := metacard.New(id, opts...)
	if err != nil {
		t.Fatalf("metacard.New: %v", err)
	}
	return c
}

func catalog(id string, cards ...metacard.Metacard) *sourcetest.Gateway {
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

// startServer runs the real HTTP stack over two scripted sources.
func startServer(t *testing.T) string {
	t.Helper()
	s1 := catalog("s1", card(t, "doc-1",
		metacard.WithTitle("Harbor survey"),
		metacard.WithResourceURI("http://s1.test/doc-1"),
	))
	s1.RetrieveFn = func(_ context.Context, _ string, props map[string]any) (domres.Resource, error) {
		res := domres.Resource{Name: "report.txt", MimeType: "text/plain", Data: []byte("0123456789")}
		return res.Skip(domres.BytesToSkip(props)), nil
	}
	s2 := catalog("s2", card(t, "doc-2", metacard.WithTitle("Harbor lights")))

	reg, err := federation.NewRegistry([]source.Gateway{s1, s2}, nil, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	logger := zap.NewNop()
	orch := federation.New(reg, logger)
	facade := fanout.New("fedcat", "1.0", orch, reg, logger)
	coord := resourceuc.New(orch, reg, logger)
	health := healthuc.New(nil, reg)

	handler := chiTransport.NewRouter(chiTransport.NewServer(facade, coord, health, logger), logger, []string{apiKey})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestClient_AgainstServer(t *testing.T) {
	base := startServer(t)
	ctx := context.Background()

	c, err := fedcat.New(base, fedcat.WithAPIKey(apiKey))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := c.Query(ctx, fedcat.Query{Text: "harbor"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if res.Hits != 2 || len(res.Results) != 2 || !res.Complete {
		t.Errorf("unexpected query result %+v", res)
	}

	sources, err := c.Sources(ctx)
	if err != nil {
		t.Fatalf("Sources: %v", err)
	}
	if len(sources) != 1 || sources[0].ID != "fedcat" {
		t.Errorf("unexpected sources %+v", sources)
	}

	payload, err := c.Resource(ctx, fedcat.ResourceByID("doc-1").WithOffset(4))
	if err != nil {
		t.Fatalf("Resource: %v", err)
	}
	if string(payload.Data) != "456789" || payload.Offset != 4 || payload.Name != "report.txt" {
		t.Errorf("unexpected payload %+v", payload)
	}

	if _, err := c.Resource(ctx, fedcat.ResourceByID("ghost")); !errors.Is(err, fedcat.ErrResourceNotFound) {
		t.Errorf("ghost: expected ErrResourceNotFound, got %v", err)
	}
	if _, err := c.Resource(ctx, fedcat.ResourceByID("doc-2")); !errors.Is(err, fedcat.ErrResourceNotSupported) {
		t.Errorf("doc-2: expected ErrResourceNotSupported, got %v", err)
	}

	hs, err := c.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if hs.Status != "ok" {
		t.Errorf("health %q", hs.Status)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	base := startServer(t)

	c, err := fedcat.New(base, fedcat.WithAPIKey("wrong"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Sources(context.Background()); !errors.Is(err, fedcat.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	// /health is exempt from auth
	if _, err := c.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
}
