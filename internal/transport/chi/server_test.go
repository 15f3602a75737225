package chi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedcat/internal/domain"
	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
	"github.com/kailas-cloud/fedcat/internal/domain/source/sourcetest"
	healthuc "github.com/kailas-cloud/fedcat/internal/usecase/health"
	"github.com/kailas-cloud/fedcat/internal/usecase/fanout"
)

func harborSources(t *testing.T) (*sourcetest.Gateway, *sourcetest.Gateway) {
	t.Helper()
	s1 := catalogGateway("s1", mustCard(t, "doc-1",
		metacard.WithTitle("Harbor survey"),
		metacard.WithResourceURI("http://s1.test/doc-1"),
	))
	s1.RetrieveFn = serving("0123456789")
	s2 := catalogGateway("s2", mustCard(t, "doc-2", metacard.WithTitle("Harbor lights")))
	return s1, s2
}

func TestQuery_Aggregates(t *testing.T) {
	s1, s2 := harborSources(t)
	api := newTestAPI(t, nil, s1, s2)

	rr := do(t, api, "GET", "/api/v1/query?q=harbor&timeout=5s", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	resp := decode[queryResponse](t, rr)

	if resp.Hits != 2 || len(resp.Results) != 2 {
		t.Fatalf("expected 2 hits and 2 results, got %d and %d", resp.Hits, len(resp.Results))
	}
	if !resp.Complete {
		t.Error("expected a complete response")
	}
	for _, r := range resp.Results {
		if r.Source != facadeID {
			t.Errorf("result %s: source %q, want %q", r.ID, r.Source, facadeID)
		}
	}
	if resp.RequestID == "" {
		t.Error("expected a request id")
	}
}

func TestQuery_EqualityFilter(t *testing.T) {
	s1, s2 := harborSources(t)
	api := newTestAPI(t, nil, s1, s2)

	resp := decode[queryResponse](t, do(t, api, "GET", "/api/v1/query?eq=id:doc-2", nil))
	if len(resp.Results) != 1 || resp.Results[0].ID != "doc-2" {
		t.Fatalf("expected doc-2 only, got %+v", resp.Results)
	}
}

func TestQuery_DetailsHideSourceErrors(t *testing.T) {
	s1, _ := harborSources(t)
	broken := sourcetest.New("s3")
	broken.QueryFn = func(context.Context, query.Request) (source.QueryResult, error) {
		return source.QueryResult{}, fmt.Errorf("%w: dial secret.internal:443", domain.ErrIO)
	}
	api := newTestAPI(t, nil, s1, broken)

	resp := decode[queryResponse](t, do(t, api, "GET", "/api/v1/query?q=harbor", nil))
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	if len(resp.Details) != 1 {
		t.Fatalf("expected 1 detail, got %d", len(resp.Details))
	}
	d := resp.Details[0]
	if d.Source != facadeID {
		t.Errorf("detail source %q, want %q", d.Source, facadeID)
	}
	if strings.Contains(d.Error, "secret") || !strings.Contains(d.Error, domain.ErrIO.Error()) {
		t.Errorf("detail error should keep the class and hide the message, got %q", d.Error)
	}
}

func TestQuery_BadParameters(t *testing.T) {
	api := newTestAPI(t, nil, sourcetest.New("s1"))

	for _, target := range []string{
		"/api/v1/query",
		"/api/v1/query?q=%20",
		"/api/v1/query?eq=nocolon",
		"/api/v1/query?q=a&start=-1",
		"/api/v1/query?q=a&size=5000",
		"/api/v1/query?q=a&timeout=soon",
		"/api/v1/query?q=a&count=maybe",
	} {
		t.Run(target, func(t *testing.T) {
			rr := do(t, api, "GET", target, nil)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400", rr.Code)
			}
			if e := decode[ErrorResponse](t, rr); e.Code != CodeBadRequest {
				t.Errorf("code %s, want %s", e.Code, CodeBadRequest)
			}
		})
	}
}

func TestSources(t *testing.T) {
	s1, s2 := harborSources(t)
	s2.Types = []string{"application/pdf"}
	api := newTestAPI(t, nil, s1, s2)

	rr := do(t, api, "GET", "/api/v1/sources", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	body := decode[struct {
		Sources []sourceItem `json:"sources"`
	}](t, rr)
	if len(body.Sources) != 1 {
		t.Fatalf("expected one descriptor, got %d", len(body.Sources))
	}
	got := body.Sources[0]
	if got.ID != facadeID || !got.Available {
		t.Errorf("unexpected descriptor %+v", got)
	}
	if strings.Join(got.ContentTypes, ",") != "application/pdf,text/plain" {
		t.Errorf("unexpected content types %v", got.ContentTypes)
	}
}

func TestSources_UnknownSource(t *testing.T) {
	api := newTestAPI(t, nil, sourcetest.New("s1"))

	rr := do(t, api, "GET", "/api/v1/sources?source=s1", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rr.Code)
	}
	if e := decode[ErrorResponse](t, rr); e.Code != CodeSourceUnavailable {
		t.Errorf("code %s", e.Code)
	}
}

func TestResource_ByID(t *testing.T) {
	s1, s2 := harborSources(t)
	api := newTestAPI(t, nil, s1, s2)

	rr := do(t, api, "GET", "/api/v1/resource?id=doc-1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != "0123456789" {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
	h := rr.Header()
	if h.Get("Content-Type") != "text/plain" {
		t.Errorf("content type %q", h.Get("Content-Type"))
	}
	if !strings.Contains(h.Get("Content-Disposition"), "report.txt") {
		t.Errorf("content disposition %q", h.Get("Content-Disposition"))
	}
	if h.Get("X-Source-ID") != "s1" {
		t.Errorf("source header %q", h.Get("X-Source-ID"))
	}
	if h.Get("X-Cache") != "miss" {
		t.Errorf("cache header %q", h.Get("X-Cache"))
	}
}

func TestResource_Range(t *testing.T) {
	s1, s2 := harborSources(t)
	api := newTestAPI(t, nil, s1, s2)

	rr := do(t, api, "GET", "/api/v1/resource?id=doc-1", map[string]string{"Range": "bytes=4-"})
	if rr.Code != http.StatusPartialContent {
		t.Fatalf("status %d, want 206", rr.Code)
	}
	if rr.Body.String() != "456789" {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
	if got := rr.Header().Get("Content-Range"); got != "bytes 4-9/*" {
		t.Errorf("content range %q", got)
	}

	rr = do(t, api, "GET", "/api/v1/resource?id=doc-1", map[string]string{"Range": "bytes=100-"})
	if rr.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Errorf("status %d, want 416", rr.Code)
	}
}

func TestResource_Errors(t *testing.T) {
	s1, s2 := harborSources(t)
	api := newTestAPI(t, nil, s1, s2)

	tests := []struct {
		name   string
		target string
		status int
		code   ErrorCode
	}{
		{"no target", "/api/v1/resource", http.StatusBadRequest, CodeBadRequest},
		{"two targets", "/api/v1/resource?id=a&uri=b", http.StatusBadRequest, CodeBadRequest},
		{"unknown record", "/api/v1/resource?id=ghost", http.StatusNotFound, CodeResourceNotFound},
		{"record without product", "/api/v1/resource?id=doc-2", http.StatusUnprocessableEntity, CodeResourceNotSupported},
		{"unknown source", "/api/v1/resource?id=doc-1&source=ghost", http.StatusServiceUnavailable, CodeSourceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, api, "GET", tc.target, nil)
			if rr.Code != tc.status {
				t.Fatalf("status %d, want %d: %s", rr.Code, tc.status, rr.Body.String())
			}
			if e := decode[ErrorResponse](t, rr); e.Code != tc.code {
				t.Errorf("code %s, want %s", e.Code, tc.code)
			}
		})
	}
}

func TestCatalogMutations_NotAllowed(t *testing.T) {
	api := newTestAPI(t, nil, sourcetest.New("s1"))

	for _, tc := range []struct{ method, target string }{
		{"POST", "/api/v1/catalog"},
		{"PUT", "/api/v1/catalog/doc-1"},
		{"DELETE", "/api/v1/catalog/doc-1"},
	} {
		t.Run(tc.method, func(t *testing.T) {
			rr := do(t, api, tc.method, tc.target, nil)
			if rr.Code != http.StatusMethodNotAllowed {
				t.Fatalf("status %d, want 405", rr.Code)
			}
			if _, ok := rr.Header()["Allow"]; !ok {
				t.Error("expected an Allow header")
			}
			e := decode[ErrorResponse](t, rr)
			if e.Code != CodeIngestNotSupported || e.Message != fanout.IngestUnsupportedMessage {
				t.Errorf("unexpected error %+v", e)
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	up := sourcetest.New("s1")
	down := sourcetest.New("s2")
	down.Down = true

	tests := []struct {
		name     string
		gateways []*sourcetest.Gateway
		status   int
		want     healthuc.Status
	}{
		{"all up", []*sourcetest.Gateway{up}, http.StatusOK, healthuc.Healthy},
		{"one down", []*sourcetest.Gateway{up, down}, http.StatusServiceUnavailable, healthuc.Degraded},
		{"all down", []*sourcetest.Gateway{down}, http.StatusServiceUnavailable, healthuc.Unhealthy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, newTestAPI(t, nil, tc.gateways...), "GET", "/health", nil)
			if rr.Code != tc.status {
				t.Fatalf("status %d, want %d", rr.Code, tc.status)
			}
			body := decode[healthResponse](t, rr)
			if body.Status != tc.want {
				t.Errorf("health %s, want %s", body.Status, tc.want)
			}
			if body.Version.Version == "" {
				t.Error("expected version info")
			}
		})
	}
}

func TestRouter_Auth(t *testing.T) {
	api := newTestAPI(t, []string{"secret"}, sourcetest.New("s1"))

	if rr := do(t, api, "GET", "/api/v1/sources", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("without token: status %d, want 401", rr.Code)
	}
	rr := do(t, api, "GET", "/api/v1/sources", map[string]string{"Authorization": "Bearer secret"})
	if rr.Code != http.StatusOK {
		t.Errorf("with token: status %d, want 200", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if rr := do(t, api, "GET", "/health", nil); rr.Code != http.StatusOK {
		t.Errorf("health: status %d, want 200", rr.Code)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	api := newTestAPI(t, nil, sourcetest.New("s1"))

	rr := do(t, api, "GET", "/api/v2/query", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status %d, want 404", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", http.NoBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", rr.Code)
	}
	if e := decode[ErrorResponse](t, rr); e.Code != CodeInternal {
		t.Errorf("code %s", e.Code)
	}
}
