package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fedcat/internal/domain"
	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
	domres "github.com/kailas-cloud/fedcat/internal/domain/resource"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/response"
	"github.com/kailas-cloud/fedcat/internal/domain/search/result"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
	healthuc "github.com/kailas-cloud/fedcat/internal/usecase/health"
	"github.com/kailas-cloud/fedcat/internal/version"
)

const (
	defaultMimeType     = "application/octet-stream"
	defaultQueryTimeout = 30 * time.Second
)

// Server serves the federation over HTTP.
type Server struct {
	catalog       Catalog
	resources     Resources
	health        HealthChecker
	logger        *zap.Logger
	queryTimeout  time.Duration
	errorHandlers []errorHandler
}

// Option configures a Server.
type Option func(*Server)

// WithQueryTimeout sets the timeout applied when a query names none.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.queryTimeout = d
		}
	}
}

// NewServer creates an HTTP API server.
func NewServer(
	catalog Catalog,
	resources Resources,
	health HealthChecker,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		catalog:       catalog,
		resources:     resources,
		health:        health,
		logger:        logger,
		queryTimeout:  defaultQueryTimeout,
		errorHandlers: defaultErrorHandlers(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register mounts every route on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/query", s.Query)
		r.Get("/sources", s.Sources)
		r.Get("/resource", s.Resource)
		r.Post("/catalog", s.CreateRecords)
		r.Put("/catalog/{id}", s.UpdateRecord)
		r.Delete("/catalog/{id}", s.DeleteRecord)
	})
}

type resultItem struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	Title       string            `json:"title,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	ResourceURI string            `json:"resource_uri,omitempty"`
	Derived     map[string]string `json:"derived,omitempty"`
	Created     *time.Time        `json:"created,omitempty"`
	Modified    *time.Time        `json:"modified,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Score       float64           `json:"score"`
	DistanceM   *float64          `json:"distance_m,omitempty"`
}

type detailItem struct {
	Source   string   `json:"source"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type queryResponse struct {
	RequestID string       `json:"request_id"`
	Hits      int64        `json:"hits"`
	Complete  bool         `json:"complete"`
	Results   []resultItem `json:"results"`
	Details   []detailItem `json:"details"`
}

// Query handles GET /api/v1/query. Results are drained until every source has
// reported or the query timeout elapses; complete=false marks the latter.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromParams(r.URL.Query(), s.queryTimeout)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	req := query.NewRequest(q, true, nil, nil)
	if err := s.catalog.ValidateQueryRequest(&req); err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp, err := s.catalog.Query(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	results := resp.Results().DrainAll(r.Context())
	writeJSON(w, http.StatusOK, queryToJSON(resp, results))
}

func queryToJSON(resp *response.Response, results []result.Result) queryResponse {
	out := queryResponse{
		RequestID: resp.Request().ID(),
		Hits:      resp.Hits(),
		Complete:  resp.Results().Closed() && resp.Results().Pending() == 0,
		Results:   make([]resultItem, len(results)),
		Details:   make([]detailItem, 0),
	}
	for i, res := range results {
		out.Results[i] = resultToJSON(res)
	}
	for _, d := range resp.Details() {
		item := detailItem{Source: d.SourceID, Warnings: d.Warnings}
		if d.Err != nil {
			item.Error = d.Err.Error()
		}
		out.Details = append(out.Details, item)
	}
	return out
}

func resultToJSON(res result.Result) resultItem {
	card := res.Metacard()
	item := resultItem{
		ID:          card.ID(),
		Source:      card.SourceID(),
		Title:       card.Title(),
		ContentType: card.ContentType(),
		ResourceURI: card.ResourceURI(),
		Derived:     card.DerivedResources(),
		Created:     timePtr(card.Created()),
		Modified:    timePtr(card.Modified()),
		Attributes:  card.Attributes(),
		Score:       res.Score(),
	}
	if d, ok := res.Distance(); ok {
		item.DistanceM = &d
	}
	return item
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

type sourceItem struct {
	ID           string   `json:"id"`
	Version      string   `json:"version,omitempty"`
	Available    bool     `json:"available"`
	ContentTypes []string `json:"content_types"`
}

// Sources handles GET /api/v1/sources[?source=a,b].
func (s *Server) Sources(w http.ResponseWriter, r *http.Request) {
	req := source.InfoRequest{Enterprise: true}
	if raw := r.URL.Query().Get("source"); raw != "" {
		req = source.InfoRequest{SourceIDs: strings.Split(raw, ",")}
	}

	info, err := s.catalog.GetSourceInfo(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]sourceItem, len(info.Sources))
	for i, d := range info.Sources {
		ct := d.ContentTypes
		if ct == nil {
			ct = []string{}
		}
		items[i] = sourceItem{ID: d.ID, Version: d.Version, Available: d.Available, ContentTypes: ct}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": items})
}

// Resource handles GET /api/v1/resource.
//
//	id=<record id> | uri=<product uri> | derived=<derived uri>
//	qualifier=<name>   derived resource of a record
//	source=<id>        retrieve from one source only
//	local=true         retrieve from the local catalog only
//
// An open-ended Range header ("bytes=N-") skips the first N bytes.
func (s *Server) Resource(w http.ResponseWriter, r *http.Request) {
	req, err := resourceFromParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}

	v := r.URL.Query()
	var resp domres.Response
	switch {
	case v.Get("source") != "":
		resp, err = s.resources.GetResourceFromSource(r.Context(), req, v.Get("source"))
	case v.Get("local") == "true":
		resp, err = s.resources.GetLocalResource(r.Context(), req)
	default:
		resp, err = s.resources.GetResource(r.Context(), req, true)
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeResource(w, req.BytesToSkip(), resp)
}

func writeResource(w http.ResponseWriter, skip int64, resp domres.Response) {
	res := resp.Resource()
	h := w.Header()

	mt := res.MimeType
	if mt == "" {
		mt = defaultMimeType
	}
	h.Set("Content-Type", mt)
	if res.Name != "" {
		h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Name}))
	}
	if src, ok := resp.Property(domres.PropSourceID); ok {
		h.Set("X-Source-ID", fmt.Sprint(src))
	}
	if hit, _ := resp.Property(domres.PropCacheHit); hit == true {
		h.Set("X-Cache", "hit")
	} else {
		h.Set("X-Cache", "miss")
	}
	h.Set("Accept-Ranges", "bytes")

	status := http.StatusOK
	if skip > 0 {
		if res.Size() == 0 {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		status = http.StatusPartialContent
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/*", skip, skip+res.Size()-1))
	}
	h.Set("Content-Length", strconv.FormatInt(res.Size(), 10))
	w.WriteHeader(status)
	_, _ = w.Write(res.Data)
}

// CreateRecords handles POST /api/v1/catalog.
func (s *Server) CreateRecords(w http.ResponseWriter, r *http.Request) {
	s.writeMutation(w, s.catalog.Create(r.Context(), nil))
}

// UpdateRecord handles PUT /api/v1/catalog/{id}.
func (s *Server) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	card, err := metacard.New(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	s.writeMutation(w, s.catalog.Update(r.Context(), []metacard.Metacard{card}))
}

// DeleteRecord handles DELETE /api/v1/catalog/{id}.
func (s *Server) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	s.writeMutation(w, s.catalog.Delete(r.Context(), []string{chi.URLParam(r, "id")}))
}

// writeMutation reports the outcome of a catalog mutation. The federation is
// read-only, so success only happens with a writable catalog behind it.
func (s *Server) writeMutation(w http.ResponseWriter, err error) {
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if errors.Is(err, domain.ErrIngest) {
		w.Header().Set("Allow", "")
	}
	s.handleDomainError(w, err)
}

type healthResponse struct {
	Status  healthuc.Status                 `json:"status"`
	Checks  map[string]healthuc.CheckResult `json:"checks"`
	Version version.Info                    `json:"version"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status:  report.Status,
		Checks:  report.Checks,
		Version: version.Get(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
