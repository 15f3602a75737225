package fanout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/fedcat/internal/domain"
	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
	"github.com/kailas-cloud/fedcat/internal/domain/search/channel"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/response"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
)

// IngestUnsupportedMessage is returned for every create, update and delete.
const IngestUnsupportedMessage = "fanout: ingest is not supported in a read-only federation"

// Facade presents every federated source as one read-only source named id.
// Callers never see the ids of the sources behind it.
type Facade struct {
	id       string
	version  string
	fed      Federator
	gateways GatewayLister
	logger   *zap.Logger
}

// New creates a fan-out facade.
func New(id, version string, fed Federator, gateways GatewayLister, logger *zap.Logger) *Facade {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Facade{id: id, version: version, fed: fed, gateways: gateways, logger: logger}
}

// ID returns the facade's source id.
func (f *Facade) ID() string { return f.id }

// Version returns the facade's version string.
func (f *Facade) Version() string { return f.version }

// Query runs req against every federated source regardless of the scope the caller asked for.
// Every result, hit count and processing detail is attributed to the facade.
func (f *Facade) Query(ctx context.Context, req query.Request) (*response.Response, error) {
	inner, err := f.fed.Query(ctx, req.WithEnterprise())
	if err != nil {
		return nil, fmt.Errorf("federated query: %w", err)
	}

	deadline := inner.Results().Deadline()
	out := response.New(inner.Request(), channel.New(max(time.Until(deadline), time.Millisecond)))

	go f.relay(ctx, deadline, inner, out)
	return out, nil
}

// relay copies results from in to out, relabelling provenance, then publishes
// hits and details and closes out.
func (f *Facade) relay(ctx context.Context, deadline time.Time, in, out *response.Response) {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	defer out.Results().Close()

	src := in.Results()
	for src.HasMore() {
		r, ok := src.Take(ctx)
		if !ok {
			if ctx.Err() != nil || !time.Now().Before(deadline) {
				break
			}
			continue
		}
		if err := out.Results().Add(r.WithSourceID(f.id)); err != nil {
			f.logger.Error("Relay channel closed early", zap.Error(err))
			return
		}
	}

	out.SetHits(in.Hits())
	for _, d := range in.Details() {
		out.AddDetail(response.ProcessingDetail{
			SourceID: f.id,
			Warnings: slices.Clone(d.Warnings),
			Err:      mask(d.Err),
		})
	}
}

// Create always fails: the federation is read-only.
func (f *Facade) Create(_ context.Context, _ []metacard.Metacard) error {
	return &domain.IngestError{Message: IngestUnsupportedMessage}
}

// Update always fails: the federation is read-only.
func (f *Facade) Update(_ context.Context, _ []metacard.Metacard) error {
	return &domain.IngestError{Message: IngestUnsupportedMessage}
}

// Delete always fails: the federation is read-only.
func (f *Facade) Delete(_ context.Context, _ []string) error {
	return &domain.IngestError{Message: IngestUnsupportedMessage}
}

// ValidateQueryRequest rejects a nil request and any request naming a source other than the facade.
func (f *Facade) ValidateQueryRequest(req *query.Request) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", domain.ErrUnsupportedQuery)
	}
	for _, id := range req.SourceIDs() {
		if id != f.id {
			return fmt.Errorf("%w: unknown source %q", domain.ErrUnsupportedQuery, id)
		}
	}
	return nil
}

// GetSourceInfo describes the facade as a single source whose content types are
// the union over the underlying sources that are currently available.
func (f *Facade) GetSourceInfo(ctx context.Context, req source.InfoRequest) (source.InfoResponse, error) {
	// Only the facade id is known to callers, with or without the enterprise flag.
	for _, id := range req.SourceIDs {
		if id != f.id {
			return source.InfoResponse{}, fmt.Errorf("%w: %q", domain.ErrSourceUnavailable, id)
		}
	}

	var (
		mu        sync.Mutex
		types     []string
		available bool
	)
	var g errgroup.Group
	for _, gw := range f.gateways.Federated() {
		g.Go(func() error {
			if !gw.IsAvailable(ctx) {
				return nil
			}
			ct := gw.ContentTypes()
			mu.Lock()
			available = true
			types = append(types, ct...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(types)
	return source.InfoResponse{
		Request: req,
		Sources: []source.Descriptor{{
			ID:           f.id,
			Version:      f.version,
			Available:    available,
			ContentTypes: slices.Compact(types),
		}},
	}, nil
}

// maskedError hides the underlying source's message but keeps its error class.
type maskedError struct {
	cause error
}

func (e *maskedError) Error() string {
	for _, class := range []error{
		domain.ErrUnsupportedQuery,
		domain.ErrSourceUnavailable,
		domain.ErrIO,
		context.DeadlineExceeded,
		context.Canceled,
	} {
		if errors.Is(e.cause, class) {
			return "federated source: " + class.Error()
		}
	}
	return "federated source: query failed"
}

func (e *maskedError) Unwrap() error { return e.cause }

func mask(err error) error {
	if err == nil {
		return nil
	}
	return &maskedError{cause: err}
}
