package federation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/fedcat/internal/domain"
	"github.com/kailas-cloud/fedcat/internal/domain/search/channel"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/response"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
	logpkg "github.com/kailas-cloud/fedcat/internal/logger"
	"github.com/kailas-cloud/fedcat/internal/metrics"
)

// Source query outcomes used as metric labels.
const (
	statusOK          = "ok"
	statusError       = "error"
	statusUnavailable = "unavailable"
	statusPanic       = "panic"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxConcurrency caps the number of sources queried at once. Zero means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) { o.maxConcurrency = n }
}

// Orchestrator dispatches a query to every selected gateway and streams the
// combined results into one response.
//
// Hits are the sum of what each source reports, published as sources finish.
// A failing or panicking source becomes a ProcessingDetail; it never fails the call.
type Orchestrator struct {
	gateways       GatewaySet
	maxConcurrency int
	logger         *zap.Logger
}

// New creates an orchestrator over a gateway set.
func New(gateways GatewaySet, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{gateways: gateways, logger: logger}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Query starts the federated query and returns as soon as the response exists.
// Results keep arriving on the response channel until every source has finished,
// after which the channel is closed.
func (o *Orchestrator) Query(ctx context.Context, req query.Request) (*response.Response, error) {
	if req.ID() == "" || req.Query().Filter().IsEmpty() {
		return nil, fmt.Errorf("%w: empty query request", domain.ErrUnsupportedQuery)
	}

	targets, missing, err := o.selectGateways(req)
	if err != nil {
		return nil, err
	}

	ch := channel.New(req.Query().Timeout())
	resp := response.New(req, ch)

	for _, id := range missing {
		resp.AddDetail(response.ProcessingDetail{
			SourceID: id,
			Err:      fmt.Errorf("%w: unknown source %q", domain.ErrSourceUnavailable, id),
		})
	}

	logpkg.Or(ctx, o.logger).Debug("Dispatching federated query",
		zap.String("query_id", req.ID()),
		zap.Int("sources", len(targets)),
		zap.Bool("enterprise", req.IsEnterprise()),
	)

	wctx, cancel := context.WithDeadline(ctx, ch.Deadline())
	go func() {
		defer cancel()
		defer ch.Close()

		var g errgroup.Group
		if o.maxConcurrency > 0 {
			g.SetLimit(o.maxConcurrency)
		}
		for _, gw := range targets {
			g.Go(func() error {
				o.querySource(wctx, gw, req, resp)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return resp, nil
}

// selectGateways returns the gateways to query plus any named ids that are unknown.
func (o *Orchestrator) selectGateways(req query.Request) ([]source.Gateway, []string, error) {
	if req.IsEnterprise() {
		return o.gateways.Federated(), nil, nil
	}

	ids := req.SourceIDs()
	if len(ids) == 0 {
		local, ok := o.gateways.Local()
		if !ok {
			return nil, nil, fmt.Errorf("%w: no local source configured", domain.ErrSourceUnavailable)
		}
		return []source.Gateway{local}, nil, nil
	}

	var targets []source.Gateway
	var missing []string
	for _, id := range ids {
		if g, ok := o.gateways.Lookup(id); ok {
			targets = append(targets, g)
		} else {
			missing = append(missing, id)
		}
	}
	return targets, missing, nil
}

func (o *Orchestrator) querySource(
	ctx context.Context, gw source.Gateway, req query.Request, resp *response.Response,
) {
	id := gw.ID()
	start := time.Now()
	log := logpkg.Or(ctx, o.logger).With(zap.String("source", id), zap.String("query_id", req.ID()))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Source query panicked", zap.Any("panic", rec))
			resp.AddDetail(response.ProcessingDetail{
				SourceID: id,
				Err:      fmt.Errorf("source %s panicked: %v", id, rec),
			})
			observe(id, statusPanic, start)
		}
	}()

	if !gw.IsAvailable(ctx) {
		log.Info("Source unavailable, skipping")
		resp.AddDetail(response.ProcessingDetail{
			SourceID: id,
			Err:      fmt.Errorf("%w: %s", domain.ErrSourceUnavailable, id),
		})
		observe(id, statusUnavailable, start)
		return
	}

	qr, err := gw.Query(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedQuery) {
			log.Info("Source cannot express query", zap.Error(err))
		} else {
			log.Warn("Source query failed", zap.Error(err))
		}
		resp.AddDetail(response.ProcessingDetail{SourceID: id, Err: err})
		observe(id, statusError, start)
		return
	}

	// The gateway may hand back a slice it keeps; stamp provenance on a copy.
	results := slices.Clone(qr.Results)
	for i, r := range results {
		if r.Metacard().SourceID() == "" {
			results[i] = r.WithSourceID(id)
		}
	}
	if err := resp.Results().AddAll(results); err != nil {
		// The channel is closed only after every worker returns.
		log.Error("Result channel closed early", zap.Int("count", len(results)), zap.Error(err))
	}
	resp.AddHits(qr.Hits)
	for _, d := range qr.Details {
		if d.SourceID == "" {
			d.SourceID = id
		}
		resp.AddDetail(d)
	}

	metrics.SourceResultsTotal.WithLabelValues(id).Add(float64(len(results)))
	observe(id, statusOK, start)
	log.Debug("Source query completed",
		zap.Int("results", len(results)),
		zap.Int64("hits", qr.Hits),
		zap.Duration("duration", time.Since(start)),
	)
}

func observe(sourceID, status string, start time.Time) {
	metrics.SourceQueriesTotal.WithLabelValues(sourceID, status).Inc()
	metrics.SourceQueryDuration.WithLabelValues(sourceID).Observe(time.Since(start).Seconds())
}
