package resource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedcat/internal/domain"
	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
	"github.com/kailas-cloud/fedcat/internal/domain/plugin"
	domres "github.com/kailas-cloud/fedcat/internal/domain/resource"
	"github.com/kailas-cloud/fedcat/internal/domain/search/filter"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
	logpkg "github.com/kailas-cloud/fedcat/internal/logger"
	"github.com/kailas-cloud/fedcat/internal/metrics"
)

// DefaultResolveTimeout bounds the catalog lookup that maps a request to a record.
const DefaultResolveTimeout = 30 * time.Second

// resolvePageSize is how many candidates each source may offer per lookup.
const resolvePageSize = 10

// Retrieval outcomes used as metric labels.
const (
	outcomeOK           = "ok"
	outcomeNotFound     = "not_found"
	outcomeNotSupported = "not_supported"
	outcomeIOError      = "io_error"
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCache enables the resource cache.
func WithCache(c Cache) Option { return func(co *Coordinator) { co.cache = c } }

// WithPreResource appends request plugins, run in order.
func WithPreResource(ps ...plugin.PreResource) Option {
	return func(co *Coordinator) { co.pre = append(co.pre, ps...) }
}

// WithPostResource appends response plugins, run in order.
func WithPostResource(ps ...plugin.PostResource) Option {
	return func(co *Coordinator) { co.post = append(co.post, ps...) }
}

// WithResolveTimeout overrides DefaultResolveTimeout.
func WithResolveTimeout(d time.Duration) Option {
	return func(co *Coordinator) { co.resolveTimeout = d }
}

// Coordinator resolves resource requests, serves them from the cache when possible
// and otherwise tries gateways one by one until one produces the payload.
//
// Enterprise retrieval tries federated gateways in registration order, then connected ones.
type Coordinator struct {
	finder         Finder
	gateways       GatewaySet
	cache          Cache
	pre            []plugin.PreResource
	post           []plugin.PostResource
	resolveTimeout time.Duration
	logger         *zap.Logger
}

// New creates a coordinator. Without WithCache every request goes to the gateways.
func New(finder Finder, gateways GatewaySet, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		finder:         finder,
		gateways:       gateways,
		resolveTimeout: DefaultResolveTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// scope says which sources both resolution and retrieval may use.
type scope struct {
	enterprise bool
	sourceIDs  []string
	candidates []source.Gateway
}

// GetResource retrieves from any source when enterprise is set, otherwise from the local source only.
func (c *Coordinator) GetResource(ctx context.Context, req domres.Request, enterprise bool) (domres.Response, error) {
	if !enterprise {
		return c.GetLocalResource(ctx, req)
	}
	return c.retrieve(ctx, req, scope{enterprise: true, candidates: c.gateways.FallbackOrder()})
}

// GetLocalResource retrieves from the local source only.
func (c *Coordinator) GetLocalResource(ctx context.Context, req domres.Request) (domres.Response, error) {
	local, ok := c.gateways.Local()
	if !ok {
		return domres.Response{}, fmt.Errorf("%w: no local source configured", domain.ErrSourceUnavailable)
	}
	return c.retrieve(ctx, req, scope{candidates: []source.Gateway{local}})
}

// GetResourceFromSource retrieves from the named source only.
func (c *Coordinator) GetResourceFromSource(
	ctx context.Context, req domres.Request, sourceID string,
) (domres.Response, error) {
	g, ok := c.gateways.Lookup(sourceID)
	if !ok {
		return domres.Response{}, fmt.Errorf("%w: %q", domain.ErrSourceUnavailable, sourceID)
	}
	return c.retrieve(ctx, req, scope{sourceIDs: []string{sourceID}, candidates: []source.Gateway{g}})
}

func (c *Coordinator) retrieve(ctx context.Context, req domres.Request, sc scope) (domres.Response, error) {
	log := logpkg.Or(ctx, c.logger).With(zap.String("target", req.Value()), zap.String("kind", string(req.Kind())))

	req, err := plugin.RunPreResource(ctx, c.pre, req)
	if err != nil {
		log.Info("Resource request rejected by plugin", zap.Error(err))
		return domres.Response{}, fmt.Errorf("%w: %s", domain.ErrResourceNotSupported, err.Error())
	}

	tgt, err := c.resolve(ctx, req, sc)
	if err != nil {
		return domres.Response{}, err
	}
	key := domres.NewCacheKey(tgt.cardID, tgt.qualifier)

	resp, ok := c.fromCache(ctx, req, key)
	if !ok {
		resp, err = c.fallback(ctx, req, tgt.uri, key, sc.candidates, log)
		if err != nil {
			return domres.Response{}, err
		}
	}

	resp, err = plugin.RunPostResource(ctx, c.post, resp)
	if err != nil {
		log.Info("Resource response rejected by plugin", zap.Error(err))
		return domres.Response{}, fmt.Errorf("%w: %s", domain.ErrResourceNotSupported, err.Error())
	}
	return resp, nil
}

// target is what a request resolves to: the cache identity and the URI to fetch.
type target struct {
	cardID    string
	qualifier string
	uri       string
}

// resolve maps req to the owning record and the URI to fetch.
func (c *Coordinator) resolve(ctx context.Context, req domres.Request, sc scope) (target, error) {
	value := req.Value()
	switch req.Kind() {
	case domres.ByID:
		card, found, err := c.find(ctx, metacard.AttrID, value, sc, func(m metacard.Metacard) bool {
			return m.ID() == value
		})
		if err != nil {
			return target{}, err
		}
		if !found {
			return target{}, domain.NewResourceNotFound(value)
		}
		q := req.Qualifier()
		uri := card.ResourceURI()
		if q != "" {
			uri, _ = card.DerivedResourceURI(q)
		}
		if uri == "" {
			return target{}, fmt.Errorf("%w: record %q has no resource", domain.ErrResourceNotSupported, value)
		}
		return target{cardID: card.ID(), qualifier: q, uri: uri}, nil

	case domres.ByProductURI:
		// The owning record only feeds the cache key; a lookup failure keys by URI.
		card, found, err := c.find(ctx, metacard.AttrResourceURI, value, sc, func(m metacard.Metacard) bool {
			return m.ResourceURI() == value
		})
		if err != nil || !found {
			return target{cardID: value, uri: value}, nil //nolint:nilerr // lookup is best effort
		}
		return target{cardID: card.ID(), uri: value}, nil

	default:
		// Same keying as a by-id request for the qualifier the URI is registered under.
		var qualifier string
		card, found, err := c.find(ctx, metacard.AttrDerivedResourceURI, value, sc, func(m metacard.Metacard) bool {
			q, ok := m.QualifierOf(value)
			qualifier = q
			return ok
		})
		if err != nil || !found {
			return target{cardID: value, uri: value}, nil //nolint:nilerr // lookup is best effort
		}
		return target{cardID: card.ID(), qualifier: qualifier, uri: value}, nil
	}
}

// find returns the first record within the scope that satisfies match. Sources
// may ignore or approximate the filter, so every candidate is checked.
func (c *Coordinator) find(
	ctx context.Context, attr, value string, sc scope, match func(metacard.Metacard) bool,
) (metacard.Metacard, bool, error) {
	expr, err := filter.Equal(attr, value)
	if err != nil {
		return metacard.Metacard{}, false, fmt.Errorf("%w: %w", domain.ErrResourceNotSupported, err)
	}
	q, err := query.New(expr, query.WithPaging(1, resolvePageSize), query.WithTimeout(c.resolveTimeout))
	if err != nil {
		return metacard.Metacard{}, false, fmt.Errorf("%w: %w", domain.ErrResourceNotSupported, err)
	}

	// Without ids or the enterprise flag the finder queries the local source.
	resp, err := c.finder.Query(ctx, query.NewRequest(q, sc.enterprise, sc.sourceIDs, nil))
	if err != nil {
		return metacard.Metacard{}, false, fmt.Errorf("resolve %s=%q: %w", attr, value, err)
	}
	results := resp.Results()
	for {
		r, ok := results.Take(ctx)
		if !ok {
			return metacard.Metacard{}, false, nil
		}
		if card := r.Metacard(); match(card) {
			return card, true, nil
		}
	}
}

func (c *Coordinator) fromCache(ctx context.Context, req domres.Request, key domres.CacheKey) (domres.Response, bool) {
	if c.cache == nil {
		return domres.Response{}, false
	}
	res, ok := c.cache.Get(ctx, key)
	if !ok {
		return domres.Response{}, false
	}

	props := req.Properties()
	if props == nil {
		props = make(map[string]any, 1)
	}
	props[domres.PropCacheHit] = true
	return domres.NewResponse(req, props, res.Skip(req.BytesToSkip())), true
}

func (c *Coordinator) fallback(
	ctx context.Context, req domres.Request, uri string, key domres.CacheKey,
	candidates []source.Gateway, log *zap.Logger,
) (domres.Response, error) {
	for _, g := range candidates {
		if err := ctx.Err(); err != nil {
			return domres.Response{}, fmt.Errorf("retrieve %q: %w", req.Value(), err)
		}

		id := g.ID()
		res, err := g.RetrieveResource(ctx, uri, req.Properties())
		if err != nil {
			outcome := classify(err)
			metrics.ResourceRetrievalsTotal.WithLabelValues(id, outcome).Inc()
			if outcome == outcomeIOError {
				log.Warn("Resource retrieval failed, trying next source", zap.String("source", id), zap.Error(err))
			} else {
				log.Debug("Source cannot serve resource", zap.String("source", id), zap.Error(err))
			}
			continue
		}
		metrics.ResourceRetrievalsTotal.WithLabelValues(id, outcomeOK).Inc()

		// A partial payload must not be cached as the whole resource.
		if c.cache != nil && req.BytesToSkip() == 0 {
			c.cache.Put(ctx, key, res)
		}

		props := req.Properties()
		if props == nil {
			props = make(map[string]any, 1)
		}
		props[domres.PropSourceID] = id
		log.Debug("Resource retrieved", zap.String("source", id), zap.Int64("bytes", res.Size()))
		return domres.NewResponse(req, props, res), nil
	}
	return domres.Response{}, domain.NewResourceNotFound(req.Value())
}

func classify(err error) string {
	switch {
	case errors.Is(err, domain.ErrResourceNotFound):
		return outcomeNotFound
	case errors.Is(err, domain.ErrResourceNotSupported):
		return outcomeNotSupported
	default:
		return outcomeIOError
	}
}
