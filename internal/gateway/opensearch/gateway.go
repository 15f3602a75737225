// Package opensearch is a source gateway for remote catalogs exposing an
// OpenSearch description endpoint that answers with RSS or Atom.
package opensearch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/fedcat/internal/domain"
	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
	"github.com/kailas-cloud/fedcat/internal/domain/resource"
	"github.com/kailas-cloud/fedcat/internal/domain/search/filter"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/result"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
)

// Defaults applied by New.
const (
	DefaultTimeout          = 30 * time.Second
	DefaultMaxResourceBytes = 64 << 20
	availabilityTimeout     = 5 * time.Second
	defaultContentType      = "application/rss+xml"
	maxDescriptionLen       = 500
)

var _ source.Gateway = (*Gateway)(nil)

// Config holds connection parameters for one remote endpoint.
type Config struct {
	ID           string
	Version      string
	URL          string
	ContentTypes []string
	// RateLimit is the outbound request rate per second. Zero disables limiting.
	RateLimit        float64
	Burst            int
	Timeout          time.Duration
	MaxResourceBytes int64
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Gateway queries a remote OpenSearch endpoint and fetches products over HTTP.
type Gateway struct {
	id           string
	version      string
	endpoint     *url.URL
	contentTypes []string
	maxBytes     int64
	client       *http.Client
	limiter      *rate.Limiter
	parser       *gofeed.Parser
	logger       *zap.Logger
}

// New creates a gateway.
func New(cfg Config, logger *zap.Logger) (*Gateway, error) {
	if cfg.ID == "" {
		return nil, errors.New("opensearch: id is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opensearch %s: parse url: %w", cfg.ID, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("opensearch %s: url must be http or https, got %q", cfg.ID, cfg.URL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := max(cfg.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	maxBytes := cfg.MaxResourceBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxResourceBytes
	}

	types := cfg.ContentTypes
	if len(types) == 0 {
		types = []string{defaultContentType}
	}

	return &Gateway{
		id:           cfg.ID,
		version:      cfg.Version,
		endpoint:     u,
		contentTypes: types,
		maxBytes:     maxBytes,
		client:       client,
		limiter:      limiter,
		parser:       gofeed.NewParser(),
		logger:       logger.With(zap.String("source", cfg.ID)),
	}, nil
}

// ID returns the configured source id.
func (g *Gateway) ID() string { return g.id }

// Version returns the configured version string.
func (g *Gateway) Version() string { return g.version }

// ContentTypes returns the configured content types, not what the endpoint reports.
func (g *Gateway) ContentTypes() []string { return slices.Clone(g.contentTypes) }

// IsAvailable issues a short HEAD request against the endpoint.
func (g *Gateway) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, availabilityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, g.endpoint.String(), nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("Availability probe failed", zap.Error(err))
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Query translates the filter into OpenSearch parameters and parses the returned feed.
func (g *Gateway) Query(ctx context.Context, req query.Request) (source.QueryResult, error) {
	params, err := translate(req.Query())
	if err != nil {
		return source.QueryResult{}, err
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return source.QueryResult{}, fmt.Errorf("%w: rate limit: %w", domain.ErrIO, err)
	}

	u := *g.endpoint
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return source.QueryResult{}, fmt.Errorf("%w: build request: %w", domain.ErrIO, err)
	}
	hreq.Header.Set("Accept", "application/atom+xml, application/rss+xml, application/xml")

	resp, err := g.client.Do(hreq)
	if err != nil {
		return source.QueryResult{}, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return source.QueryResult{}, fmt.Errorf("%w: search returned %s", domain.ErrIO, resp.Status)
	}

	feed, err := g.parser.Parse(resp.Body)
	if err != nil {
		return source.QueryResult{}, fmt.Errorf("%w: parse feed: %w", domain.ErrIO, err)
	}

	results := make([]result.Result, 0, len(feed.Items))
	for i, item := range feed.Items {
		card, err := g.toMetacard(item)
		if err != nil {
			g.logger.Debug("Skipping feed item", zap.Int("index", i), zap.Error(err))
			continue
		}
		results = append(results, result.New(card, 1/float64(i+1)))
	}

	hits := int64(len(results))
	if total, ok := totalResults(feed); ok {
		hits = total
	}

	g.logger.Debug("Feed parsed", zap.Int("items", len(results)), zap.Int64("hits", hits))
	return source.QueryResult{Results: results, Hits: hits}, nil
}

// RetrieveResource fetches an http(s) product, honouring bytesToSkip via a Range header.
func (g *Gateway) RetrieveResource(
	ctx context.Context, uri string, properties map[string]any,
) (resource.Resource, error) {
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return resource.Resource{}, fmt.Errorf("%w: %s cannot fetch %q", domain.ErrResourceNotSupported, g.id, uri)
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return resource.Resource{}, fmt.Errorf("%w: rate limit: %w", domain.ErrIO, err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return resource.Resource{}, fmt.Errorf("%w: build request: %w", domain.ErrIO, err)
	}
	skip := resource.BytesToSkip(properties)
	if skip > 0 {
		hreq.Header.Set("Range", "bytes="+strconv.FormatInt(skip, 10)+"-")
	}

	resp, err := g.client.Do(hreq)
	if err != nil {
		return resource.Resource{}, fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return resource.Resource{}, domain.NewResourceNotFound(uri)
	case resp.StatusCode >= 300:
		return resource.Resource{}, fmt.Errorf("%w: fetch %q returned %s", domain.ErrIO, uri, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBytes+1))
	if err != nil {
		return resource.Resource{}, fmt.Errorf("%w: read body: %w", domain.ErrIO, err)
	}
	if int64(len(data)) > g.maxBytes {
		return resource.Resource{}, fmt.Errorf("%w: %q exceeds %d bytes", domain.ErrResourceNotSupported, uri, g.maxBytes)
	}

	res := resource.Resource{
		Name:     resourceName(resp, u),
		MimeType: resp.Header.Get("Content-Type"),
		Data:     data,
	}
	// Servers that ignore Range send the whole body.
	if skip > 0 && resp.StatusCode != http.StatusPartialContent {
		res = res.Skip(skip)
	}
	return res, nil
}

// translate maps a filter onto the OpenSearch "q" and "uid" parameters.
// Only keyword text and identifier equality are expressible.
func translate(q query.Query) (map[string]string, error) {
	expr := q.Filter()
	if len(expr.MustNot()) > 0 {
		return nil, fmt.Errorf("%w: opensearch has no negation", domain.ErrUnsupportedQuery)
	}

	var terms []string
	params := map[string]string{
		"start": strconv.Itoa(q.StartIndex()),
		"count": strconv.Itoa(q.PageSize()),
	}
	for _, c := range slices.Concat(expr.Must(), expr.Should()) {
		switch c.Key() {
		case filter.AnyText:
			terms = append(terms, c.Match()+c.Like())
		case metacard.AttrID:
			if !c.IsMatch() {
				return nil, fmt.Errorf("%w: id supports equality only", domain.ErrUnsupportedQuery)
			}
			params["uid"] = c.Match()
		default:
			return nil, fmt.Errorf("%w: opensearch cannot filter on %q", domain.ErrUnsupportedQuery, c.Key())
		}
	}
	if len(terms) > 0 {
		params["q"] = strings.Join(terms, " ")
	}
	if s := q.Sort(); s.Attribute != "" {
		dir := "asc"
		if s.Descending {
			dir = "desc"
		}
		params["sort"] = s.Attribute + ":" + dir
	}
	return params, nil
}

func (g *Gateway) toMetacard(item *gofeed.Item) (metacard.Metacard, error) {
	id := item.GUID
	if id == "" {
		id = item.Link
	}

	opts := []metacard.Option{
		metacard.WithSource(g.id),
		metacard.WithTitle(strings.TrimSpace(item.Title)),
	}

	productURI := item.Link
	contentType := ""
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		productURI, contentType = enc.URL, enc.Type
		break
	}
	if productURI != "" {
		opts = append(opts, metacard.WithResourceURI(productURI))
	}
	if contentType != "" {
		opts = append(opts, metacard.WithContentType(contentType))
	}
	for _, l := range item.Links {
		if l != "" && l != productURI {
			opts = append(opts, metacard.WithDerivedResource("link", l))
			break
		}
	}

	var created, modified time.Time
	if item.PublishedParsed != nil {
		created = *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		modified = *item.UpdatedParsed
	}
	opts = append(opts, metacard.WithTimestamps(created, modified))

	attrs := make(map[string]string)
	desc := item.Description
	if desc == "" {
		desc = item.Content
	}
	if d := stripHTML(desc); d != "" {
		attrs["description"] = d
	}
	if item.Author != nil {
		if name := item.Author.Name; name != "" {
			attrs["author"] = name
		} else if item.Author.Email != "" {
			attrs["author"] = item.Author.Email
		}
	}
	if len(item.Categories) > 0 {
		attrs["category"] = strings.Join(item.Categories, ", ")
	}
	if len(attrs) > 0 {
		opts = append(opts, metacard.WithAttributes(attrs))
	}

	return metacard.New(id, opts...)
}

// totalResults reads opensearch:totalResults from the feed extensions.
func totalResults(feed *gofeed.Feed) (int64, bool) {
	for prefix, ext := range feed.Extensions {
		if !strings.EqualFold(prefix, "opensearch") {
			continue
		}
		for _, e := range ext["totalResults"] {
			if n, err := strconv.ParseInt(strings.TrimSpace(e.Value), 10, 64); err == nil && n >= 0 {
				return n, true
			}
		}
	}
	return 0, false
}

func resourceName(resp *http.Response, u *url.URL) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	if base := path.Base(u.Path); base != "/" && base != "." {
		return base
	}
	return u.Host
}

var htmlStripper = bluemonday.StrictPolicy()

func stripHTML(s string) string {
	s = strings.TrimSpace(html.UnescapeString(htmlStripper.Sanitize(s)))
	if len(s) > maxDescriptionLen {
		cut := maxDescriptionLen - 3
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
