package query

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/fedcat/internal/domain/search/filter"
)

// Query parameter limits.
const (
	DefaultStartIndex = 1
	DefaultPageSize   = 10
	MaxPageSize       = 1000
	// DefaultTimeout bounds result consumption when the caller sets no timeout.
	DefaultTimeout = 5 * time.Minute
)

// SortBy orders results on one attribute. An empty attribute means relevance order.
type SortBy struct {
	Attribute  string
	Descending bool
}

// Query is a validated, immutable search predicate with paging.
type Query struct {
	expr         filter.Expression
	startIndex   int
	pageSize     int
	sort         SortBy
	requestTotal bool
	timeout      time.Duration
}

// Option configures optional Query fields.
type Option func(*Query)

// WithPaging sets the 1-based start index and page size.
func WithPaging(startIndex, pageSize int) Option {
	return func(q *Query) {
		q.startIndex = startIndex
		q.pageSize = pageSize
	}
}

// WithSort sets the result ordering.
func WithSort(s SortBy) Option { return func(q *Query) { q.sort = s } }

// WithTotalCount asks sources to compute an exact total.
func WithTotalCount() Option { return func(q *Query) { q.requestTotal = true } }

// WithTimeout bounds how long a consumer waits for results.
func WithTimeout(d time.Duration) Option { return func(q *Query) { q.timeout = d } }

// New validates and normalizes query parameters.
// An empty predicate is rejected. Defaults: start=1, size=10, timeout=5m.
func New(expr filter.Expression, opts ...Option) (Query, error) {
	if expr.IsEmpty() {
		return Query{}, fmt.Errorf("query predicate is required")
	}
	q := Query{expr: expr}
	for _, o := range opts {
		o(&q)
	}
	if q.startIndex <= 0 {
		q.startIndex = DefaultStartIndex
	}
	if q.pageSize <= 0 {
		q.pageSize = DefaultPageSize
	}
	if q.pageSize > MaxPageSize {
		return Query{}, fmt.Errorf("page size too large (max %d)", MaxPageSize)
	}
	if q.timeout < 0 {
		return Query{}, fmt.Errorf("timeout must not be negative")
	}
	if q.timeout == 0 {
		q.timeout = DefaultTimeout
	}
	return q, nil
}

// Filter returns the predicate.
func (q Query) Filter() filter.Expression { return q.expr }

// StartIndex returns the 1-based index of the first requested result.
func (q Query) StartIndex() int { return q.startIndex }

// PageSize returns the maximum number of results requested.
func (q Query) PageSize() int { return q.pageSize }

// Sort returns the result ordering.
func (q Query) Sort() SortBy { return q.sort }

// RequestsTotalCount reports whether an exact total was requested.
func (q Query) RequestsTotalCount() bool { return q.requestTotal }

// Timeout returns the consumer wait bound.
func (q Query) Timeout() time.Duration { return q.timeout }
