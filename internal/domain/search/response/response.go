package response

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/kailas-cloud/fedcat/internal/domain/search/channel"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
)

// ProcessingDetail is a per-source warning or failure attached to a response
// without failing the overall call.
type ProcessingDetail struct {
	SourceID string
	Warnings []string
	Err      error
}

// Response owns the result channel of one query plus its aggregated metadata.
// Hits is a best-known estimate refined while sources report.
type Response struct {
	request query.Request
	results *channel.Channel
	hits    atomic.Int64

	mu      sync.Mutex
	details []ProcessingDetail
}

// New creates a response around a freshly created channel.
func New(req query.Request, results *channel.Channel) *Response {
	return &Response{request: req, results: results}
}

// Request returns the request this response answers.
func (r *Response) Request() query.Request { return r.request }

// Results returns the result stream.
func (r *Response) Results() *channel.Channel { return r.results }

// Hits returns the current hit estimate.
func (r *Response) Hits() int64 { return r.hits.Load() }

// AddHits adds a source's reported total to the estimate.
func (r *Response) AddHits(n int64) {
	if n > 0 {
		r.hits.Add(n)
	}
}

// SetHits overwrites the estimate.
func (r *Response) SetHits(n int64) { r.hits.Store(n) }

// AddDetail appends a processing detail.
func (r *Response) AddDetail(d ProcessingDetail) {
	r.mu.Lock()
	r.details = append(r.details, d)
	r.mu.Unlock()
}

// Details returns a snapshot of the processing details.
func (r *Response) Details() []ProcessingDetail {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.details)
}
