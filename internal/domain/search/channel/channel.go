// Package channel implements the streaming hand-off between federated source
// workers and the single consumer of a query response.
//
// Producers never block. The consumer blocks only inside Take, TakeN, DrainAll
// and Poll, always bounded by a deadline. Closing is a first-class flag plus a
// wake-up channel; no marker value is ever queued.
package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kailas-cloud/fedcat/internal/domain"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
	"github.com/kailas-cloud/fedcat/internal/domain/search/result"
)

// Channel is an unbounded FIFO of results with an explicit end of stream.
type Channel struct {
	mu       sync.Mutex
	pending  []result.Result
	closed   bool
	drained  []result.Result
	consumed bool

	signal   chan struct{} // cap 1, poked on every add
	done     chan struct{} // closed exactly once by Close
	deadline time.Time
}

// New creates a channel whose blocking reads give up once timeout has elapsed.
// A non-positive timeout uses query.DefaultTimeout.
func New(timeout time.Duration) *Channel {
	if timeout <= 0 {
		timeout = query.DefaultTimeout
	}
	return &Channel{
		signal:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		deadline: time.Now().Add(timeout),
	}
}

// Deadline returns the instant after which blocking reads stop waiting.
func (c *Channel) Deadline() time.Time { return c.deadline }

// Add enqueues one result.
func (c *Channel) Add(r result.Result) error {
	return c.enqueue([]result.Result{r}, false)
}

// AddAll enqueues results in order.
func (c *Channel) AddAll(rs []result.Result) error {
	return c.enqueue(rs, false)
}

// AddAllAndClose enqueues the final batch and closes the channel atomically.
func (c *Channel) AddAllAndClose(rs []result.Result) error {
	return c.enqueue(rs, true)
}

func (c *Channel) enqueue(rs []result.Result, closeAfter bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("add to closed result channel: %w", domain.ErrIllegalState)
	}
	c.pending = append(c.pending, rs...)
	if closeAfter {
		c.closeLocked()
	}
	c.mu.Unlock()

	c.wake()
	return nil
}

// Close marks the end of the stream. Repeated calls are no-ops.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closeLocked()
	c.mu.Unlock()
}

func (c *Channel) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *Channel) wake() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Pending returns the number of queued, not yet consumed results.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// HasMore reports whether a result is queued or the stream is still open.
// Consumers must re-check it after every read: producers race with the consumer.
func (c *Channel) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending) > 0 || !c.closed
}

// Poll waits up to timeout for the next result.
// On a closed and drained channel it returns immediately.
func (c *Channel) Poll(timeout time.Duration) (result.Result, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return c.next(ctx, time.Now().Add(timeout))
}

// Take waits for the next result until the channel deadline.
// A cancelled context yields no result; the caller observes ctx.Err().
func (c *Channel) Take(ctx context.Context) (result.Result, bool) {
	return c.next(ctx, c.deadline)
}

// TakeN reads up to n results, stopping early when the stream ends or the deadline passes.
func (c *Channel) TakeN(ctx context.Context, n int) []result.Result {
	out := make([]result.Result, 0, max(n, 0))
	for len(out) < n && c.HasMore() {
		r, ok := c.Take(ctx)
		if !ok {
			if c.expired(ctx) {
				break
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

// DrainAll consumes the stream into a list. The drain happens once;
// later calls return a copy of the same list.
func (c *Channel) DrainAll(ctx context.Context) []result.Result {
	c.mu.Lock()
	if c.consumed {
		out := append([]result.Result(nil), c.drained...)
		c.mu.Unlock()
		return out
	}
	c.mu.Unlock()

	var all []result.Result
	for c.HasMore() {
		r, ok := c.Take(ctx)
		if !ok {
			if c.expired(ctx) {
				break
			}
			continue
		}
		all = append(all, r)
	}

	c.mu.Lock()
	if !c.consumed {
		c.drained = all
		c.consumed = true
	}
	out := append([]result.Result(nil), c.drained...)
	c.mu.Unlock()
	return out
}

func (c *Channel) expired(ctx context.Context) bool {
	return ctx.Err() != nil || !time.Now().Before(c.deadline)
}

// next pops the head of the queue, waiting until deadline, ctx or close.
func (c *Channel) next(ctx context.Context, deadline time.Time) (result.Result, bool) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		c.mu.Lock()
		if len(c.pending) > 0 {
			r := c.pending[0]
			c.pending[0] = result.Result{}
			c.pending = c.pending[1:]
			c.mu.Unlock()
			return r, true
		}
		closed := c.closed
		c.mu.Unlock()

		if closed {
			return result.Result{}, false
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			return result.Result{}, false
		}
		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}

		select {
		case <-c.signal:
		case <-c.done:
		case <-ctx.Done():
			return result.Result{}, false
		case <-timer.C:
			return result.Result{}, false
		}
	}
}
