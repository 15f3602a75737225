package fedcat

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// codeTransport labels exchanges that never produced an HTTP response.
const codeTransport = "transport"

// clientMetrics counts HTTP exchanges by status code, so partial content (206)
// and unsatisfiable ranges (416) stay visible next to plain successes.
type clientMetrics struct {
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	resourceBytes prometheus.Counter
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	var (
		m   clientMetrics
		err error
	)
	if m.requests, err = adopt(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fedcat",
		Subsystem: "client",
		Name:      "requests_total",
		Help:      "HTTP exchanges with the fedcat server by operation and status code.",
	}, []string{"operation", "code"})); err != nil {
		return nil, err
	}
	if m.latency, err = adopt(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fedcat",
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Time to response headers per operation.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"operation"})); err != nil {
		return nil, err
	}
	if m.resourceBytes, err = adopt(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fedcat",
		Subsystem: "client",
		Name:      "resource_bytes_total",
		Help:      "Resource payload bytes received.",
	})); err != nil {
		return nil, err
	}
	return &m, nil
}

// adopt registers c. When an identical collector is already registered, for
// instance by another Client on the same registry, that one is returned instead.
func adopt[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("fedcat: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("fedcat: metric clashes with a registered %T", are.ExistingCollector)
	}
	return existing, nil
}

// observer records each HTTP exchange. A nil observer records nothing.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// exchange records one request. status is zero when no response arrived;
// err is the error the caller will see, if any.
func (o *observer) exchange(op string, status int, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	code := codeTransport
	if status > 0 {
		code = strconv.Itoa(status)
	}

	if o.metrics != nil {
		o.metrics.requests.WithLabelValues(op, code).Inc()
		o.metrics.latency.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}

	attrs := []any{"op", op, "status", code, "duration", dur}
	var apiErr *APIError
	switch {
	case err == nil:
		o.logger.Debug("fedcat request", attrs...)
	case errors.As(err, &apiErr) && apiErr.StatusCode < 500:
		o.logger.Info("fedcat request rejected", append(attrs, "code", apiErr.Code, "message", apiErr.Message)...)
	default:
		o.logger.Warn("fedcat request failed", append(attrs, "error", err)...)
	}
}

// payload counts resource bytes handed to the caller.
func (o *observer) payload(n int) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.resourceBytes.Add(float64(n))
}
