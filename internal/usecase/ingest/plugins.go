// Package ingest holds the pre-ingest plugins the server installs on the local catalog.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/fedcat/internal/domain/operation"
	"github.com/kailas-cloud/fedcat/internal/domain/plugin"
	logpkg "github.com/kailas-cloud/fedcat/internal/logger"
)

// ErrTooManyDeletes rejects a delete larger than the configured limit.
var ErrTooManyDeletes = errors.New("ingest: delete exceeds limit")

var (
	_ plugin.PreIngest = (*Audit)(nil)
	_ plugin.PreIngest = DeleteLimit{}
)

// Audit logs each transaction and counts it by source and kind. It never vetoes.
type Audit struct {
	sourceID string
	counter  *prometheus.CounterVec
	logger   *zap.Logger
}

// NewAudit creates an audit plugin. counter may be nil.
func NewAudit(sourceID string, counter *prometheus.CounterVec, logger *zap.Logger) *Audit {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Audit{sourceID: sourceID, counter: counter, logger: logger}
}

// Process records tx.
func (a *Audit) Process(ctx context.Context, tx *operation.Transaction) error {
	logpkg.Or(ctx, a.logger).Info("Ingest transaction",
		zap.String("source", a.sourceID),
		zap.String("transaction", tx.ID()),
		zap.String("kind", string(tx.Kind())),
		zap.Int("previous", len(tx.Previous())),
	)
	if a.counter != nil {
		a.counter.WithLabelValues(a.sourceID, string(tx.Kind())).Inc()
	}
	return nil
}

// DeleteLimit vetoes deletes that would remove more than Max records at once.
// A truncated seed file would otherwise empty the catalog on reload.
type DeleteLimit struct {
	Max int
}

// Process checks tx against the limit. A non-positive Max disables the check.
func (d DeleteLimit) Process(_ context.Context, tx *operation.Transaction) error {
	if d.Max <= 0 || tx.Kind() != operation.Delete {
		return nil
	}
	if n := len(tx.Previous()); n > d.Max {
		return fmt.Errorf("%w: %d records, limit %d", ErrTooManyDeletes, n, d.Max)
	}
	return nil
}
