package operation

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/fedcat/internal/domain/metacard"
)

// Kind is the type of a mutating catalog operation.
type Kind string

const (
	// Create adds new records.
	Create Kind = "create"
	// Update replaces existing records.
	Update Kind = "update"
	// Delete removes records.
	Delete Kind = "delete"
)

// Transaction exposes the prior state of records affected by one in-flight mutation.
// It is created once per request and never modified.
type Transaction struct {
	id        string
	kind      Kind
	startedAt time.Time
	previous  []metacard.Metacard
}

// NewTransaction captures a snapshot. previous is copied; it is empty for creates.
func NewTransaction(kind Kind, previous []metacard.Metacard) (*Transaction, error) {
	switch kind {
	case Create, Update, Delete:
	default:
		return nil, fmt.Errorf("unknown operation kind %q", kind)
	}
	return &Transaction{
		id:        uuid.NewString(),
		kind:      kind,
		startedAt: time.Now(),
		previous:  slices.Clone(previous),
	}, nil
}

// ID returns the transaction identifier.
func (t *Transaction) ID() string { return t.id }

// Kind returns the operation type.
func (t *Transaction) Kind() Kind { return t.kind }

// StartedAt returns when the transaction was captured.
func (t *Transaction) StartedAt() time.Time { return t.startedAt }

// Previous returns a copy of the records as they were before the operation.
func (t *Transaction) Previous() []metacard.Metacard { return slices.Clone(t.previous) }

// PreviousByID looks up one prior record.
func (t *Transaction) PreviousByID(id string) (metacard.Metacard, bool) {
	for _, m := range t.previous {
		if m.ID() == id {
			return m, true
		}
	}
	return metacard.Metacard{}, false
}
