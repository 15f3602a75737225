package result

import "github.com/kailas-cloud/fedcat/internal/domain/metacard"

// Result is a single search hit: a record plus its relevance and optional distance.
type Result struct {
	card     metacard.Metacard
	score    float64
	distance *float64
}

// New creates a search result.
func New(card metacard.Metacard, score float64) Result {
	return Result{card: card, score: score}
}

// NewWithDistance creates a search result carrying a distance in meters.
func NewWithDistance(card metacard.Metacard, score, distance float64) Result {
	return Result{card: card, score: score, distance: &distance}
}

// Metacard returns the wrapped record.
func (r Result) Metacard() metacard.Metacard { return r.card }

// ID returns the wrapped record identifier.
func (r Result) ID() string { return r.card.ID() }

// Score returns the relevance score.
func (r Result) Score() float64 { return r.score }

// Distance returns the distance in meters, if the source reported one.
func (r Result) Distance() (float64, bool) {
	if r.distance == nil {
		return 0, false
	}
	return *r.distance, true
}

// WithSourceID returns a copy whose record is relabelled to sourceID.
func (r Result) WithSourceID(sourceID string) Result {
	r.card = r.card.WithSourceID(sourceID)
	return r
}
