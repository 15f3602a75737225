package query

import (
	"maps"
	"slices"

	"github.com/google/uuid"
)

// Well-known request property keys.
const (
	PropSubject = "subject"
)

// Request wraps a Query with its federation scope and cross-cutting properties.
// Values are never mutated: the With* methods return rebuilt copies.
type Request struct {
	id         string
	query      Query
	enterprise bool
	sourceIDs  []string
	properties map[string]any
}

// NewRequest creates a request. Enterprise scope and a source-id list are mutually
// exclusive in meaning: enterprise implies every source and wins when both are set.
func NewRequest(q Query, enterprise bool, sourceIDs []string, properties map[string]any) Request {
	r := Request{
		id:         uuid.NewString(),
		query:      q,
		enterprise: enterprise,
		properties: maps.Clone(properties),
	}
	if !enterprise {
		r.sourceIDs = dedupe(sourceIDs)
	}
	return r
}

// ID returns the correlation identifier of this request.
func (r Request) ID() string { return r.id }

// Query returns the wrapped query.
func (r Request) Query() Query { return r.query }

// IsEnterprise reports whether the request targets every source.
func (r Request) IsEnterprise() bool { return r.enterprise }

// SourceIDs returns a copy of the targeted source identifiers.
func (r Request) SourceIDs() []string { return slices.Clone(r.sourceIDs) }

// Properties returns a copy of the property bag.
func (r Request) Properties() map[string]any { return maps.Clone(r.properties) }

// Property returns a single property value.
func (r Request) Property(key string) (any, bool) {
	v, ok := r.properties[key]
	return v, ok
}

// WithEnterprise returns an enterprise-wide copy with any source-id restriction removed.
func (r Request) WithEnterprise() Request {
	r.enterprise = true
	r.sourceIDs = nil
	r.properties = maps.Clone(r.properties)
	return r
}

// WithSourceIDs returns a copy restricted to the given sources.
func (r Request) WithSourceIDs(ids ...string) Request {
	r.enterprise = false
	r.sourceIDs = dedupe(ids)
	r.properties = maps.Clone(r.properties)
	return r
}

// WithQuery returns a copy with a different query.
func (r Request) WithQuery(q Query) Request {
	r.query = q
	r.sourceIDs = slices.Clone(r.sourceIDs)
	r.properties = maps.Clone(r.properties)
	return r
}

// WithProperty returns a copy with one property set.
func (r Request) WithProperty(key string, value any) Request {
	props := maps.Clone(r.properties)
	if props == nil {
		props = make(map[string]any, 1)
	}
	props[key] = value
	r.properties = props
	r.sourceIDs = slices.Clone(r.sourceIDs)
	return r
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
