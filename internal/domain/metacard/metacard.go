package metacard

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Well-known attribute names usable in filter expressions.
const (
	AttrID          = "id"
	AttrSourceID    = "source-id"
	AttrTitle       = "title"
	AttrContentType = "metadata-content-type"
	AttrResourceURI = "resource-uri"
	AttrCreated     = "created"
	AttrModified    = "modified"

	// AttrDerivedResourceURI matches any of the derived resource URIs.
	AttrDerivedResourceURI = "derived-resource-uri"
)

// Metacard is an opaque catalog record (immutable value object).
type Metacard struct {
	id          string
	sourceID    string
	title       string
	contentType string
	resourceURI string
	derived     map[string]string
	created     time.Time
	modified    time.Time
	attributes  map[string]string
}

// New validates and creates a Metacard. Only the identifier is mandatory.
func New(id string, opts ...Option) (Metacard, error) {
	if id == "" {
		return Metacard{}, fmt.Errorf("metacard id is required")
	}
	m := Metacard{id: id}
	for _, o := range opts {
		o(&m)
	}
	return m, nil
}

// Option configures optional Metacard fields.
type Option func(*Metacard)

// WithSource sets the originating source identifier.
func WithSource(sourceID string) Option { return func(m *Metacard) { m.sourceID = sourceID } }

// WithTitle sets the human readable title.
func WithTitle(title string) Option { return func(m *Metacard) { m.title = title } }

// WithContentType sets the metadata content type.
func WithContentType(ct string) Option { return func(m *Metacard) { m.contentType = ct } }

// WithResourceURI sets the product URI.
func WithResourceURI(uri string) Option { return func(m *Metacard) { m.resourceURI = uri } }

// WithDerivedResource registers a derived resource URI under a qualifier (e.g. "preview").
func WithDerivedResource(qualifier, uri string) Option {
	return func(m *Metacard) {
		if m.derived == nil {
			m.derived = make(map[string]string)
		}
		m.derived[qualifier] = uri
	}
}

// WithTimestamps sets the created and modified times.
func WithTimestamps(created, modified time.Time) Option {
	return func(m *Metacard) {
		m.created = created
		m.modified = modified
	}
}

// WithAttributes sets free-form attributes. The map is copied.
func WithAttributes(attrs map[string]string) Option {
	return func(m *Metacard) { m.attributes = maps.Clone(attrs) }
}

// ID returns the record identifier.
func (m Metacard) ID() string { return m.id }

// SourceID returns the provenance of the record.
func (m Metacard) SourceID() string { return m.sourceID }

// Title returns the record title.
func (m Metacard) Title() string { return m.title }

// ContentType returns the metadata content type.
func (m Metacard) ContentType() string { return m.contentType }

// ResourceURI returns the product URI, empty if the record has no product.
func (m Metacard) ResourceURI() string { return m.resourceURI }

// DerivedResourceURI returns the derived resource URI for a qualifier.
func (m Metacard) DerivedResourceURI(qualifier string) (string, bool) {
	uri, ok := m.derived[qualifier]
	return uri, ok
}

// DerivedResources returns a copy of all derived resource URIs.
func (m Metacard) DerivedResources() map[string]string { return maps.Clone(m.derived) }

// QualifierOf returns the qualifier under which uri is registered as a derived resource.
func (m Metacard) QualifierOf(uri string) (string, bool) {
	for q, u := range m.derived {
		if u == uri {
			return q, true
		}
	}
	return "", false
}

// Created returns the creation time.
func (m Metacard) Created() time.Time { return m.created }

// Modified returns the last modification time.
func (m Metacard) Modified() time.Time { return m.modified }

// Attributes returns a copy of the free-form attributes.
func (m Metacard) Attributes() map[string]string { return maps.Clone(m.attributes) }

// WithSourceID returns a copy of the record relabelled to another source.
func (m Metacard) WithSourceID(sourceID string) Metacard {
	m.sourceID = sourceID
	return m
}

// Attribute resolves a well-known or free-form attribute by name.
func (m Metacard) Attribute(name string) (string, bool) {
	switch name {
	case AttrID:
		return m.id, true
	case AttrSourceID:
		return m.sourceID, m.sourceID != ""
	case AttrTitle:
		return m.title, m.title != ""
	case AttrContentType:
		return m.contentType, m.contentType != ""
	case AttrResourceURI:
		return m.resourceURI, m.resourceURI != ""
	case AttrCreated:
		return formatTime(m.created)
	case AttrModified:
		return formatTime(m.modified)
	}
	v, ok := m.attributes[name]
	return v, ok
}

// Equal reports whether two records carry the same content.
func (m Metacard) Equal(o Metacard) bool {
	return m.id == o.id &&
		m.sourceID == o.sourceID &&
		m.title == o.title &&
		m.contentType == o.contentType &&
		m.resourceURI == o.resourceURI &&
		m.created.Equal(o.created) &&
		m.modified.Equal(o.modified) &&
		maps.Equal(m.derived, o.derived) &&
		maps.Equal(m.attributes, o.attributes)
}

// Values returns every value of an attribute. Derived resource URIs are
// multi-valued and come back sorted; other attributes yield at most one value.
func (m Metacard) Values(name string) []string {
	if name == AttrDerivedResourceURI {
		return slices.Sorted(maps.Values(m.derived))
	}
	if v, ok := m.Attribute(name); ok {
		return []string{v}
	}
	return nil
}

func formatTime(t time.Time) (string, bool) {
	if t.IsZero() {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}
