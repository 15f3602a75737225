package resource

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
)

// Well-known request/response property keys.
const (
	// PropBytesToSkip carries an int64 offset for partial transfer.
	PropBytesToSkip = "bytesToSkip"
	// PropQualifier names a derived resource (e.g. "preview").
	PropQualifier = "qualifier"
	// PropSourceID is set on responses to the id of the serving source.
	PropSourceID = "source-id"
	// PropCacheHit is set on responses served from the resource cache.
	PropCacheHit = "cache-hit"
)

// Kind says how a request identifies its target.
type Kind string

const (
	// ByID targets the product of a record identifier.
	ByID Kind = "id"
	// ByProductURI targets a source-assigned product URI.
	ByProductURI Kind = "product-uri"
	// ByDerivedURI targets a derived resource URI.
	ByDerivedURI Kind = "derived-uri"
)

// Resource is a retrieved payload.
type Resource struct {
	Name     string
	MimeType string
	Data     []byte
}

// Reader returns a fresh stream over the payload.
func (r Resource) Reader() io.Reader { return bytes.NewReader(r.Data) }

// Size returns the payload length in bytes.
func (r Resource) Size() int64 { return int64(len(r.Data)) }

// Skip returns a copy of the resource with the first n bytes removed.
func (r Resource) Skip(n int64) Resource {
	switch {
	case n <= 0:
		return r
	case n >= int64(len(r.Data)):
		r.Data = nil
	default:
		r.Data = r.Data[n:]
	}
	return r
}

// Request identifies a target resource.
type Request struct {
	kind       Kind
	value      string
	properties map[string]any
}

// NewRequest validates and creates a resource request.
func NewRequest(kind Kind, value string, properties map[string]any) (Request, error) {
	switch kind {
	case ByID, ByProductURI, ByDerivedURI:
	default:
		return Request{}, fmt.Errorf("unknown resource request kind %q", kind)
	}
	if value == "" {
		return Request{}, fmt.Errorf("resource %s is required", kind)
	}
	return Request{kind: kind, value: value, properties: maps.Clone(properties)}, nil
}

// Kind returns how the target is identified.
func (r Request) Kind() Kind { return r.kind }

// Value returns the identifier or URI.
func (r Request) Value() string { return r.value }

// Properties returns a copy of the property bag.
func (r Request) Properties() map[string]any { return maps.Clone(r.properties) }

// WithProperty returns a copy with one property set.
func (r Request) WithProperty(key string, value any) Request {
	props := maps.Clone(r.properties)
	if props == nil {
		props = make(map[string]any, 1)
	}
	props[key] = value
	r.properties = props
	return r
}

// Qualifier returns the derived resource qualifier, if any.
func (r Request) Qualifier() string {
	q, _ := r.properties[PropQualifier].(string)
	return q
}

// BytesToSkip returns the requested start offset, zero if unset or invalid.
func (r Request) BytesToSkip() int64 { return BytesToSkip(r.properties) }

// BytesToSkip reads PropBytesToSkip from a property bag. Gateways receive the
// bag rather than the request, so the lookup is shared.
func BytesToSkip(properties map[string]any) int64 {
	switch v := properties[PropBytesToSkip].(type) {
	case int64:
		return max(v, 0)
	case int:
		return int64(max(v, 0))
	}
	return 0
}

// Response carries a retrieved resource together with the original request.
type Response struct {
	request    Request
	properties map[string]any
	resource   Resource
}

// NewResponse creates a response. The property map is copied.
func NewResponse(req Request, properties map[string]any, res Resource) Response {
	return Response{request: req, properties: maps.Clone(properties), resource: res}
}

// Request returns the request that produced this response.
func (r Response) Request() Request { return r.request }

// Properties returns a copy of the response properties.
func (r Response) Properties() map[string]any { return maps.Clone(r.properties) }

// Property returns one response property.
func (r Response) Property(key string) (any, bool) {
	v, ok := r.properties[key]
	return v, ok
}

// Resource returns the payload.
func (r Response) Resource() Resource { return r.resource }

// WithResource returns a copy carrying a different payload.
func (r Response) WithResource(res Resource) Response {
	r.resource = res
	r.properties = maps.Clone(r.properties)
	return r
}

// CacheKey fingerprints a logical resource: the owning record id plus the qualifier.
// The serving source is not part of the key.
type CacheKey string

// NewCacheKey derives the key for a record id and a derived resource qualifier.
// An empty qualifier names the product itself.
func NewCacheKey(metacardID, qualifier string) CacheKey {
	h := sha256.New()
	h.Write([]byte(metacardID))
	h.Write([]byte{0})
	h.Write([]byte(qualifier))
	return CacheKey(hex.EncodeToString(h.Sum(nil)))
}

func (k CacheKey) String() string { return string(k) }
