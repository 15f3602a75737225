package fedcat

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
)

// ResourceRequest locates a resource. Exactly one of ID, URI or Derived is set.
type ResourceRequest struct {
	ID      string
	URI     string
	Derived string

	// Qualifier names a derived resource of the record located by ID or URI.
	Qualifier string
	// Source restricts retrieval to one source. Local restricts it to the
	// server's own catalog. At most one of them may be set.
	Source string
	Local  bool
	// Offset skips leading bytes of the payload.
	Offset int64
}

// ResourceByID locates the product of a record.
func ResourceByID(id string) ResourceRequest { return ResourceRequest{ID: id} }

// ResourceByURI locates a product by its URI.
func ResourceByURI(uri string) ResourceRequest { return ResourceRequest{URI: uri} }

// ResourceByDerivedURI locates a derived resource by its own URI.
func ResourceByDerivedURI(uri string) ResourceRequest { return ResourceRequest{Derived: uri} }

// WithQualifier selects a derived resource instead of the product.
func (r ResourceRequest) WithQualifier(q string) ResourceRequest {
	r.Qualifier = q
	return r
}

// FromSource retrieves from a single source.
func (r ResourceRequest) FromSource(id string) ResourceRequest {
	r.Source = id
	return r
}

// WithOffset skips the first n bytes.
func (r ResourceRequest) WithOffset(n int64) ResourceRequest {
	r.Offset = n
	return r
}

func (r ResourceRequest) values() (url.Values, error) {
	v := url.Values{}
	set := 0
	for _, p := range []struct{ name, value string }{
		{"id", r.ID},
		{"uri", r.URI},
		{"derived", r.Derived},
	} {
		if p.value != "" {
			v.Set(p.name, p.value)
			set++
		}
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: exactly one of ID, URI or Derived is required", ErrBadRequest)
	}
	if r.Offset < 0 {
		return nil, fmt.Errorf("%w: Offset must be non-negative", ErrBadRequest)
	}
	if r.Source != "" && r.Local {
		return nil, fmt.Errorf("%w: Source and Local are mutually exclusive", ErrBadRequest)
	}

	if r.Qualifier != "" {
		v.Set("qualifier", r.Qualifier)
	}
	if r.Source != "" {
		v.Set("source", r.Source)
	}
	if r.Local {
		v.Set("local", "true")
	}
	return v, nil
}

// Resource retrieves a payload. The whole body is read into memory.
func (c *Client) Resource(ctx context.Context, r ResourceRequest) (Resource, error) {
	v, err := r.values()
	if err != nil {
		return Resource{}, err
	}
	req, err := c.newRequest(ctx, http.MethodGet, apiPrefix+"/resource", v)
	if err != nil {
		return Resource{}, err
	}
	if r.Offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(r.Offset, 10)+"-")
	}

	resp, err := c.send("resource", req)
	if err != nil {
		return Resource{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Resource{}, fmt.Errorf("fedcat: read resource: %w", err)
	}
	c.obs.payload(len(data))

	out := Resource{
		MimeType: resp.Header.Get("Content-Type"),
		SourceID: resp.Header.Get("X-Source-ID"),
		CacheHit: resp.Header.Get("X-Cache") == "hit",
		Data:     data,
	}
	if _, params, perr := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); perr == nil {
		out.Name = params["filename"]
	}
	if resp.StatusCode == http.StatusPartialContent {
		out.Offset = r.Offset
	}
	return out, nil
}
