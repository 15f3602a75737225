package fedcat

import "time"

// Result is one record returned by a query.
type Result struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	Title       string            `json:"title,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	ResourceURI string            `json:"resource_uri,omitempty"`
	Derived     map[string]string `json:"derived,omitempty"` // qualifier → URI
	Created     *time.Time        `json:"created,omitempty"`
	Modified    *time.Time        `json:"modified,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Score       float64           `json:"score"`
	DistanceM   *float64          `json:"distance_m,omitempty"`
}

// Detail reports how a single source handled a query.
type Detail struct {
	Source   string   `json:"source"`
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// QueryResult is the aggregated response of a federated query.
// Complete is false when the server stopped waiting for slow sources.
type QueryResult struct {
	RequestID string   `json:"request_id"`
	Hits      int64    `json:"hits"`
	Complete  bool     `json:"complete"`
	Results   []Result `json:"results"`
	Details   []Detail `json:"details"`
}

// Source describes one catalog known to the server.
type Source struct {
	ID           string   `json:"id"`
	Version      string   `json:"version,omitempty"`
	Available    bool     `json:"available"`
	ContentTypes []string `json:"content_types"`
}

// Resource is a retrieved product or derived payload.
type Resource struct {
	Name     string
	MimeType string
	SourceID string
	CacheHit bool
	// Offset is the number of leading bytes the server skipped.
	Offset int64
	Data   []byte
}

// BuildInfo is the server's build metadata.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// HealthStatus represents the aggregated server health.
type HealthStatus struct {
	Status  string            `json:"status"` // "ok", "degraded", "error"
	Checks  map[string]string `json:"checks"` // component → "ok"/"error"
	Version BuildInfo         `json:"version"`
}
