package fedcat

import (
	"errors"
	"fmt"
)

// Sentinel errors matching the server's error codes. Use errors.Is() to check.
var (
	ErrBadRequest           = errors.New("fedcat: bad request")
	ErrUnauthorized         = errors.New("fedcat: unauthorized")
	ErrUnsupportedQuery     = errors.New("fedcat: unsupported query")
	ErrResourceNotFound     = errors.New("fedcat: resource not found")
	ErrResourceNotSupported = errors.New("fedcat: resource not supported")
	ErrSourceUnavailable    = errors.New("fedcat: source unavailable")
	ErrIngestNotSupported   = errors.New("fedcat: ingest not supported")
	ErrSourceIO             = errors.New("fedcat: source i/o error")
	ErrRangeNotSatisfiable  = errors.New("fedcat: range not satisfiable")
)

const codeRangeNotSatisfiable = "range_not_satisfiable"

var codeErrors = map[string]error{
	"bad_request":            ErrBadRequest,
	"unauthorized":           ErrUnauthorized,
	"unsupported_query":      ErrUnsupportedQuery,
	"resource_not_found":     ErrResourceNotFound,
	"resource_not_supported": ErrResourceNotSupported,
	"source_unavailable":     ErrSourceUnavailable,
	"ingest_not_supported":   ErrIngestNotSupported,
	"source_io_error":        ErrSourceIO,
	codeRangeNotSatisfiable:  ErrRangeNotSatisfiable,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fedcat: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap maps the error code to its sentinel. Unknown codes unwrap to nil.
func (e *APIError) Unwrap() error { return codeErrors[e.Code] }
