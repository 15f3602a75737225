package chi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedcat/internal/domain"
)

// ErrorCode is the machine-readable error class in an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest           ErrorCode = "bad_request"
	CodeUnauthorized         ErrorCode = "unauthorized"
	CodeUnsupportedQuery     ErrorCode = "unsupported_query"
	CodeResourceNotFound     ErrorCode = "resource_not_found"
	CodeResourceNotSupported ErrorCode = "resource_not_supported"
	CodeSourceUnavailable    ErrorCode = "source_unavailable"
	CodeIngestNotSupported   ErrorCode = "ingest_not_supported"
	CodeSourceIO             ErrorCode = "source_io_error"
	CodeInternal             ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx API response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrUnsupportedQuery, http.StatusBadRequest, CodeUnsupportedQuery),
		sentinelHandler(domain.ErrResourceNotFound, http.StatusNotFound, CodeResourceNotFound),
		sentinelHandler(domain.ErrResourceNotSupported, http.StatusUnprocessableEntity, CodeResourceNotSupported),
		sentinelHandler(domain.ErrSourceUnavailable, http.StatusServiceUnavailable, CodeSourceUnavailable),
		sentinelHandler(domain.ErrIngest, http.StatusMethodNotAllowed, CodeIngestNotSupported),
		sentinelHandler(domain.ErrIO, http.StatusBadGateway, CodeSourceIO),
	}
}

// safeDomainMessage returns a client-safe message without exposing internals.
// Typed errors carry messages meant for the caller; bare sentinels are reduced to their text.
func safeDomainMessage(err error) string {
	var ingest *domain.IngestError
	if errors.As(err, &ingest) {
		return ingest.Message
	}
	var notFound *domain.ResourceNotFoundError
	if errors.As(err, &notFound) {
		return notFound.Error()
	}
	sentinels := []error{
		domain.ErrUnsupportedQuery,
		domain.ErrResourceNotFound,
		domain.ErrResourceNotSupported,
		domain.ErrSourceUnavailable,
		domain.ErrIngest,
		domain.ErrIO,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal error")
}
