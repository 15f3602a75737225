package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedQuery signals a request that cannot be satisfied as specified.
	ErrUnsupportedQuery = errors.New("unsupported query")
	// ErrResourceNotFound signals that no source, including the cache, produced the resource.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrResourceNotSupported signals a target that exists but cannot be fetched as a resource.
	ErrResourceNotSupported = errors.New("resource not supported")
	// ErrSourceUnavailable signals an unknown or unreachable source.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrIngest signals a rejected create/update/delete.
	ErrIngest = errors.New("ingest rejected")
	// ErrIllegalState signals API misuse, e.g. adding to a closed result channel.
	ErrIllegalState = errors.New("illegal state")
	// ErrIO signals a transport failure local to one source.
	ErrIO = errors.New("source i/o failure")
)

// ResourceNotFoundError wraps ErrResourceNotFound with the originally requested target.
type ResourceNotFoundError struct {
	Target string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrResourceNotFound.Error(), e.Target)
}

func (e *ResourceNotFoundError) Unwrap() error { return ErrResourceNotFound }

// NewResourceNotFound creates a not-found error naming the requested identifier or URI.
func NewResourceNotFound(target string) error {
	return &ResourceNotFoundError{Target: target}
}

// IngestError wraps ErrIngest with a fixed, user-facing message.
type IngestError struct {
	Message string
}

func (e *IngestError) Error() string { return e.Message }

func (e *IngestError) Unwrap() error { return ErrIngest }
