package plugin

import (
	"context"
	"errors"

	"github.com/kailas-cloud/fedcat/internal/domain/operation"
	"github.com/kailas-cloud/fedcat/internal/domain/resource"
)

// ErrStopProcessing is returned by a plugin to abort the current operation.
var ErrStopProcessing = errors.New("plugin stopped processing")

// PreResource inspects or rewrites a resource request before retrieval.
type PreResource interface {
	ProcessRequest(ctx context.Context, req resource.Request) (resource.Request, error)
}

// PostResource inspects or rewrites a resource response after retrieval.
type PostResource interface {
	ProcessResponse(ctx context.Context, resp resource.Response) (resource.Response, error)
}

// PreIngest observes a mutation together with the prior state of affected records.
type PreIngest interface {
	Process(ctx context.Context, tx *operation.Transaction) error
}

// PreResourceFunc adapts a function to PreResource.
type PreResourceFunc func(ctx context.Context, req resource.Request) (resource.Request, error)

// ProcessRequest calls f.
func (f PreResourceFunc) ProcessRequest(ctx context.Context, req resource.Request) (resource.Request, error) {
	return f(ctx, req)
}

// PostResourceFunc adapts a function to PostResource.
type PostResourceFunc func(ctx context.Context, resp resource.Response) (resource.Response, error)

// ProcessResponse calls f.
func (f PostResourceFunc) ProcessResponse(ctx context.Context, resp resource.Response) (resource.Response, error) {
	return f(ctx, resp)
}

// RunPreResource folds req through plugins in order, stopping at the first error.
func RunPreResource(ctx context.Context, plugins []PreResource, req resource.Request) (resource.Request, error) {
	for _, p := range plugins {
		next, err := p.ProcessRequest(ctx, req)
		if err != nil {
			return req, err
		}
		req = next
	}
	return req, nil
}

// RunPostResource folds resp through plugins in order, stopping at the first error.
func RunPostResource(ctx context.Context, plugins []PostResource, resp resource.Response) (resource.Response, error) {
	for _, p := range plugins {
		next, err := p.ProcessResponse(ctx, resp)
		if err != nil {
			return resp, err
		}
		resp = next
	}
	return resp, nil
}

// RunPreIngest passes tx to every plugin in order, stopping at the first error.
func RunPreIngest(ctx context.Context, plugins []PreIngest, tx *operation.Transaction) error {
	for _, p := range plugins {
		if err := p.Process(ctx, tx); err != nil {
			return err
		}
	}
	return nil
}
