package ratelimit

import (
	"context"
	"net/http"
)

// HTTPDoer is an interface for making HTTP requests.
// Both *http.Client and *RateLimitedHTTPClient satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RateLimitedHTTPClient wraps an HTTPDoer, bounding its concurrent in-flight
// requests through a Limiter. Used by the reference provider adapters
// (internal/providers/reference) to share the same admission-control
// abstraction the orchestrator core uses for provider calls, rather than
// each adapter inventing its own HTTP-level throttling.
type RateLimitedHTTPClient struct {
	inner   HTTPDoer
	limiter *Limiter
}

// NewRateLimitedHTTPClient wraps an existing HTTPDoer with concurrency
// limiting. If limiter is nil, requests pass through unbounded.
func NewRateLimitedHTTPClient(inner HTTPDoer, limiter *Limiter) *RateLimitedHTTPClient {
	return &RateLimitedHTTPClient{
		inner:   inner,
		limiter: limiter,
	}
}

// Do executes an HTTP request, blocking until a concurrency permit is
// available, and respects request context cancellation while queued.
func (c *RateLimitedHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c.limiter == nil {
		return c.inner.Do(req)
	}
	return Execute(req.Context(), c.limiter, func(_ context.Context) (*http.Response, error) {
		return c.inner.Do(req)
	})
}
