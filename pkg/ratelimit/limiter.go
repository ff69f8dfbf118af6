// Package ratelimit implements the bounded-concurrency admission gate used
// to cap in-flight provider calls per provider class (§4.1, §5).
//
// Limiter bounds concurrency, not throughput: up to Limit operations may run
// at once, and the rest queue FIFO until a permit frees up. This is
// admission control, not retry policy - rate-limiter throttling never
// retries a failed op (§7).
package ratelimit

import (
	"context"
	"sync"

	"github.com/praetorian-inc/beamforge/pkg/beam"
)

// Metrics is a point-in-time snapshot of a Limiter's load (§4.1).
type Metrics struct {
	Active int
	Queued int
	Limit  int
}

// Limiter bounds in-flight operations to Limit and queues the rest FIFO.
// Thread-safe for concurrent use. The zero value is not usable; construct
// with New.
type Limiter struct {
	limit int
	sem   chan struct{}

	// queuedMu/queued exist purely for the metrics snapshot: Go channels
	// don't expose how many goroutines are blocked trying to send.
	queuedMu sync.Mutex
	queued   int
}

// New constructs a Limiter admitting at most limit concurrent operations.
// limit must be >= 1; values below 1 are clamped to 1.
func New(limit int) *Limiter {
	if limit < 1 {
		limit = 1
	}
	return &Limiter{
		limit: limit,
		sem:   make(chan struct{}, limit),
	}
}

// Execute acquires one of Limit permits - queueing FIFO if all are taken -
// runs op, and releases the permit when op returns (success or failure).
// If ctx is cancelled while queued, Execute fails fast with a cancellation
// error without ever running op (§4.1, §5).
func Execute[T any](ctx context.Context, l *Limiter, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if err := beam.CheckCancelled(ctx); err != nil {
		return zero, err
	}

	l.enterQueue()
	select {
	case l.sem <- struct{}{}:
		l.leaveQueue()
	case <-ctx.Done():
		l.leaveQueue()
		return zero, beam.AsCancelled(ctx.Err())
	}
	defer func() { <-l.sem }()

	if err := beam.CheckCancelled(ctx); err != nil {
		return zero, err
	}

	return op(ctx)
}

func (l *Limiter) enterQueue() {
	l.queuedMu.Lock()
	l.queued++
	l.queuedMu.Unlock()
}

func (l *Limiter) leaveQueue() {
	l.queuedMu.Lock()
	l.queued--
	l.queuedMu.Unlock()
}

// Metrics reports the current {active, queued, limit} snapshot (§4.1, P3).
func (l *Limiter) Metrics() Metrics {
	l.queuedMu.Lock()
	queued := l.queued
	l.queuedMu.Unlock()

	return Metrics{Active: len(l.sem), Queued: queued, Limit: l.limit}
}

// Limit returns the configured concurrency bound.
func (l *Limiter) Limit() int { return l.limit }
