package ratelimit

import "sync"

// Provider classes the orchestrator gates independently (§4.1).
const (
	ClassLLM      = "llm"
	ClassImageGen = "imageGen"
	ClassVision   = "vision"
)

// Registry holds the three process-wide Limiter instances keyed by provider
// class. Created once at initialization and shared across every concurrent
// beam-search run so that Metrics() reflects true global load (§4.1, §9
// "created at first use, live for the process").
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewRegistry constructs a Registry with the three provider-class limiters
// set to the given concurrency limits.
func NewRegistry(llmLimit, imageGenLimit, visionLimit int) *Registry {
	return &Registry{
		limiters: map[string]*Limiter{
			ClassLLM:      New(llmLimit),
			ClassImageGen: New(imageGenLimit),
			ClassVision:   New(visionLimit),
		},
	}
}

var (
	sharedOnce     sync.Once
	sharedRegistry *Registry
)

// Shared returns the process-wide Registry (§4.1, §9: "created at first
// use, live for the process"), constructing it on the first call with the
// given limits. Every call after the first returns the same instance and
// ignores its arguments, since the three limiters are shared across every
// concurrent beam-search run rather than rebuilt per run.
func Shared(llmLimit, imageGenLimit, visionLimit int) *Registry {
	sharedOnce.Do(func() {
		sharedRegistry = NewRegistry(llmLimit, imageGenLimit, visionLimit)
	})
	return sharedRegistry
}

// Get returns the Limiter for a provider class, or nil if unknown.
func (r *Registry) Get(class string) *Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[class]
}

// Snapshot returns a {class: Metrics} view of every registered limiter,
// suitable for an out-of-band observer or a CLI's --verbose rendering
// (§9: "expose a metrics snapshot via the progress sink or an out-of-band
// observer").
func (r *Registry) Snapshot() map[string]Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Metrics, len(r.limiters))
	for class, l := range r.limiters {
		out[class] = l.Metrics()
	}
	return out
}
