package beam

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled is returned (wrapping context.Canceled/DeadlineExceeded) when
// a run's cancel signal fires. It always propagates and is never swallowed.
var ErrCancelled = errors.New("beamforge: run cancelled")

// ErrAllCandidatesFailed is returned when every slot in an iteration failed
// (§4.2, §7).
var ErrAllCandidatesFailed = errors.New("beamforge: all candidates failed in iteration")

// InvalidConfigError reports a violated run-configuration precondition
// (N, M, K, alpha), raised at driver construction (§7).
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("beamforge: invalid config field %q: %s", e.Field, e.Reason)
}

// safetyMarkers are the substrings (case-insensitive) that identify an image
// provider error as a safety violation rather than a generic provider
// failure (§4.2 step 3).
var safetyMarkers = []string{
	"safety",
	"safety_violations",
	"content policy",
	"rejected",
}

// SafetyViolationError wraps an image-generation error recognized as a
// content-safety rejection. Category is parsed from a
// "safety_violations=[<cat>]" shaped message when present.
type SafetyViolationError struct {
	Category string
	Err      error
}

func (e *SafetyViolationError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("safety violation (%s): %v", e.Category, e.Err)
	}
	return fmt.Sprintf("safety violation: %v", e.Err)
}

func (e *SafetyViolationError) Unwrap() error { return e.Err }

// IsSafetyViolation classifies an image-provider error per §4.2 step 3 and,
// if it matches, returns a *SafetyViolationError with the category parsed
// out (if present).
func IsSafetyViolation(err error) (*SafetyViolationError, bool) {
	if err == nil {
		return nil, false
	}
	var sv *SafetyViolationError
	if errors.As(err, &sv) {
		return sv, true
	}

	msg := strings.ToLower(err.Error())
	matched := false
	for _, marker := range safetyMarkers {
		if strings.Contains(msg, marker) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, false
	}

	return &SafetyViolationError{Category: parseSafetyCategory(err.Error()), Err: err}, true
}

// parseSafetyCategory extracts <cat> from a "safety_violations=[<cat>]"
// shaped message, returning "" if the pattern isn't present.
func parseSafetyCategory(msg string) string {
	const marker = "safety_violations=["
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return ""
	}
	rest := msg[idx+len(marker):]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// ProviderTransientError wraps a generic single-candidate provider failure
// that the pipeline caller converts into a null slot (§7).
type ProviderTransientError struct {
	CandidateID CandidateID
	Stage       string
	Err         error
}

func (e *ProviderTransientError) Error() string {
	return fmt.Sprintf("beamforge: %s failed for %s: %v", e.Stage, e.CandidateID, e.Err)
}

func (e *ProviderTransientError) Unwrap() error { return e.Err }

// RankerPairFailureError reports a single pairwise-judge call failure.
// Under GracefulDegradation it is recorded and the pair treated as unknown;
// otherwise it is fatal to the whole ranking step (§4.6 step 5, §7).
type RankerPairFailureError struct {
	A, B CandidateID
	Err  error
}

func (e *RankerPairFailureError) Error() string {
	return fmt.Sprintf("beamforge: comparison %s vs %s failed: %v", e.A, e.B, e.Err)
}

func (e *RankerPairFailureError) Unwrap() error { return e.Err }

// AsCancelled normalizes a context error into ErrCancelled, wrapped so
// errors.Is(err, ErrCancelled) and errors.Is(err, context.Canceled) both
// hold.
func AsCancelled(ctxErr error) error {
	if ctxErr == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
}

// CheckCancelled returns a non-nil, properly wrapped cancellation error if
// ctx has been cancelled or timed out, else nil. Every suspension point in
// the core calls this before doing provider or limiter work (§5).
func CheckCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return AsCancelled(err)
	}
	return nil
}
