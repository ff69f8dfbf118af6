// Package metadatasink implements the abstract beam.MetadataSink capability
// (§6.6): a defensive write protocol that records an attempt's identity
// before any risky provider call, then updates it with results after
// success, so that failures remain observable (§4.2 step 2, P6).
package metadatasink

import (
	"context"

	"github.com/praetorian-inc/beamforge/pkg/beam"
)

// NoOp is a MetadataSink that discards every write. Acceptable per §6.6 for
// callers that don't need attempt persistence.
type NoOp struct{}

var _ beam.MetadataSink = NoOp{}

// RecordAttempt implements beam.MetadataSink.
func (NoOp) RecordAttempt(ctx context.Context, attempt beam.AttemptRecord) error { return nil }

// UpdateAttemptWithResults implements beam.MetadataSink.
func (NoOp) UpdateAttemptWithResults(ctx context.Context, id beam.CandidateID, results beam.AttemptResults, flags beam.AttemptFlags) error {
	return nil
}

// MarkFinalWinner implements beam.MetadataSink.
func (NoOp) MarkFinalWinner(ctx context.Context, winner beam.FinalWinner) error { return nil }
