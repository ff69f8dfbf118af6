// Package rank implements the Ranker (§4.6): either absolute-score sorting
// or pairwise/comparative judging over a comparison graph, selected by
// which capability the orchestrator was configured with.
package rank

import (
	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/scoring"
)

// Result is the outcome of a ranking pass: candidates carrying a populated
// Ranking field, ordered best-first, plus any non-fatal per-pair failures
// encountered along the way (only populated in comparative mode with
// graceful degradation).
type Result struct {
	Ranked     []beam.Candidate
	TokensUsed int
	Errors     []error
}

// RankByScore implements Mode A: sort candidates by TotalScore descending
// (ties broken by ascending CandidateID, §I5/L1) and assign sequential
// ranks. keepTop <= 0 means "keep all".
func RankByScore(candidates []beam.Candidate, keepTop int) Result {
	sorted := scoring.SortByScoreDescending(candidates)
	ranked := make([]beam.Candidate, len(sorted))
	for i, c := range sorted {
		rank := uint32(i + 1)
		c.Ranking = &beam.Ranking{Rank: rank, Reason: "score"}
		ranked[i] = c
	}
	if keepTop > 0 && keepTop < len(ranked) {
		ranked = ranked[:keepTop]
	}
	return Result{Ranked: ranked}
}
