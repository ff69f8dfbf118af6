// Package scoring implements the candidate total-score formula (§4.5) and
// its stable tie-break helpers.
package scoring

import (
	"sort"

	"github.com/praetorian-inc/beamforge/pkg/beam"
)

// TotalScore computes alpha*alignment + (1-alpha)*(aesthetic*10) (§4.5, I5,
// L1). Callers are expected to have already validated alpha to [0,1] at
// configuration time; TotalScore does not re-clamp.
func TotalScore(alignment, aesthetic, alpha float32) float32 {
	return alpha*alignment + (1-alpha)*(aesthetic*10)
}

// Apply sets c.TotalScore from c.Evaluation using alpha, returning the
// updated candidate. No-op (returns c unchanged) if c.Evaluation is nil.
func Apply(c beam.Candidate, alpha float32) beam.Candidate {
	if c.Evaluation == nil {
		return c
	}
	score := TotalScore(c.Evaluation.AlignmentScore, c.Evaluation.AestheticScore, alpha)
	c.TotalScore = &score
	return c
}

// SortByScoreDescending sorts candidates by TotalScore descending, breaking
// ties by ascending CandidateID: Iteration first, then Local (L2 stability,
// §4.5 "ties...broken by ascending candidateId"). Candidates with a nil
// TotalScore sort last, ordered among themselves by the same ascending id.
func SortByScoreDescending(candidates []beam.Candidate) []beam.Candidate {
	out := make([]beam.Candidate, len(candidates))
	copy(out, candidates)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalScore == nil && b.TotalScore == nil {
			return idLess(a.ID, b.ID)
		}
		if a.TotalScore == nil {
			return false
		}
		if b.TotalScore == nil {
			return true
		}
		if *a.TotalScore != *b.TotalScore {
			return *a.TotalScore > *b.TotalScore
		}
		return idLess(a.ID, b.ID)
	})
	return out
}

func idLess(a, b beam.CandidateID) bool {
	if a.Iteration != b.Iteration {
		return a.Iteration < b.Iteration
	}
	return a.Local < b.Local
}
