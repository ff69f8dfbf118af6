package globalrank_test

import (
	"testing"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/globalrank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withID(iteration, local, localRank uint32) beam.Candidate {
	return beam.Candidate{
		ID:      beam.CandidateID{Iteration: iteration, Local: local},
		Ranking: &beam.Ranking{Rank: localRank},
	}
}

func TestAssignIteration_Iteration0_SequentialNoFloor(t *testing.T) {
	a := globalrank.New(4, 2)
	candidates := []beam.Candidate{
		withID(0, 0, 1),
		withID(0, 1, 2),
		withID(0, 2, 3),
		withID(0, 3, 4),
		withID(0, 4, 5),
	}

	ranked, survivors := a.AssignIteration(candidates, nil)
	require.Len(t, ranked, 5)
	require.Len(t, survivors, 2)

	for i, c := range ranked {
		require.NotNil(t, c.GlobalRank)
		assert.Equal(t, uint32(i+1), *c.GlobalRank)
		assert.Empty(t, c.GlobalRankNote)
	}

	assert.Equal(t, uint32(0), survivors[0].ID.Local)
	assert.Equal(t, uint32(1), survivors[1].ID.Local)
}

// TestAssignIteration_Refinement_FloorsBelowWorstParent mirrors spec
// scenario 3: parents P2 (local rank 1) and P0 (local rank 2) survived
// iteration 0 with floor = N = 4. Iteration 1 pools them with children and
// ranks C3, C1, P2, P0, C2, C0 in that (already locally-ranked) order.
func TestAssignIteration_Refinement_FloorsBelowWorstParent(t *testing.T) {
	a := globalrank.New(4, 2)

	p2 := withID(0, 2, 1)
	p0 := withID(0, 0, 2)
	a.AssignIteration([]beam.Candidate{p2, p0}, nil)

	c3 := withID(1, 3, 1)
	c1 := withID(1, 1, 2)
	c2 := withID(1, 2, 5)
	c0 := withID(1, 0, 6)

	ranked, survivors := a.AssignIteration([]beam.Candidate{c3, c1, p2, p0, c2, c0}, []beam.Candidate{p2, p0})
	require.Len(t, ranked, 6)

	byLocal := func(id beam.CandidateID) *beam.Candidate {
		for i := range ranked {
			if ranked[i].ID.Equal(id) {
				return &ranked[i]
			}
		}
		t.Fatalf("candidate %s not found in ranked output", id)
		return nil
	}

	assert.Equal(t, uint32(1), *byLocal(c3.ID).GlobalRank)
	assert.Equal(t, uint32(2), *byLocal(c1.ID).GlobalRank)
	assert.Equal(t, uint32(3), *byLocal(p2.ID).GlobalRank)
	assert.Equal(t, uint32(4), *byLocal(p0.ID).GlobalRank)
	assert.Equal(t, uint32(4), *byLocal(c2.ID).GlobalRank)
	assert.Equal(t, uint32(4), *byLocal(c0.ID).GlobalRank)

	assert.Empty(t, byLocal(c3.ID).GlobalRankNote)
	assert.Empty(t, byLocal(p0.ID).GlobalRankNote)
	assert.Equal(t, beam.TiedAtFloor, byLocal(c2.ID).GlobalRankNote)
	assert.Equal(t, beam.TiedAtFloor, byLocal(c0.ID).GlobalRankNote)

	require.Len(t, survivors, 2)
	assert.True(t, survivors[0].ID.Equal(c3.ID))
	assert.True(t, survivors[1].ID.Equal(c1.ID))
}

func TestAssignIteration_NoParentInRanking_FallsBackToSequential(t *testing.T) {
	a := globalrank.New(4, 2)
	parent := withID(0, 9, 1)
	unrelated := []beam.Candidate{withID(1, 0, 1), withID(1, 1, 2)}

	ranked, _ := a.AssignIteration(unrelated, []beam.Candidate{parent})
	require.Len(t, ranked, 2)
	assert.Equal(t, uint32(1), *ranked[0].GlobalRank)
	assert.Equal(t, uint32(2), *ranked[1].GlobalRank)
	assert.Empty(t, ranked[0].GlobalRankNote)
	assert.Empty(t, ranked[1].GlobalRankNote)
}

func TestAllGlobalRanked_DedupesPooledParentByLatestIteration(t *testing.T) {
	a := globalrank.New(2, 1)

	p0 := withID(0, 0, 1)
	other := withID(0, 1, 2)
	a.AssignIteration([]beam.Candidate{p0, other}, nil)

	c0 := withID(1, 0, 1)
	a.AssignIteration([]beam.Candidate{c0, p0}, []beam.Candidate{p0})

	all := a.AllGlobalRanked()

	seen := make(map[string]int)
	for _, c := range all {
		seen[c.ID.String()]++
	}
	assert.Equal(t, 1, seen[p0.ID.String()], "pooled parent must appear exactly once, not once per iteration")
	assert.Equal(t, 1, seen[other.ID.String()])
	assert.Equal(t, 1, seen[c0.ID.String()])

	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, *all[i-1].GlobalRank, *all[i].GlobalRank)
	}
}
