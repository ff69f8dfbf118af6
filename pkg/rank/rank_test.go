package rank_test

import (
	"testing"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/rank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(v float32) *float32 { return &v }

func TestRankByScore_OrdersDescendingAndBreaksTiesByID(t *testing.T) {
	candidates := []beam.Candidate{
		{ID: beam.CandidateID{Iteration: 0, Local: 2}, TotalScore: score(50)},
		{ID: beam.CandidateID{Iteration: 0, Local: 0}, TotalScore: score(80)},
		{ID: beam.CandidateID{Iteration: 0, Local: 1}, TotalScore: score(80)},
	}
	res := rank.RankByScore(candidates, 0)
	require.Len(t, res.Ranked, 3)
	assert.Equal(t, uint32(0), res.Ranked[0].ID.Local)
	assert.Equal(t, uint32(1), res.Ranked[0].Ranking.Rank)
	assert.Equal(t, uint32(1), res.Ranked[1].ID.Local)
	assert.Equal(t, uint32(2), res.Ranked[1].Ranking.Rank)
	assert.Equal(t, uint32(2), res.Ranked[2].ID.Local)
	assert.Equal(t, uint32(3), res.Ranked[2].Ranking.Rank)
}

func TestRankByScore_KeepTopTrims(t *testing.T) {
	candidates := []beam.Candidate{
		{ID: beam.CandidateID{Local: 0}, TotalScore: score(10)},
		{ID: beam.CandidateID{Local: 1}, TotalScore: score(20)},
		{ID: beam.CandidateID{Local: 2}, TotalScore: score(30)},
	}
	res := rank.RankByScore(candidates, 2)
	assert.Len(t, res.Ranked, 2)
	assert.Equal(t, uint32(2), res.Ranked[0].ID.Local)
}
