package rank_test

import (
	"context"
	"errors"
	"testing"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/ratelimit"
	"github.com/praetorian-inc/beamforge/pkg/rank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// preferLowerLocal judges in favor of the candidate with the smaller Local
// id, recording every call it actually receives so tests can assert P4
// (transitively inferred pairs never reach the judge).
type preferLowerLocal struct {
	calls [][2]beam.CandidateID
	err   error
}

func (j *preferLowerLocal) Compare(ctx context.Context, a, b beam.JudgeImage, userPrompt string) (beam.CompareResult, error) {
	j.calls = append(j.calls, [2]beam.CandidateID{a.ID, b.ID})
	if j.err != nil {
		return beam.CompareResult{}, j.err
	}
	if a.ID.Local < b.ID.Local {
		return beam.CompareResult{Winner: beam.WinnerA, TokensUsed: 10}, nil
	}
	return beam.CompareResult{Winner: beam.WinnerB, TokensUsed: 10}, nil
}

func imgs(n int) []beam.JudgeImage {
	out := make([]beam.JudgeImage, n)
	for i := 0; i < n; i++ {
		out[i] = beam.JudgeImage{ID: beam.CandidateID{Iteration: 0, Local: uint32(i)}}
	}
	return out
}

func TestComparativeRanker_AllPairs_OrdersByWins(t *testing.T) {
	judge := &preferLowerLocal{}
	r := rank.New(judge, ratelimit.New(4), nil, rank.Options{})

	res, err := r.Rank(context.Background(), imgs(4), "a cat", 0, nil)
	require.NoError(t, err)
	require.Len(t, res.Ranked, 4)
	assert.Equal(t, uint32(0), res.Ranked[0].ID.Local)
	assert.Equal(t, uint32(1), res.Ranked[0].Ranking.Rank)
	assert.Equal(t, uint32(3), res.Ranked[3].ID.Local)
}

func TestComparativeRanker_TransitiveInferenceSkipsCalls(t *testing.T) {
	// Seed 0>1 and 1>2 so 0>2 is inferable without a call (P4).
	graph := rank.NewGraph()
	graph.SeedFromPreviousTop([]beam.CandidateID{
		{Iteration: 0, Local: 0}, {Iteration: 0, Local: 1}, {Iteration: 0, Local: 2},
	})
	judge := &preferLowerLocal{}
	r := rank.New(judge, ratelimit.New(4), nil, rank.Options{})

	res, err := r.Rank(context.Background(), imgs(3), "a cat", 0, graph)
	require.NoError(t, err)
	require.Len(t, res.Ranked, 3)
	assert.Empty(t, judge.calls, "every pair among a fully seeded ordering should be inferred, not compared")
	assert.Equal(t, uint32(0), res.Ranked[0].ID.Local)
	assert.Equal(t, uint32(2), res.Ranked[2].ID.Local)
}

func TestComparativeRanker_GracefulDegradation_RecordsFailureAndContinues(t *testing.T) {
	judge := &preferLowerLocal{err: errors.New("judge unavailable")}
	r := rank.New(judge, ratelimit.New(4), nil, rank.Options{GracefulDegradation: true})

	res, err := r.Rank(context.Background(), imgs(3), "a cat", 0, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Errors)
	var pairErr *beam.RankerPairFailureError
	assert.ErrorAs(t, res.Errors[0], &pairErr)
}

func TestComparativeRanker_NoGracefulDegradation_AbortsOnFailure(t *testing.T) {
	judge := &preferLowerLocal{err: errors.New("judge unavailable")}
	r := rank.New(judge, ratelimit.New(4), nil, rank.Options{GracefulDegradation: false})

	_, err := r.Rank(context.Background(), imgs(3), "a cat", 0, nil)
	require.Error(t, err)
}

func TestComparativeRanker_Tournament_UsedAboveThreshold(t *testing.T) {
	judge := &preferLowerLocal{}
	r := rank.New(judge, ratelimit.New(8), nil, rank.Options{})

	res, err := r.Rank(context.Background(), imgs(9), "a cat", 3, nil)
	require.NoError(t, err)
	require.Len(t, res.Ranked, 3)
	assert.Equal(t, uint32(0), res.Ranked[0].ID.Local)
	assert.Less(t, len(judge.calls), 9*8/2, "tournament must issue fewer calls than all-pairs would")
}
