package expand_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/expand"
	"github.com/praetorian-inc/beamforge/pkg/pipeline"
	"github.com/praetorian-inc/beamforge/pkg/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingText struct {
	n int32
}

func (c *countingText) Expand(ctx context.Context, userPrompt string, opts beam.ExpandOptions) (beam.ExpandResult, error) {
	i := atomic.AddInt32(&c.n, 1)
	return beam.ExpandResult{RefinedPrompt: fmt.Sprintf("%s-%s-%d", userPrompt, opts.Dimension, i)}, nil
}
func (c *countingText) Refine(ctx context.Context, currentPrompt string, opts beam.RefineOptions) (beam.RefineResult, error) {
	return beam.RefineResult{RefinedPrompt: currentPrompt + "+refined:" + opts.Critique}, nil
}
func (c *countingText) Combine(ctx context.Context, what, how string) (beam.CombineResult, error) {
	return beam.CombineResult{CombinedPrompt: what + " " + how}, nil
}
func (c *countingText) GenerateText(ctx context.Context, userMessage string, opts beam.GenerateTextOptions) (string, error) {
	return "", nil
}

type stubImage struct{}

func (stubImage) Generate(ctx context.Context, prompt string, opts beam.ImageGenOptions) (beam.ImageGenResult, error) {
	return beam.ImageGenResult{Image: beam.Image{URL: "u-" + prompt}}, nil
}

type stubCritique struct{}

func (stubCritique) Critique(ctx context.Context, feedback beam.Feedback, prompts beam.PromptPair, combined, userPrompt string, opts beam.CritiqueOptions) (beam.CritiqueResult, error) {
	return beam.CritiqueResult{Critique: fmt.Sprintf("improve-%s", opts.Dimension), Recommendation: "tweak"}, nil
}

type noopSink struct{}

func (noopSink) RecordAttempt(ctx context.Context, a beam.AttemptRecord) error { return nil }
func (noopSink) UpdateAttemptWithResults(ctx context.Context, id beam.CandidateID, r beam.AttemptResults, f beam.AttemptFlags) error {
	return nil
}
func (noopSink) MarkFinalWinner(ctx context.Context, w beam.FinalWinner) error { return nil }

func newDeps(text beam.TextProvider, critique beam.CritiqueGenerator) expand.Deps {
	limiter := ratelimit.New(8)
	p := pipeline.New(pipeline.Providers{Text: text, Image: stubImage{}, Sink: noopSink{}}, pipeline.Limiters{Text: limiter, Image: limiter, Vision: limiter}, nil)
	return expand.Deps{Pipeline: p, Text: text, Critique: critique, Limiter: limiter, Alpha: 0.7}
}

func TestInitialExpansion_ProducesNDistinctCandidates(t *testing.T) {
	deps := newDeps(&countingText{}, nil)
	var seen []int
	candidates, err := expand.InitialExpansion(context.Background(), deps, "a cat", 4, func(i int, c *beam.Candidate, err error) {
		require.NoError(t, err)
		seen = append(seen, i)
	})
	require.NoError(t, err)
	assert.Len(t, candidates, 4)
	assert.Len(t, seen, 4)

	locals := map[uint32]bool{}
	for _, c := range candidates {
		locals[c.ID.Local] = true
		assert.Equal(t, uint32(0), c.ID.Iteration)
		assert.NotEmpty(t, c.Combined)
	}
	assert.Len(t, locals, 4)
}

func TestRefinementIteration_ExpansionRatioAndChildIDs(t *testing.T) {
	deps := newDeps(&countingText{}, stubCritique{})
	parentA := beam.Candidate{ID: beam.CandidateID{Iteration: 0, Local: 0}, What: "w0", How: "h0", Combined: "w0 h0", Ranking: &beam.Ranking{Rank: 1}}
	parentB := beam.Candidate{ID: beam.CandidateID{Iteration: 0, Local: 1}, What: "w1", How: "h1", Combined: "w1 h1", Ranking: &beam.Ranking{Rank: 2}}

	children, err := expand.RefinementIteration(context.Background(), deps, "a cat", []beam.Candidate{parentA, parentB}, 1, 6, nil)
	require.NoError(t, err)
	require.Len(t, children, 6) // expansionRatio = 6/2 = 3 per parent

	byLocal := map[uint32]beam.Candidate{}
	for _, c := range children {
		byLocal[c.ID.Local] = c
	}
	for _, local := range []uint32{0, 1, 2} {
		c, ok := byLocal[local]
		require.True(t, ok, "expected child local id %d", local)
		require.NotNil(t, c.ParentID)
		assert.Equal(t, uint32(0), *c.ParentID)
	}
	for _, local := range []uint32{3, 4, 5} {
		c, ok := byLocal[local]
		require.True(t, ok, "expected child local id %d", local)
		require.NotNil(t, c.ParentID)
		assert.Equal(t, uint32(1), *c.ParentID)
	}

	// Iteration 1 is odd: DimensionForIteration must pick How.
	assert.Equal(t, beam.DimensionHow, expand.DimensionForIteration(1))
	assert.Equal(t, beam.DimensionWhat, expand.DimensionForIteration(2))
}
