package orchestrator_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/config"
	"github.com/praetorian-inc/beamforge/pkg/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seqText struct{ n int }

func (s *seqText) Expand(ctx context.Context, userPrompt string, opts beam.ExpandOptions) (beam.ExpandResult, error) {
	s.n++
	return beam.ExpandResult{RefinedPrompt: fmt.Sprintf("%s/%s-%d", userPrompt, opts.Dimension, s.n)}, nil
}
func (s *seqText) Refine(ctx context.Context, currentPrompt string, opts beam.RefineOptions) (beam.RefineResult, error) {
	return beam.RefineResult{RefinedPrompt: currentPrompt + "+" + opts.Critique}, nil
}
func (s *seqText) Combine(ctx context.Context, what, how string) (beam.CombineResult, error) {
	return beam.CombineResult{CombinedPrompt: what + " " + how}, nil
}
func (s *seqText) GenerateText(ctx context.Context, userMessage string, opts beam.GenerateTextOptions) (string, error) {
	return "", nil
}

type seqImage struct{ n int }

func (s *seqImage) Generate(ctx context.Context, prompt string, opts beam.ImageGenOptions) (beam.ImageGenResult, error) {
	s.n++
	return beam.ImageGenResult{Image: beam.Image{URL: fmt.Sprintf("u%d", s.n)}}, nil
}

// varyingEval scores by how many times the combined prompt was critiqued,
// so later iterations' children score higher and a clear winner emerges.
type varyingEval struct{}

func (varyingEval) Analyze(ctx context.Context, image beam.Image, combinedPrompt string) (beam.AnalyzeResult, error) {
	score := float32(50)
	for i := 0; i < len(combinedPrompt); i++ {
		if combinedPrompt[i] == '+' {
			score += 10
		}
	}
	return beam.AnalyzeResult{AlignmentScore: score, AestheticScore: 5}, nil
}

type stubCritique struct{}

func (stubCritique) Critique(ctx context.Context, feedback beam.Feedback, prompts beam.PromptPair, combined, userPrompt string, opts beam.CritiqueOptions) (beam.CritiqueResult, error) {
	return beam.CritiqueResult{Critique: "sharper"}, nil
}

type noopSink struct{}

func (noopSink) RecordAttempt(ctx context.Context, a beam.AttemptRecord) error { return nil }
func (noopSink) UpdateAttemptWithResults(ctx context.Context, id beam.CandidateID, r beam.AttemptResults, f beam.AttemptFlags) error {
	return nil
}
func (noopSink) MarkFinalWinner(ctx context.Context, w beam.FinalWinner) error { return nil }

func baseConfig() config.Config {
	return config.Config{
		Run:        config.RunConfig{N: 4, M: 2, Iterations: 2, Alpha: 0.7},
		RateLimits: config.RateLimitConfig{LLM: 4, ImageGen: 4, Vision: 4},
	}
}

func TestDriver_Run_ScoreMode_EndToEnd(t *testing.T) {
	cfg := baseConfig()
	providers := orchestrator.Providers{
		Text: &seqText{}, Image: &seqImage{}, Evaluation: varyingEval{}, Critique: stubCritique{}, Sink: noopSink{},
	}

	var iterationsSeen []uint32
	d, err := orchestrator.New(cfg, providers, orchestrator.Callbacks{
		OnIterationComplete: func(iteration uint32, survivors []beam.Candidate) {
			iterationsSeen = append(iterationsSeen, iteration)
			assert.LessOrEqual(t, len(survivors), cfg.Run.M)
		},
	}, nil)
	require.NoError(t, err)

	res, err := d.Run(context.Background(), "a cat in a hat")
	require.NoError(t, err)

	assert.Equal(t, uint32(2), res.Winner.ID.Iteration)
	require.NotNil(t, res.Winner.TotalScore)
	assert.Len(t, res.Finalists, cfg.Run.M)
	assert.Equal(t, []uint32{0, 1, 2}, iterationsSeen)
	assert.NotEmpty(t, res.AllGlobalRanked)
	for i := 1; i < len(res.AllGlobalRanked); i++ {
		assert.GreaterOrEqual(t, *res.AllGlobalRanked[i].GlobalRank, *res.AllGlobalRanked[i-1].GlobalRank)
	}
}

// parentBeatsChildrenEval scores every iteration-0 candidate's combined
// prompt (no "+", since it has never been refined) 95 for the first one
// analyzed and 60 for the rest, and every later-iteration child (its
// combined prompt carries a "+critique" suffix from Refine) 70 - always
// below the rank-1 parent, matching spec.md §8 scenario 2.
type parentBeatsChildrenEval struct {
	mu        sync.Mutex
	bestGiven bool
}

func (e *parentBeatsChildrenEval) Analyze(ctx context.Context, image beam.Image, combinedPrompt string) (beam.AnalyzeResult, error) {
	if strings.Contains(combinedPrompt, "+") {
		return beam.AnalyzeResult{AlignmentScore: 70, AestheticScore: 5}, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.bestGiven {
		e.bestGiven = true
		return beam.AnalyzeResult{AlignmentScore: 95, AestheticScore: 5}, nil
	}
	return beam.AnalyzeResult{AlignmentScore: 60, AestheticScore: 5}, nil
}

// TestDriver_Run_RankOneParentSurvivesRefinement is spec.md §8 scenario 2:
// with parents pooled alongside their children at score-mode ranking, a
// rank-1 iteration-0 parent that beats every iteration-1 child must still
// be the final winner.
func TestDriver_Run_RankOneParentSurvivesRefinement(t *testing.T) {
	cfg := baseConfig()
	cfg.Run.Iterations = 1
	providers := orchestrator.Providers{
		Text: &seqText{}, Image: &seqImage{}, Evaluation: &parentBeatsChildrenEval{}, Critique: stubCritique{}, Sink: noopSink{},
	}

	var iteration0Winner beam.CandidateID
	d, err := orchestrator.New(cfg, providers, orchestrator.Callbacks{
		OnRankingComplete: func(iteration uint32, ranked []beam.Candidate) {
			if iteration == 0 {
				require.NotEmpty(t, ranked)
				iteration0Winner = ranked[0].ID
			}
		},
	}, nil)
	require.NoError(t, err)

	res, err := d.Run(context.Background(), "a cat in a hat")
	require.NoError(t, err)

	assert.Equal(t, uint32(0), res.Winner.ID.Iteration)
	assert.True(t, res.Winner.ID.Equal(iteration0Winner), "the rank-1 iteration-0 parent must remain the final winner")
}

func TestNew_RejectsMissingCritiqueWhenIterationsPositive(t *testing.T) {
	cfg := baseConfig()
	providers := orchestrator.Providers{Text: &seqText{}, Image: &seqImage{}, Evaluation: varyingEval{}, Sink: noopSink{}}

	_, err := orchestrator.New(cfg, providers, orchestrator.Callbacks{}, nil)
	require.Error(t, err)
	var invalid *beam.InvalidConfigError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "providers.critique", invalid.Field)
}

func TestNew_RejectsComparativeWithoutJudge(t *testing.T) {
	cfg := baseConfig()
	cfg.Run.Comparative = true
	providers := orchestrator.Providers{Text: &seqText{}, Image: &seqImage{}, Critique: stubCritique{}, Sink: noopSink{}}

	_, err := orchestrator.New(cfg, providers, orchestrator.Callbacks{}, nil)
	require.Error(t, err)
	var invalid *beam.InvalidConfigError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "providers.judge", invalid.Field)
}

func TestDriver_Run_ZeroIterations_WinnerIsBestOfIteration0(t *testing.T) {
	cfg := baseConfig()
	cfg.Run.Iterations = 0
	providers := orchestrator.Providers{Text: &seqText{}, Image: &seqImage{}, Evaluation: varyingEval{}, Sink: noopSink{}}

	d, err := orchestrator.New(cfg, providers, orchestrator.Callbacks{}, nil)
	require.NoError(t, err)

	res, err := d.Run(context.Background(), "a cat")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), res.Winner.ID.Iteration)
}
