package test

import (
	"context"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/providers"
	"github.com/praetorian-inc/beamforge/pkg/registry"
)

func init() {
	providers.RegisterEvaluation("test.Fixed", func(cfg registry.Config) (beam.EvaluationProvider, error) {
		return newFixedFromConfig(cfg), nil
	})
	providers.RegisterJudge("test.Fixed", func(registry.Config) (beam.PairwiseJudge, error) { return &Fixed{}, nil })
}

// Fixed is a test double that always returns the same score / winner,
// useful for asserting that a fixed ranking order propagates correctly
// through the ranker and global-rank assigner without depending on
// generation-order nondeterminism.
type Fixed struct {
	AlignmentScore float32
	AestheticScore float32
	AlwaysWinner   beam.Winner
}

func newFixedFromConfig(cfg registry.Config) *Fixed {
	f := &Fixed{AlignmentScore: 50, AestheticScore: 5, AlwaysWinner: beam.WinnerA}
	if v, ok := cfg["alignment_score"].(float64); ok {
		f.AlignmentScore = float32(v)
	}
	if v, ok := cfg["aesthetic_score"].(float64); ok {
		f.AestheticScore = float32(v)
	}
	return f
}

func (f *Fixed) Analyze(_ context.Context, _ beam.Image, _ string) (beam.AnalyzeResult, error) {
	return beam.AnalyzeResult{AlignmentScore: f.AlignmentScore, AestheticScore: f.AestheticScore}, nil
}

func (f *Fixed) Compare(_ context.Context, _, _ beam.JudgeImage, _ string) (beam.CompareResult, error) {
	winner := f.AlwaysWinner
	if winner == "" {
		winner = beam.WinnerA
	}
	return beam.CompareResult{Winner: winner, Reason: "fixed"}, nil
}
