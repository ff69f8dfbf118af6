package test

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/providers"
	"github.com/praetorian-inc/beamforge/pkg/registry"
)

func init() {
	providers.RegisterText("test.Sequence", func(registry.Config) (beam.TextProvider, error) { return &Sequence{}, nil })
	providers.RegisterImage("test.Sequence", func(registry.Config) (beam.ImageProvider, error) { return &Sequence{}, nil })
	providers.RegisterEvaluation("test.Sequence", func(registry.Config) (beam.EvaluationProvider, error) { return &Sequence{}, nil })
}

// Sequence is a test double that returns a distinct, monotonically
// increasing value on every call, letting a test assert on call order and
// on uniqueness of every candidate that passed through it (no two calls
// ever collide on the same score or prompt, unlike a fixed or random
// double would).
type Sequence struct {
	n int64
}

func (s *Sequence) next() int64 {
	return atomic.AddInt64(&s.n, 1)
}

func (s *Sequence) Expand(_ context.Context, userPrompt string, opts beam.ExpandOptions) (beam.ExpandResult, error) {
	return beam.ExpandResult{RefinedPrompt: fmt.Sprintf("%s-%s-%d", userPrompt, opts.Dimension, s.next())}, nil
}

func (s *Sequence) Refine(_ context.Context, currentPrompt string, _ beam.RefineOptions) (beam.RefineResult, error) {
	return beam.RefineResult{RefinedPrompt: fmt.Sprintf("%s-%d", currentPrompt, s.next())}, nil
}

func (s *Sequence) Combine(_ context.Context, what, how string) (beam.CombineResult, error) {
	return beam.CombineResult{CombinedPrompt: fmt.Sprintf("%s %s #%d", what, how, s.next())}, nil
}

func (s *Sequence) GenerateText(_ context.Context, userMessage string, _ beam.GenerateTextOptions) (string, error) {
	return fmt.Sprintf("%s-%d", userMessage, s.next()), nil
}

func (s *Sequence) Generate(_ context.Context, _ string, _ beam.ImageGenOptions) (beam.ImageGenResult, error) {
	return beam.ImageGenResult{Image: beam.Image{URL: fmt.Sprintf("sequence://%d", s.next())}}, nil
}

func (s *Sequence) Analyze(_ context.Context, _ beam.Image, _ string) (beam.AnalyzeResult, error) {
	n := s.next()
	return beam.AnalyzeResult{AlignmentScore: float32(n % 101), AestheticScore: float32(n % 11)}, nil
}
