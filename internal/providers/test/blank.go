// Package test provides deterministic provider doubles for exercising the
// orchestrator without a live text/image/vision backend.
package test

import (
	"context"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/providers"
	"github.com/praetorian-inc/beamforge/pkg/registry"
)

func init() {
	providers.RegisterText("test.Blank", func(registry.Config) (beam.TextProvider, error) { return &Blank{}, nil })
	providers.RegisterImage("test.Blank", func(registry.Config) (beam.ImageProvider, error) { return &Blank{}, nil })
	providers.RegisterEvaluation("test.Blank", func(registry.Config) (beam.EvaluationProvider, error) { return &Blank{}, nil })
	providers.RegisterJudge("test.Blank", func(registry.Config) (beam.PairwiseJudge, error) { return &Blank{}, nil })
	providers.RegisterCritique("test.Blank", func(registry.Config) (beam.CritiqueGenerator, error) { return &Blank{}, nil })
}

// Blank is the simplest provider double: every call succeeds and returns
// an empty result, except Generate, which returns a "blank://<candidate id>"
// image URL, and Compare, which always picks image A. Used for testing
// orchestrator wiring without depending on any generation quality.
type Blank struct{}

func (b *Blank) Expand(_ context.Context, _ string, _ beam.ExpandOptions) (beam.ExpandResult, error) {
	return beam.ExpandResult{}, nil
}

func (b *Blank) Refine(_ context.Context, _ string, _ beam.RefineOptions) (beam.RefineResult, error) {
	return beam.RefineResult{}, nil
}

func (b *Blank) Combine(_ context.Context, _, _ string) (beam.CombineResult, error) {
	return beam.CombineResult{}, nil
}

func (b *Blank) GenerateText(_ context.Context, _ string, _ beam.GenerateTextOptions) (string, error) {
	return "", nil
}

func (b *Blank) Generate(_ context.Context, _ string, opts beam.ImageGenOptions) (beam.ImageGenResult, error) {
	return beam.ImageGenResult{Image: beam.Image{URL: "blank://" + opts.CandidateID.String()}}, nil
}

func (b *Blank) Analyze(_ context.Context, _ beam.Image, _ string) (beam.AnalyzeResult, error) {
	return beam.AnalyzeResult{}, nil
}

func (b *Blank) Compare(_ context.Context, _, _ beam.JudgeImage, _ string) (beam.CompareResult, error) {
	return beam.CompareResult{Winner: beam.WinnerA}, nil
}

func (b *Blank) Critique(_ context.Context, _ beam.Feedback, _ beam.PromptPair, _, _ string, _ beam.CritiqueOptions) (beam.CritiqueResult, error) {
	return beam.CritiqueResult{}, nil
}
