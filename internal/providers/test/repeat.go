package test

import (
	"context"
	"fmt"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/providers"
	"github.com/praetorian-inc/beamforge/pkg/registry"
)

func init() {
	providers.RegisterText("test.Repeat", func(registry.Config) (beam.TextProvider, error) { return &Repeat{}, nil })
	providers.RegisterImage("test.Repeat", func(registry.Config) (beam.ImageProvider, error) { return &Repeat{}, nil })
	providers.RegisterCritique("test.Repeat", func(registry.Config) (beam.CritiqueGenerator, error) { return &Repeat{}, nil })
}

// Repeat is a test double that echoes its input back, optionally with a
// configured prefix, so probes exercising the pipeline can assert on the
// exact prompt text that flowed through it.
type Repeat struct {
	Prefix string
}

// NewRepeat builds a Repeat with the given prefix, for direct use in tests
// that don't go through the registry.
func NewRepeat(prefix string) *Repeat {
	return &Repeat{Prefix: prefix}
}

func (r *Repeat) Expand(_ context.Context, userPrompt string, opts beam.ExpandOptions) (beam.ExpandResult, error) {
	return beam.ExpandResult{RefinedPrompt: fmt.Sprintf("%s%s [%s]", r.Prefix, userPrompt, opts.Dimension)}, nil
}

func (r *Repeat) Refine(_ context.Context, currentPrompt string, opts beam.RefineOptions) (beam.RefineResult, error) {
	return beam.RefineResult{RefinedPrompt: fmt.Sprintf("%s%s <- %s", r.Prefix, currentPrompt, opts.Critique)}, nil
}

func (r *Repeat) Combine(_ context.Context, what, how string) (beam.CombineResult, error) {
	return beam.CombineResult{CombinedPrompt: r.Prefix + what + " " + how}, nil
}

func (r *Repeat) GenerateText(_ context.Context, userMessage string, _ beam.GenerateTextOptions) (string, error) {
	return r.Prefix + userMessage, nil
}

func (r *Repeat) Generate(_ context.Context, prompt string, opts beam.ImageGenOptions) (beam.ImageGenResult, error) {
	return beam.ImageGenResult{Image: beam.Image{URL: "repeat://" + prompt, Metadata: beam.ImageMetadata{Seed: opts.Seed}}}, nil
}

func (r *Repeat) Critique(_ context.Context, _ beam.Feedback, _ beam.PromptPair, combined, userPrompt string, _ beam.CritiqueOptions) (beam.CritiqueResult, error) {
	return beam.CritiqueResult{Critique: fmt.Sprintf("echo: %s / %s", userPrompt, combined)}, nil
}
