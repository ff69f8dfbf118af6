package test

import (
	"context"
	"fmt"
	"sync"

	"github.com/praetorian-inc/beamforge/pkg/beam"
)

// Scripted is a test double whose responses are queued up in advance and
// consumed one at a time, in order. It refuses (returns an error) once the
// script is exhausted, generalizing test.Single's "refuse past the
// configured arity" behavior into a richer per-call script instead of a
// single fixed string.
//
// Scripted is not registered with pkg/providers: its script must be built
// programmatically, so it is only usable by tests that construct it
// directly.
type Scripted struct {
	mu sync.Mutex

	combines []beam.CombineResult
	analyses []beam.AnalyzeResult
	compares []beam.CompareResult
	images   []beam.ImageGenResult
}

// NewScripted returns an empty Scripted double; use the With* builders to
// queue responses before handing it to the code under test.
func NewScripted() *Scripted {
	return &Scripted{}
}

func (s *Scripted) WithCombines(results ...beam.CombineResult) *Scripted {
	s.combines = append(s.combines, results...)
	return s
}

func (s *Scripted) WithAnalyses(results ...beam.AnalyzeResult) *Scripted {
	s.analyses = append(s.analyses, results...)
	return s
}

func (s *Scripted) WithCompares(results ...beam.CompareResult) *Scripted {
	s.compares = append(s.compares, results...)
	return s
}

func (s *Scripted) WithImages(results ...beam.ImageGenResult) *Scripted {
	s.images = append(s.images, results...)
	return s
}

func (s *Scripted) Expand(_ context.Context, userPrompt string, opts beam.ExpandOptions) (beam.ExpandResult, error) {
	return beam.ExpandResult{RefinedPrompt: userPrompt}, nil
}

func (s *Scripted) Refine(_ context.Context, currentPrompt string, _ beam.RefineOptions) (beam.RefineResult, error) {
	return beam.RefineResult{RefinedPrompt: currentPrompt}, nil
}

func (s *Scripted) Combine(_ context.Context, what, how string) (beam.CombineResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.combines) == 0 {
		return beam.CombineResult{}, fmt.Errorf("test.Scripted: combine script exhausted (called with %q/%q)", what, how)
	}
	next := s.combines[0]
	s.combines = s.combines[1:]
	return next, nil
}

func (s *Scripted) GenerateText(_ context.Context, userMessage string, _ beam.GenerateTextOptions) (string, error) {
	return userMessage, nil
}

func (s *Scripted) Generate(_ context.Context, _ string, _ beam.ImageGenOptions) (beam.ImageGenResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.images) == 0 {
		return beam.ImageGenResult{}, fmt.Errorf("test.Scripted: image script exhausted")
	}
	next := s.images[0]
	s.images = s.images[1:]
	return next, nil
}

func (s *Scripted) Analyze(_ context.Context, _ beam.Image, _ string) (beam.AnalyzeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.analyses) == 0 {
		return beam.AnalyzeResult{}, fmt.Errorf("test.Scripted: analyze script exhausted")
	}
	next := s.analyses[0]
	s.analyses = s.analyses[1:]
	return next, nil
}

func (s *Scripted) Compare(_ context.Context, _, _ beam.JudgeImage, _ string) (beam.CompareResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.compares) == 0 {
		return beam.CompareResult{}, fmt.Errorf("test.Scripted: compare script exhausted")
	}
	next := s.compares[0]
	s.compares = s.compares[1:]
	return next, nil
}

func (s *Scripted) Critique(_ context.Context, _ beam.Feedback, _ beam.PromptPair, combined, _ string, _ beam.CritiqueOptions) (beam.CritiqueResult, error) {
	return beam.CritiqueResult{Critique: "scripted critique of " + combined}, nil
}
