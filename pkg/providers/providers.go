// Package providers holds the global registries capability adapters
// self-register into via init(): one factory registry per provider
// interface instead of a single generator type.
package providers

import (
	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/registry"
)

// Text is the global registry of beam.TextProvider factories.
var Text = registry.New[beam.TextProvider]("text")

// Image is the global registry of beam.ImageProvider factories.
var Image = registry.New[beam.ImageProvider]("image")

// Evaluation is the global registry of beam.EvaluationProvider factories.
var Evaluation = registry.New[beam.EvaluationProvider]("evaluation")

// Judge is the global registry of beam.PairwiseJudge factories.
var Judge = registry.New[beam.PairwiseJudge]("judge")

// Critique is the global registry of beam.CritiqueGenerator factories.
var Critique = registry.New[beam.CritiqueGenerator]("critique")

// RegisterText adds a text provider factory to the global registry.
// Called from init() in provider implementations.
func RegisterText(name string, factory func(registry.Config) (beam.TextProvider, error)) {
	Text.Register(name, factory)
}

// RegisterImage adds an image provider factory to the global registry.
func RegisterImage(name string, factory func(registry.Config) (beam.ImageProvider, error)) {
	Image.Register(name, factory)
}

// RegisterEvaluation adds an evaluation provider factory to the global registry.
func RegisterEvaluation(name string, factory func(registry.Config) (beam.EvaluationProvider, error)) {
	Evaluation.Register(name, factory)
}

// RegisterJudge adds a pairwise judge factory to the global registry.
func RegisterJudge(name string, factory func(registry.Config) (beam.PairwiseJudge, error)) {
	Judge.Register(name, factory)
}

// RegisterCritique adds a critique generator factory to the global registry.
func RegisterCritique(name string, factory func(registry.Config) (beam.CritiqueGenerator, error)) {
	Critique.Register(name, factory)
}
