// Package pipeline implements the per-candidate Candidate Pipeline (§4.2):
// combine -> defensive record -> image generation with safety retry ->
// optional evaluation -> defensive update.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/progress"
	"github.com/praetorian-inc/beamforge/pkg/ratelimit"
	"github.com/praetorian-inc/beamforge/pkg/scoring"
)

// Providers bundles the capabilities the pipeline needs. Evaluation is nil
// when comparative ranking is active (§4.2 step 4, §9 "skipVisionAnalysis
// is derived from which is supplied").
type Providers struct {
	Text       beam.TextProvider
	Image      beam.ImageProvider
	Evaluation beam.EvaluationProvider // optional
	Sink       beam.MetadataSink
}

// Limiters bundles the three rate limiters the pipeline acquires permits
// from.
type Limiters struct {
	Text  *ratelimit.Limiter
	Image *ratelimit.Limiter
	Vision *ratelimit.Limiter
}

// Options configures a single Run call.
type Options struct {
	ID        beam.CandidateID
	ParentID  *uint32
	Dimension beam.Dimension
	What, How string
	Alpha     float32

	// Seed/Size/Quality are passed through to the image provider's options
	// bag unmodified (§6.2).
	Seed    int64
	Size    string
	Quality string
}

// Pipeline runs the candidate pipeline described in §4.2.
type Pipeline struct {
	providers Providers
	limiters  Limiters
	sink      progress.Sink
}

// New constructs a Pipeline. sink may be progress.Nil.
func New(providers Providers, limiters Limiters, sink progress.Sink) *Pipeline {
	if sink == nil {
		sink = progress.Nil
	}
	return &Pipeline{providers: providers, limiters: limiters, sink: sink}
}

// Run executes the pipeline for one candidate and returns the fully
// populated Candidate. It never returns a (*beam.ProviderTransientError)
// wrapped in a way the caller must unwrap specially - callers that want to
// convert a single-candidate failure into a null slot should check
// !errors.Is(err, beam.ErrCancelled) and proceed (§4.2, §7).
func (p *Pipeline) Run(ctx context.Context, opts Options) (beam.Candidate, error) {
	if err := beam.CheckCancelled(ctx); err != nil {
		return beam.Candidate{}, err
	}

	p.publish(progress.Event{Stage: progress.StageCombine, Status: progress.StatusStarting, CandidateID: &opts.ID, Message: "combining prompt"})

	combineRes, err := ratelimit.Execute(ctx, p.limiters.Text, func(ctx context.Context) (beam.CombineResult, error) {
		return p.providers.Text.Combine(ctx, opts.What, opts.How)
	})
	if err != nil {
		p.publishError(opts.ID, progress.StageCombine, err)
		return beam.Candidate{}, p.wrapTransient(opts.ID, "combine", err)
	}
	p.publish(progress.Event{Stage: progress.StageCombine, Status: progress.StatusComplete, CandidateID: &opts.ID, Message: "combined prompt"})

	// Defensive attempt record, before any image call (§4.2 step 2, P6).
	if err := p.providers.Sink.RecordAttempt(ctx, beam.AttemptRecord{
		ID: opts.ID, ParentID: opts.ParentID, Dimension: opts.Dimension, What: opts.What, How: opts.How,
	}); err != nil {
		return beam.Candidate{}, fmt.Errorf("pipeline: recordAttempt failed for %s: %w", opts.ID, err)
	}

	image, safetyRephrased, err := p.generateWithSafetyRetry(ctx, opts, combineRes.CombinedPrompt)
	if err != nil {
		return beam.Candidate{}, err
	}

	var eval *beam.Evaluation
	var totalScore *float32
	if p.providers.Evaluation != nil {
		eval, totalScore, err = p.evaluate(ctx, opts, combineRes.CombinedPrompt, image)
		if err != nil {
			return beam.Candidate{}, err
		}
	}

	if err := p.providers.Sink.UpdateAttemptWithResults(ctx, opts.ID, beam.AttemptResults{
		Combined: combineRes.CombinedPrompt, Image: image, Evaluation: eval, TotalScore: totalScore,
	}, beam.AttemptFlags{SafetyRephrased: safetyRephrased}); err != nil {
		return beam.Candidate{}, fmt.Errorf("pipeline: updateAttemptWithResults failed for %s: %w", opts.ID, err)
	}

	return beam.Candidate{
		ID: opts.ID, ParentID: opts.ParentID, Dimension: opts.Dimension,
		What: opts.What, How: opts.How, Combined: combineRes.CombinedPrompt,
		Image: image, Evaluation: eval, TotalScore: totalScore,
	}, nil
}

func (p *Pipeline) evaluate(ctx context.Context, opts Options, combined string, image beam.Image) (*beam.Evaluation, *float32, error) {
	p.publish(progress.Event{Stage: progress.StageVision, Status: progress.StatusStarting, CandidateID: &opts.ID, Message: "analyzing image"})

	res, err := ratelimit.Execute(ctx, p.limiters.Vision, func(ctx context.Context) (beam.AnalyzeResult, error) {
		return p.providers.Evaluation.Analyze(ctx, image, combined)
	})
	if err != nil {
		p.publishError(opts.ID, progress.StageVision, err)
		return nil, nil, p.wrapTransient(opts.ID, "vision", err)
	}

	eval := &beam.Evaluation{
		AlignmentScore: res.AlignmentScore,
		AestheticScore: res.AestheticScore,
		Analysis:       res.Analysis,
		TokensUsed:     res.Metadata.TokensUsed,
	}
	score := scoring.TotalScore(eval.AlignmentScore, eval.AestheticScore, opts.Alpha)

	align, aesthetic := eval.AlignmentScore, eval.AestheticScore
	p.publish(progress.Event{
		Stage: progress.StageVision, Status: progress.StatusComplete, CandidateID: &opts.ID,
		Alignment: &align, Aesthetic: &aesthetic, TotalScore: &score, Message: "image analyzed",
	})

	return eval, &score, nil
}

// wrapTransient converts a provider error into a ProviderTransientError
// (§7), except cancellation, which always propagates verbatim and is never
// swallowed or reclassified.
func (p *Pipeline) wrapTransient(id beam.CandidateID, stage string, err error) error {
	if errors.Is(err, beam.ErrCancelled) {
		return err
	}
	return &beam.ProviderTransientError{CandidateID: id, Stage: stage, Err: err}
}

func (p *Pipeline) publish(e progress.Event) { p.sink.Publish(e) }

func (p *Pipeline) publishError(id beam.CandidateID, stage progress.Stage, err error) {
	p.sink.Publish(progress.Event{Stage: stage, Status: progress.StatusFailed, CandidateID: &id, Err: err, Message: err.Error()})
}
