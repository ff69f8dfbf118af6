// Package orchestrator drives the full beam search (§1, §7): INIT ->
// ITER_0 -> REFINE* -> DONE. It wires the candidate pipeline, expansion,
// ranking and global-rank assignment into one run.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/config"
	"github.com/praetorian-inc/beamforge/pkg/expand"
	"github.com/praetorian-inc/beamforge/pkg/globalrank"
	"github.com/praetorian-inc/beamforge/pkg/pipeline"
	"github.com/praetorian-inc/beamforge/pkg/progress"
	"github.com/praetorian-inc/beamforge/pkg/ratelimit"
	"github.com/praetorian-inc/beamforge/pkg/rank"
)

// Providers bundles every capability the driver might need. Evaluation and
// Judge are mutually exclusive: Evaluation selects score-mode ranking,
// Judge selects comparative ranking (§6, §9). Critique is required when
// Run.Iterations > 0.
type Providers struct {
	Text       beam.TextProvider
	Image      beam.ImageProvider
	Evaluation beam.EvaluationProvider
	Judge      beam.PairwiseJudge
	Critique   beam.CritiqueGenerator
	Sink       beam.MetadataSink
}

// Callbacks are invoked as the run progresses, independent of the
// finer-grained progress.Sink event stream threaded through the pipeline.
type Callbacks struct {
	OnCandidateProcessed func(iteration uint32, candidate *beam.Candidate, err error)
	OnIterationComplete  func(iteration uint32, survivors []beam.Candidate)
	OnRankingComplete    func(iteration uint32, ranked []beam.Candidate)
}

// Result is the terminal output of a run.
type Result struct {
	RunID           string
	Winner          beam.Candidate
	Finalists       []beam.Candidate
	AllGlobalRanked []beam.Candidate
}

// Driver runs one beam search to completion.
type Driver struct {
	cfg       config.Config
	providers Providers
	callbacks Callbacks
	sink      progress.Sink
	registry  *ratelimit.Registry
}

// New validates the run configuration against the supplied providers and
// constructs a Driver. cfg itself is assumed already struct/tag-validated
// (config.Config.Validate); this layer checks the provider-capability
// cross-constraints config alone can't express.
func New(cfg config.Config, providers Providers, callbacks Callbacks, sink progress.Sink) (*Driver, error) {
	if providers.Text == nil {
		return nil, &beam.InvalidConfigError{Field: "providers.text", Reason: "a text provider is required"}
	}
	if providers.Image == nil {
		return nil, &beam.InvalidConfigError{Field: "providers.image", Reason: "an image provider is required"}
	}
	if cfg.Run.Comparative {
		if providers.Judge == nil {
			return nil, &beam.InvalidConfigError{Field: "providers.judge", Reason: "run.comparative requires a pairwise judge"}
		}
	} else if providers.Evaluation == nil {
		return nil, &beam.InvalidConfigError{Field: "providers.evaluation", Reason: "score-mode ranking requires an evaluation provider"}
	}
	if cfg.Run.Iterations > 0 && providers.Critique == nil {
		return nil, &beam.InvalidConfigError{Field: "providers.critique", Reason: "run.iterations > 0 requires a critique generator"}
	}
	if cfg.Run.N < 2 {
		return nil, &beam.InvalidConfigError{Field: "run.n", Reason: "must be >= 2"}
	}
	if cfg.Run.M < 1 || cfg.Run.M > cfg.Run.N {
		return nil, &beam.InvalidConfigError{Field: "run.m", Reason: "must be between 1 and run.n"}
	}
	if cfg.Run.Alpha < 0 || cfg.Run.Alpha > 1 {
		return nil, &beam.InvalidConfigError{Field: "run.alpha", Reason: "must be between 0 and 1"}
	}
	if providers.Sink == nil {
		providers.Sink = noopSink{}
	}
	if sink == nil {
		sink = progress.Nil
	}
	return &Driver{cfg: cfg, providers: providers, callbacks: callbacks, sink: sink}, nil
}

// Run executes INIT -> ITER_0 -> REFINE* -> DONE for one user prompt.
func (d *Driver) Run(ctx context.Context, userPrompt string) (Result, error) {
	if err := beam.CheckCancelled(ctx); err != nil {
		return Result{}, err
	}

	runID := uuid.NewString()
	slog.InfoContext(ctx, "beam search started", slog.String("run_id", runID), slog.String("user_prompt", userPrompt))

	limiters := ratelimit.Shared(d.cfg.RateLimits.LLM, d.cfg.RateLimits.ImageGen, d.cfg.RateLimits.Vision)
	d.registry = limiters

	var evalProvider beam.EvaluationProvider
	if !d.cfg.Run.Comparative {
		evalProvider = d.providers.Evaluation
	}
	pipe := pipeline.New(pipeline.Providers{
		Text: d.providers.Text, Image: d.providers.Image, Evaluation: evalProvider, Sink: d.providers.Sink,
	}, pipeline.Limiters{
		Text: limiters.Get(ratelimit.ClassLLM), Image: limiters.Get(ratelimit.ClassImageGen), Vision: limiters.Get(ratelimit.ClassVision),
	}, d.sink)

	expandDeps := expand.Deps{
		Pipeline: pipe, Text: d.providers.Text, Critique: d.providers.Critique,
		Limiter: limiters.Get(ratelimit.ClassLLM), Sink: d.sink, Alpha: float32(d.cfg.Run.Alpha),
		Seed: d.cfg.Run.Seed, Size: d.cfg.Run.Size, Quality: d.cfg.Run.Quality,
	}

	assigner := globalrank.New(d.cfg.Run.N, d.cfg.Run.M)

	candidates, err := expand.InitialExpansion(ctx, expandDeps, userPrompt, d.cfg.Run.N, d.onCandidate(0))
	if err != nil {
		return Result{}, fmt.Errorf("orchestrator: initial expansion: %w", err)
	}

	survivors, err := d.rankAndAdvance(ctx, assigner, 0, candidates, userPrompt, nil, nil)
	if err != nil {
		return Result{}, err
	}

	var graph *rank.Graph
	for iteration := uint32(1); iteration <= uint32(d.cfg.Run.Iterations); iteration++ {
		if err := beam.CheckCancelled(ctx); err != nil {
			return Result{}, err
		}

		children, err := expand.RefinementIteration(ctx, expandDeps, userPrompt, survivors, iteration, d.cfg.Run.N, d.onCandidate(iteration))
		if err != nil {
			return Result{}, fmt.Errorf("orchestrator: refinement iteration %d: %w", iteration, err)
		}

		if d.cfg.Run.Comparative {
			graph = rank.NewGraph()
			ordered := make([]beam.CandidateID, len(survivors))
			for i, s := range survivors {
				ordered[i] = s.ID
			}
			graph.SeedFromPreviousTop(ordered)
		}

		// The invariant "parents are still eligible to win" is enforced at
		// ranking time by pooling the surviving parents with their own
		// children before ranking, rather than ranking children alone.
		parents := survivors
		pooled := make([]beam.Candidate, 0, len(parents)+len(children))
		pooled = append(pooled, parents...)
		pooled = append(pooled, children...)

		survivors, err = d.rankAndAdvance(ctx, assigner, iteration, pooled, userPrompt, graph, parents)
		if err != nil {
			return Result{}, err
		}
	}

	if len(survivors) == 0 {
		return Result{}, beam.ErrAllCandidatesFailed
	}
	winner := survivors[0]

	if err := d.providers.Sink.MarkFinalWinner(ctx, beam.FinalWinner{ID: winner.ID, TotalScore: winner.TotalScore}); err != nil {
		return Result{}, fmt.Errorf("orchestrator: markFinalWinner: %w", err)
	}

	slog.InfoContext(ctx, "beam search finished", slog.String("run_id", runID), slog.String("winner", winner.ID.String()))

	return Result{RunID: runID, Winner: winner, Finalists: survivors, AllGlobalRanked: assigner.AllGlobalRanked()}, nil
}

// rankAndAdvance ranks one iteration's candidates, assigns global ranks,
// and returns the surviving parents for the next iteration. parents is the
// previous iteration's survivors (nil for iteration 0), used by the
// global-rank assigner to locate the worst surviving parent's position.
func (d *Driver) rankAndAdvance(ctx context.Context, assigner *globalrank.Assigner, iteration uint32, candidates []beam.Candidate, userPrompt string, graph *rank.Graph, parents []beam.Candidate) ([]beam.Candidate, error) {
	ranked, err := d.rank(ctx, candidates, userPrompt, graph)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: ranking iteration %d: %w", iteration, err)
	}
	if d.callbacks.OnRankingComplete != nil {
		d.callbacks.OnRankingComplete(iteration, ranked)
	}

	_, survivors := assigner.AssignIteration(ranked, parents)
	if d.callbacks.OnIterationComplete != nil {
		d.callbacks.OnIterationComplete(iteration, survivors)
	}
	return survivors, nil
}

// rank runs score or comparative ranking over the full candidate set and
// merges the resulting Ranking back onto the full candidates (the
// comparative ranker only returns id+image+ranking, §4.6).
func (d *Driver) rank(ctx context.Context, candidates []beam.Candidate, userPrompt string, graph *rank.Graph) ([]beam.Candidate, error) {
	if !d.cfg.Run.Comparative {
		res := rank.RankByScore(candidates, 0)
		return res.Ranked, nil
	}

	images := make([]beam.JudgeImage, 0, len(candidates))
	for _, c := range candidates {
		if c.Image.Usable() {
			images = append(images, beam.JudgeImage{ID: c.ID, Image: c.Image})
		}
	}

	comparative := rank.New(d.providers.Judge, d.registry.Get(ratelimit.ClassVision), d.sink, rank.Options{
		EnsembleSize: d.cfg.Run.EnsembleSize, GracefulDegradation: d.cfg.Run.GracefulDegradation,
	})
	res, err := comparative.Rank(ctx, images, userPrompt, 0, graph)
	if err != nil {
		return nil, err
	}
	return mergeRankings(candidates, res.Ranked), nil
}

func mergeRankings(full []beam.Candidate, ranked []beam.Candidate) []beam.Candidate {
	byID := make(map[string]beam.Candidate, len(full))
	for _, c := range full {
		byID[c.ID.String()] = c
	}
	out := make([]beam.Candidate, 0, len(ranked))
	for _, r := range ranked {
		c := byID[r.ID.String()]
		c.Ranking = r.Ranking
		out = append(out, c)
	}
	return out
}

type noopSink struct{}

func (noopSink) RecordAttempt(ctx context.Context, a beam.AttemptRecord) error { return nil }
func (noopSink) UpdateAttemptWithResults(ctx context.Context, id beam.CandidateID, r beam.AttemptResults, f beam.AttemptFlags) error {
	return nil
}
func (noopSink) MarkFinalWinner(ctx context.Context, w beam.FinalWinner) error { return nil }

func (d *Driver) onCandidate(iteration uint32) func(int, *beam.Candidate, error) {
	if d.callbacks.OnCandidateProcessed == nil {
		return nil
	}
	return func(_ int, c *beam.Candidate, err error) {
		d.callbacks.OnCandidateProcessed(iteration, c, err)
	}
}
