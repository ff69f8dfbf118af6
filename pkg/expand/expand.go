// Package expand implements the two fan-out phases of the beam search
// (§4.4): the Initial Expansion that seeds iteration 0 from a single user
// prompt, and the Refinement Iteration that grows each surviving parent
// into expansionRatio children along one alternating prompt dimension.
package expand

import (
	"context"
	"fmt"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/pipeline"
	"github.com/praetorian-inc/beamforge/pkg/progress"
	"github.com/praetorian-inc/beamforge/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

// Deps bundles the capabilities expansion needs beyond the candidate
// pipeline itself.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Text     beam.TextProvider
	Critique beam.CritiqueGenerator // required only for refinement iterations
	Limiter  *ratelimit.Limiter     // text limiter, shared with the pipeline's
	Sink     progress.Sink
	Alpha    float32
	Seed     int64
	Size     string
	Quality  string
}

// DimensionForIteration alternates which half of the prompt a refinement
// iteration targets: iteration 1 refines How, iteration 2 refines What,
// and so on. Iteration 0 has no dimension (the initial expansion seeds
// both halves at once).
func DimensionForIteration(iteration uint32) beam.Dimension {
	if iteration%2 == 1 {
		return beam.DimensionHow
	}
	return beam.DimensionWhat
}

// InitialExpansion runs §4.4's iteration-0 fan-out: n parallel candidate
// pipelines, each seeded by independently expanding both prompt halves
// from userPrompt. onCandidate, if non-nil, is invoked as each pipeline
// finishes (success or failure) for incremental progress reporting; a
// failure yields a nil error slot rather than aborting the whole fan-out.
func InitialExpansion(ctx context.Context, deps Deps, userPrompt string, n int, onCandidate func(int, *beam.Candidate, error)) ([]beam.Candidate, error) {
	out := make([]*beam.Candidate, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			c, err := runInitialCandidate(gctx, deps, userPrompt, uint32(i))
			if err != nil {
				if cancelErr := beam.CheckCancelled(gctx); cancelErr != nil {
					if onCandidate != nil {
						onCandidate(i, nil, cancelErr)
					}
					return cancelErr
				}
				if onCandidate != nil {
					onCandidate(i, nil, err)
				}
				return nil
			}
			out[i] = &c
			if onCandidate != nil {
				onCandidate(i, &c, nil)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]beam.Candidate, 0, n)
	for _, c := range out {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	if len(candidates) == 0 {
		return nil, beam.ErrAllCandidatesFailed
	}
	return candidates, nil
}

func runInitialCandidate(ctx context.Context, deps Deps, userPrompt string, local uint32) (beam.Candidate, error) {
	var whatRes, howRes beam.ExpandResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := ratelimit.Execute(gctx, deps.Limiter, func(ctx context.Context) (beam.ExpandResult, error) {
			return deps.Text.Expand(ctx, userPrompt, beam.ExpandOptions{Dimension: beam.DimensionWhat})
		})
		if err != nil {
			return fmt.Errorf("expand: initial what-expansion for c%d: %w", local, err)
		}
		whatRes = res
		return nil
	})
	g.Go(func() error {
		res, err := ratelimit.Execute(gctx, deps.Limiter, func(ctx context.Context) (beam.ExpandResult, error) {
			return deps.Text.Expand(ctx, userPrompt, beam.ExpandOptions{Dimension: beam.DimensionHow})
		})
		if err != nil {
			return fmt.Errorf("expand: initial how-expansion for c%d: %w", local, err)
		}
		howRes = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return beam.Candidate{}, err
	}

	return deps.Pipeline.Run(ctx, pipeline.Options{
		ID:    beam.CandidateID{Iteration: 0, Local: local},
		What:  whatRes.RefinedPrompt,
		How:   howRes.RefinedPrompt,
		Alpha: deps.Alpha,
		Seed:  deps.Seed,
		Size:  deps.Size, Quality: deps.Quality,
	})
}

// RefinementIteration runs §4.4's iteration>=1 fan-out: for each surviving
// parent, generate one critique, then expand it into expansionRatio = n/m
// children along DimensionForIteration(iteration), each running through
// the candidate pipeline. A child's Local id is
// parentIndex*expansionRatio + childIndex (§4.4 step 3).
func RefinementIteration(ctx context.Context, deps Deps, userPrompt string, parents []beam.Candidate, iteration uint32, n int, onCandidate func(int, *beam.Candidate, error)) ([]beam.Candidate, error) {
	if len(parents) == 0 {
		return nil, fmt.Errorf("expand: refinement iteration %d has no parents", iteration)
	}
	expansionRatio := n / len(parents)
	if expansionRatio < 1 {
		expansionRatio = 1
	}
	dimension := DimensionForIteration(iteration)

	total := len(parents) * expansionRatio
	out := make([]*beam.Candidate, total)

	g, gctx := errgroup.WithContext(ctx)
	for pIdx, parent := range parents {
		pIdx, parent := pIdx, parent
		g.Go(func() error {
			critique, err := refineCritique(gctx, deps, parent, userPrompt, dimension, iteration)
			if err != nil {
				if cancelErr := beam.CheckCancelled(gctx); cancelErr != nil {
					return cancelErr
				}
				// The whole parent's expansion fails if its critique fails:
				// there is nothing to refine children from.
				for c := 0; c < expansionRatio; c++ {
					idx := pIdx*expansionRatio + c
					if onCandidate != nil {
						onCandidate(idx, nil, err)
					}
				}
				return nil
			}

			cg, cgctx := errgroup.WithContext(gctx)
			for c := 0; c < expansionRatio; c++ {
				c := c
				idx := pIdx*expansionRatio + c
				parentLocal := parent.ID.Local
				cg.Go(func() error {
					child, err := runRefinedChild(cgctx, deps, parent, userPrompt, dimension, critique, iteration, uint32(idx), parentLocal)
					if err != nil {
						if cancelErr := beam.CheckCancelled(cgctx); cancelErr != nil {
							return cancelErr
						}
						if onCandidate != nil {
							onCandidate(idx, nil, err)
						}
						return nil
					}
					out[idx] = &child
					if onCandidate != nil {
						onCandidate(idx, &child, nil)
					}
					return nil
				})
			}
			return cg.Wait()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]beam.Candidate, 0, total)
	for _, c := range out {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	if len(candidates) == 0 {
		return nil, beam.ErrAllCandidatesFailed
	}
	return candidates, nil
}

func refineCritique(ctx context.Context, deps Deps, parent beam.Candidate, userPrompt string, dimension beam.Dimension, iteration uint32) (beam.CritiqueResult, error) {
	feedback := beam.Feedback{Ranking: parent.Ranking, Evaluation: parent.Evaluation}
	return ratelimit.Execute(ctx, deps.Limiter, func(ctx context.Context) (beam.CritiqueResult, error) {
		return deps.Critique.Critique(ctx, feedback, parent.Prompts(), parent.Combined, userPrompt, beam.CritiqueOptions{
			Dimension: dimension, Iteration: iteration,
		})
	})
}

func runRefinedChild(ctx context.Context, deps Deps, parent beam.Candidate, userPrompt string, dimension beam.Dimension, critique beam.CritiqueResult, iteration, local, parentLocal uint32) (beam.Candidate, error) {
	currentPrompt := parent.What
	if dimension == beam.DimensionHow {
		currentPrompt = parent.How
	}

	refineRes, err := ratelimit.Execute(ctx, deps.Limiter, func(ctx context.Context) (beam.RefineResult, error) {
		return deps.Text.Refine(ctx, currentPrompt, beam.RefineOptions{
			Dimension: dimension, Critique: critique.Critique, UserPrompt: userPrompt,
		})
	})
	if err != nil {
		return beam.Candidate{}, fmt.Errorf("expand: refine for c%d (parent %d): %w", local, parentLocal, err)
	}

	what, how := parent.What, parent.How
	if dimension == beam.DimensionWhat {
		what = refineRes.RefinedPrompt
	} else {
		how = refineRes.RefinedPrompt
	}

	parentLocalCopy := parentLocal
	return deps.Pipeline.Run(ctx, pipeline.Options{
		ID:        beam.CandidateID{Iteration: iteration, Local: local},
		ParentID:  &parentLocalCopy,
		Dimension: dimension,
		What:      what,
		How:       how,
		Alpha:     deps.Alpha,
		Seed:      deps.Seed,
		Size:      deps.Size, Quality: deps.Quality,
	})
}
