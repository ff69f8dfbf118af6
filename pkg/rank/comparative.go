package rank

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/progress"
	"github.com/praetorian-inc/beamforge/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

// allPairsThreshold is the |images| cutoff below which every pair is
// compared directly (§4.6 step 3); above it a tournament bracket is used to
// bound the number of judge calls.
const allPairsThreshold = 8

// Options configures a ComparativeRanker.
type Options struct {
	// EnsembleSize is how many independent judge calls decide each pair.
	// 0 or 1 means a single call per pair; >1 takes a majority vote.
	EnsembleSize int
	// GracefulDegradation, when true, records a RankerPairFailureError and
	// leaves the pair undecided instead of aborting the whole ranking pass.
	GracefulDegradation bool
}

// ComparativeRanker implements Mode B: pairwise judging over a transitive
// comparison graph (§4.6).
type ComparativeRanker struct {
	Judge   beam.PairwiseJudge
	Limiter *ratelimit.Limiter
	Sink    progress.Sink
	Opts    Options
}

// New constructs a ComparativeRanker. sink may be nil (treated as progress.Nil).
func New(judge beam.PairwiseJudge, limiter *ratelimit.Limiter, sink progress.Sink, opts Options) *ComparativeRanker {
	if sink == nil {
		sink = progress.Nil
	}
	return &ComparativeRanker{Judge: judge, Limiter: limiter, Sink: sink, Opts: opts}
}

type pair struct{ a, b beam.CandidateID }

// Rank compares the given images pairwise, seeding known outcomes from
// graph (which the caller has typically pre-seeded via
// Graph.SeedFromPreviousTop, §4.6 step 1), and returns a best-first
// ranking. graph may be nil, in which case a fresh one is used.
func (r *ComparativeRanker) Rank(ctx context.Context, images []beam.JudgeImage, userPrompt string, keepTop int, graph *Graph) (Result, error) {
	if graph == nil {
		graph = NewGraph()
	}
	if err := beam.CheckCancelled(ctx); err != nil {
		return Result{}, err
	}

	byID := make(map[string]beam.JudgeImage, len(images))
	ids := make([]beam.CandidateID, 0, len(images))
	for _, img := range images {
		byID[img.ID.String()] = img
		ids = append(ids, img.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return idLess(ids[i], ids[j]) })

	var (
		tokens int
		errs   []error
		err    error
	)
	if len(ids) <= allPairsThreshold {
		tokens, errs, err = r.allPairs(ctx, byID, ids, userPrompt, graph)
	} else {
		tokens, errs, err = r.tournament(ctx, byID, ids, userPrompt, graph)
	}
	if err != nil {
		return Result{}, err
	}

	sort.SliceStable(ids, func(i, j int) bool {
		wi, wj := graph.Wins(ids[i]), graph.Wins(ids[j])
		if wi != wj {
			return wi > wj
		}
		return idLess(ids[i], ids[j])
	})

	ranked := make([]beam.Candidate, len(ids))
	for i, id := range ids {
		img := byID[id.String()]
		ranked[i] = beam.Candidate{
			ID:    id,
			Image: img.Image,
			Ranking: &beam.Ranking{
				Rank:   uint32(i + 1),
				Reason: "pairwise",
				Wins:   uint32(graph.Wins(id)),
			},
		}
	}
	if keepTop > 0 && keepTop < len(ranked) {
		ranked = ranked[:keepTop]
	}
	return Result{Ranked: ranked, TokensUsed: tokens, Errors: errs}, nil
}

// allPairs issues comparisons in rounds: every round compares all
// currently-undecided pairs in parallel, then the graph (and its
// transitive closure) is updated before the next round is computed, so a
// pair resolved transitively this round is never asked about (P4).
func (r *ComparativeRanker) allPairs(ctx context.Context, byID map[string]beam.JudgeImage, ids []beam.CandidateID, userPrompt string, graph *Graph) (int, []error, error) {
	total := len(ids) * (len(ids) - 1) / 2
	completed := 0
	tokens := 0
	var errsOut []error

	for {
		var pending []pair
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				if _, ok := graph.Decided(ids[i], ids[j]); !ok {
					pending = append(pending, pair{ids[i], ids[j]})
				}
			}
		}
		if len(pending) == 0 {
			break
		}

		type outcome struct {
			p      pair
			winner beam.CandidateID
			tokens int
			err    error
		}
		results := make([]outcome, len(pending))

		g, gctx := errgroup.WithContext(ctx)
		for idx, pr := range pending {
			idx, pr := idx, pr
			g.Go(func() error {
				winner, tok, cerr := r.comparePair(gctx, byID[pr.a.String()], byID[pr.b.String()], userPrompt)
				results[idx] = outcome{p: pr, winner: winner, tokens: tok, err: cerr}
				return nil
			})
		}
		_ = g.Wait()

		for _, res := range results {
			completed++
			if res.err != nil {
				if !r.Opts.GracefulDegradation {
					return tokens, errsOut, res.err
				}
				errsOut = append(errsOut, &beam.RankerPairFailureError{A: res.p.a, B: res.p.b, Err: res.err})
				r.publish(progress.Event{Stage: progress.StageRanking, Status: progress.StatusFailed, CandidateA: &res.p.a, CandidateB: &res.p.b, Progress: &progress.Progress{Completed: completed, Total: total}, Err: res.err})
				continue
			}
			loser := res.p.a
			if res.winner == res.p.a {
				loser = res.p.b
			}
			graph.Add(res.winner, loser)
			tokens += res.tokens
			r.publish(progress.Event{Stage: progress.StageRanking, Status: progress.StatusComplete, CandidateA: &res.p.a, CandidateB: &res.p.b, Progress: &progress.Progress{Completed: completed, Total: total}})
		}
	}
	return tokens, errsOut, nil
}

// tournament runs a single-elimination bracket to bound judge calls when
// the candidate pool is large (§4.6 step 3). A bye (odd participant count)
// advances without a comparison. Final ordering still comes from the
// resulting (and transitively closed) graph, not bracket position alone.
func (r *ComparativeRanker) tournament(ctx context.Context, byID map[string]beam.JudgeImage, ids []beam.CandidateID, userPrompt string, graph *Graph) (int, []error, error) {
	round := append([]beam.CandidateID(nil), ids...)
	tokens := 0
	var errsOut []error

	for len(round) > 1 {
		var next []beam.CandidateID
		for i := 0; i+1 < len(round); i += 2 {
			a, b := round[i], round[i+1]
			if w, ok := graph.Decided(a, b); ok {
				next = append(next, w)
				r.publish(progress.Event{Stage: progress.StageRanking, Status: progress.StatusComplete, CandidateA: &a, CandidateB: &b, Inferred: true})
				continue
			}
			winner, tok, err := r.comparePair(ctx, byID[a.String()], byID[b.String()], userPrompt)
			if err != nil {
				if !r.Opts.GracefulDegradation {
					return tokens, errsOut, err
				}
				errsOut = append(errsOut, &beam.RankerPairFailureError{A: a, B: b, Err: err})
				r.publish(progress.Event{Stage: progress.StageRanking, Status: progress.StatusFailed, CandidateA: &a, CandidateB: &b, Err: err})
				// Graceful degradation with no outcome: keep both, prefer
				// ascending id so the bracket still advances deterministically.
				winner = a
				if idLess(b, a) {
					winner = b
				}
				next = append(next, winner)
				continue
			}
			loser := a
			if winner == a {
				loser = b
			}
			graph.Add(winner, loser)
			tokens += tok
			r.publish(progress.Event{Stage: progress.StageRanking, Status: progress.StatusComplete, CandidateA: &a, CandidateB: &b})
			next = append(next, winner)
		}
		if len(round)%2 == 1 {
			next = append(next, round[len(round)-1]) // bye
		}
		round = next
	}
	return tokens, errsOut, nil
}

// comparePair runs one decision for the (a, b) pair, taking an ensemble
// majority vote when Opts.EnsembleSize > 1.
func (r *ComparativeRanker) comparePair(ctx context.Context, a, b beam.JudgeImage, userPrompt string) (beam.CandidateID, int, error) {
	n := r.Opts.EnsembleSize
	if n < 1 {
		n = 1
	}
	if n == 1 {
		res, err := ratelimit.Execute(ctx, r.Limiter, func(ctx context.Context) (beam.CompareResult, error) {
			return r.Judge.Compare(ctx, a, b, userPrompt)
		})
		if err != nil {
			return beam.CandidateID{}, 0, err
		}
		return resolveWinner(a, b, res.Winner), res.TokensUsed, nil
	}

	var (
		mu                 sync.Mutex
		votesA, votesB     int
		tokens             int
		firstErr           error
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			res, err := ratelimit.Execute(gctx, r.Limiter, func(ctx context.Context) (beam.CompareResult, error) {
				return r.Judge.Compare(ctx, a, b, userPrompt)
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			tokens += res.TokensUsed
			switch res.Winner {
			case beam.WinnerA:
				votesA++
			case beam.WinnerB:
				votesB++
			}
			return nil
		})
	}
	_ = g.Wait()

	if votesA == 0 && votesB == 0 {
		if firstErr != nil {
			return beam.CandidateID{}, tokens, firstErr
		}
		return beam.CandidateID{}, tokens, fmt.Errorf("rank: ensemble produced no decisive vote for %s vs %s", a.ID, b.ID)
	}
	if votesA >= votesB {
		return a.ID, tokens, nil
	}
	return b.ID, tokens, nil
}

func resolveWinner(a, b beam.JudgeImage, w beam.Winner) beam.CandidateID {
	if w == beam.WinnerB {
		return b.ID
	}
	return a.ID
}

func idLess(a, b beam.CandidateID) bool {
	if a.Iteration != b.Iteration {
		return a.Iteration < b.Iteration
	}
	return a.Local < b.Local
}

func (r *ComparativeRanker) publish(e progress.Event) { r.Sink.Publish(e) }
