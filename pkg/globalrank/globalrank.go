// Package globalrank implements the Global-Rank Assigner (§4.7): a
// per-iteration rank assignment that pools each iteration's already
// locally-ranked candidates against the previous iteration's surviving
// parents, so that a child which fails to beat the worst surviving parent
// collapses onto a single shared floor rank instead of being artificially
// distinguished from other candidates that were never actually told apart.
//
// Iteration 0 has no parents and assigns 1..k sequentially with no floor.
// Every later iteration is fed the parent set explicitly and walks the
// already-ranked candidate list once to find the worst position any parent
// occupies; everything at or above that position gets the next sequential
// rank, everything below it floors.
package globalrank

import (
	"sort"

	"github.com/praetorian-inc/beamforge/pkg/beam"
)

// Assigner accumulates the cross-iteration candidate set across calls to
// AssignIteration. It is not safe for concurrent use; the driver calls it
// once per iteration, strictly in order.
type Assigner struct {
	floorRank uint32 // fixed at construction to the run's beam width N
	m         int

	order  []string
	latest map[string]beam.Candidate
}

// New constructs an Assigner. floorRank is the run's beam width N (§3:
// "floorRank: u32 (= beamWidth N)"), fixed for the lifetime of the run. m
// is how many of each iteration's ranked candidates survive to become the
// next iteration's parents.
func New(floorRank, m int) *Assigner {
	return &Assigner{
		floorRank: uint32(floorRank),
		m:         m,
		latest:    make(map[string]beam.Candidate),
	}
}

// AssignIteration assigns global ranks to one iteration's already
// locally-ranked candidates. parents is the previous iteration's survivors
// (empty for iteration 0). It returns the same candidates annotated with
// GlobalRank/GlobalRankNote, in the order they were passed in, and the
// subset (length <= m, same order) that survive to become the next
// iteration's parents.
func (a *Assigner) AssignIteration(rankedCandidates []beam.Candidate, parents []beam.Candidate) (ranked []beam.Candidate, survivors []beam.Candidate) {
	out := append([]beam.Candidate(nil), rankedCandidates...)

	if len(parents) == 0 {
		assignSequential(out, 0, len(out)-1)
	} else {
		worstParentPosition := worstParentIndex(out, parents)
		if worstParentPosition < 0 {
			// Pathological: none of the pooled parents appear in the
			// ranking at all. Fall back to plain sequential numbering.
			assignSequential(out, 0, len(out)-1)
		} else {
			assignSequential(out, 0, worstParentPosition)
			for i := worstParentPosition + 1; i < len(out); i++ {
				floor := a.floorRank
				out[i].GlobalRank = &floor
				out[i].GlobalRankNote = beam.TiedAtFloor
			}
		}
	}

	a.record(out)

	m := a.m
	if m > len(out) {
		m = len(out)
	}
	survivors = append([]beam.Candidate(nil), out[:m]...)

	return out, survivors
}

// assignSequential assigns globalRank = 1, 2, 3, ... (no floor, no note)
// to out[from:to] inclusive, counting from 1 regardless of from.
func assignSequential(out []beam.Candidate, from, to int) {
	counter := uint32(1)
	for i := from; i <= to && i < len(out); i++ {
		rank := counter
		counter++
		out[i].GlobalRank = &rank
		out[i].GlobalRankNote = ""
	}
}

// worstParentIndex returns the last index in ranked at which a candidate
// from parents appears, or -1 if none does.
func worstParentIndex(ranked []beam.Candidate, parents []beam.Candidate) int {
	parentIDs := make(map[string]bool, len(parents))
	for _, p := range parents {
		parentIDs[p.ID.String()] = true
	}
	worst := -1
	for i, c := range ranked {
		if parentIDs[c.ID.String()] {
			worst = i
		}
	}
	return worst
}

// record remembers the latest annotated version of every candidate seen so
// far, keyed by id, so a parent re-ranked in a later iteration supersedes
// its earlier-iteration entry in AllGlobalRanked rather than appearing
// twice.
func (a *Assigner) record(out []beam.Candidate) {
	for _, c := range out {
		id := c.ID.String()
		if _, seen := a.latest[id]; !seen {
			a.order = append(a.order, id)
		}
		a.latest[id] = c
	}
}

// AllGlobalRanked returns every candidate assigned so far, deduplicated by
// id (a pooled parent's later-iteration entry wins), sorted ascending by
// GlobalRank with ties broken by ascending id.
func (a *Assigner) AllGlobalRanked() []beam.Candidate {
	out := make([]beam.Candidate, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.latest[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := globalRankValue(out[i]), globalRankValue(out[j])
		if ri != rj {
			return ri < rj
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func globalRankValue(c beam.Candidate) uint32 {
	if c.GlobalRank == nil {
		return ^uint32(0)
	}
	return *c.GlobalRank
}
