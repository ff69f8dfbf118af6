package rank

import "github.com/praetorian-inc/beamforge/pkg/beam"

// Graph is the comparison graph consulted by the comparative ranker so
// that, whenever A>B and B>C are known (directly observed or seeded), A>C
// is inferred without an extra provider call (§4.6 step 2, P4).
type Graph struct {
	beats map[string]map[string]bool // id -> set of ids it is known to beat
}

// NewGraph constructs an empty comparison graph.
func NewGraph() *Graph {
	return &Graph{beats: make(map[string]map[string]bool)}
}

func (g *Graph) ensure(key string) {
	if g.beats[key] == nil {
		g.beats[key] = make(map[string]bool)
	}
}

// Add records winner > loser and closes the graph under transitivity. No-op
// if the edge (direct or already-inferred) exists.
func (g *Graph) Add(winner, loser beam.CandidateID) {
	w, l := winner.String(), loser.String()
	g.ensure(w)
	g.ensure(l)
	if g.beats[w][l] {
		return
	}
	g.beats[w][l] = true
	g.closeTransitively()
}

// closeTransitively computes the transitive closure of the beats relation.
// Candidate pools in a beam search are small (tens, not thousands), so the
// naive fixed-point iteration below is cheap relative to a provider call.
func (g *Graph) closeTransitively() {
	for changed := true; changed; {
		changed = false
		for x, xs := range g.beats {
			for y := range xs {
				if ys, ok := g.beats[y]; ok {
					for z := range ys {
						if !g.beats[x][z] {
							g.beats[x][z] = true
							changed = true
						}
					}
				}
			}
		}
	}
}

// Beats reports whether a is known (directly or transitively) to beat b.
func (g *Graph) Beats(a, b beam.CandidateID) bool {
	return g.beats[a.String()][b.String()]
}

// Decided reports whether the pair (a, b) has a known outcome either way,
// and if so, which id won.
func (g *Graph) Decided(a, b beam.CandidateID) (winner beam.CandidateID, ok bool) {
	if g.Beats(a, b) {
		return a, true
	}
	if g.Beats(b, a) {
		return b, true
	}
	return beam.CandidateID{}, false
}

// Wins returns the number of ids id is known to beat (direct or inferred),
// used to rank in all-pairs mode (§4.6 step 4).
func (g *Graph) Wins(id beam.CandidateID) int {
	return len(g.beats[id.String()])
}

// SeedFromPreviousTop records winner>loser for every pair (i, j) in an
// already-rank-ordered sequence (best first), per §4.6 step 1: prior parent
// order is already known and must not be re-asked about.
func (g *Graph) SeedFromPreviousTop(orderedBestFirst []beam.CandidateID) {
	for i := 0; i < len(orderedBestFirst); i++ {
		for j := i + 1; j < len(orderedBestFirst); j++ {
			g.Add(orderedBestFirst[i], orderedBestFirst[j])
		}
	}
}
