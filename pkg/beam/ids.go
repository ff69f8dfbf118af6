// Package beam defines the value-object data model shared by every stage of
// the beam-search prompt/image refinement pipeline: candidate identifiers,
// prompt pairs, image artifacts, evaluations, rankings, and the abstract
// provider capabilities the orchestrator drives.
package beam

import "fmt"

// CandidateID uniquely identifies a candidate within a run.
//
// Rendered as "i{Iteration}c{Local}", e.g. "i0c3".
type CandidateID struct {
	Iteration uint32
	Local     uint32
}

// String renders the canonical "i{iteration}c{local}" form.
func (id CandidateID) String() string {
	return fmt.Sprintf("i%dc%d", id.Iteration, id.Local)
}

// Equal reports whether two ids refer to the same candidate.
func (id CandidateID) Equal(other CandidateID) bool {
	return id.Iteration == other.Iteration && id.Local == other.Local
}
