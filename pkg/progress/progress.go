// Package progress implements the progress-event contract (§6's progress
// sink) and a fan-out Bus that lets the driver publish once while multiple
// observers (logging, a CLI progress bar, tests) each see every event.
package progress

import "github.com/praetorian-inc/beamforge/pkg/beam"

// Stage identifies which pipeline/ranker/driver step an event describes.
type Stage string

const (
	StageExpand  Stage = "expand"
	StageCombine Stage = "combine"
	StageImageGen Stage = "imageGen"
	StageVision  Stage = "vision"
	StageRanking Stage = "ranking"
	StageSafety  Stage = "safety"
	StageError   Stage = "error"
)

// Status is the per-stage lifecycle value. Not every stage uses every
// status; safety uses its own sub-sequence (rephrasing/retrying/success/
// failed).
type Status string

const (
	StatusStarting  Status = "starting"
	StatusComplete  Status = "complete"
	StatusProgress  Status = "progress"
	StatusFailed    Status = "failed"
	StatusRephrasing Status = "rephrasing"
	StatusRetrying  Status = "retrying"
	StatusSuccess   Status = "success"
)

// Progress is the {completed, total} counter pair attached to batched
// stages (ranking pair counts, batch completion).
type Progress struct {
	Completed int
	Total     int
}

// Event is the structured progress event emitted at every stage boundary
// (§6, §4.2, §4.6).
type Event struct {
	Stage   Stage
	Status  Status
	Message string

	CandidateID *beam.CandidateID
	Iteration   *uint32

	ImageURL   string
	Alignment  *float32
	Aesthetic  *float32
	TotalScore *float32

	Progress *Progress

	// CandidateA/CandidateB/Inferred/Err are used by ranking events (§4.6).
	CandidateA *beam.CandidateID
	CandidateB *beam.CandidateID
	Inferred   bool
	Err        error
}

// Sink receives progress events. Implementations must tolerate concurrent
// invocation from worker goroutines (§5) or serialize internally.
type Sink interface {
	Publish(e Event)
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(Event)

// Publish implements Sink.
func (f SinkFunc) Publish(e Event) { f(e) }

// Bus fans a single Publish call out to every registered Sink. Safe for
// concurrent use; Publish never blocks on a slow sink beyond that sink's own
// Publish implementation.
type Bus struct {
	sinks []Sink
}

// NewBus constructs a Bus that fans out to the given sinks.
func NewBus(sinks ...Sink) *Bus {
	return &Bus{sinks: sinks}
}

// Add registers an additional sink.
func (b *Bus) Add(s Sink) {
	b.sinks = append(b.sinks, s)
}

// Publish implements Sink, forwarding e to every registered sink in
// registration order.
func (b *Bus) Publish(e Event) {
	for _, s := range b.sinks {
		s.Publish(e)
	}
}

// Nil is a Sink that discards every event; used when the caller supplies no
// progress sink.
var Nil Sink = SinkFunc(func(Event) {})
