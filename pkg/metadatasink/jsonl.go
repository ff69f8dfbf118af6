package metadatasink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/praetorian-inc/beamforge/pkg/beam"
)

// record is the on-disk shape for a single JSONL line. Every write
// (recordAttempt/updateAttemptWithResults/markFinalWinner) appends one line
// rather than rewriting the file, so a crash mid-run still leaves every
// prior write intact.
type record struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	CandidateID string  `json:"candidate_id,omitempty"`
	ParentID    *uint32 `json:"parent_id,omitempty"`
	Dimension   string  `json:"dimension,omitempty"`
	What        string  `json:"what,omitempty"`
	How         string  `json:"how,omitempty"`

	Combined        string   `json:"combined,omitempty"`
	ImageURL        string   `json:"image_url,omitempty"`
	ImageLocalPath  string   `json:"image_local_path,omitempty"`
	AlignmentScore  *float32 `json:"alignment_score,omitempty"`
	AestheticScore  *float32 `json:"aesthetic_score,omitempty"`
	TotalScore      *float32 `json:"total_score,omitempty"`
	SafetyRephrased bool     `json:"safety_rephrased,omitempty"`
}

// JSONLSink persists every MetadataSink write as one JSON object per line
// to a file, appending rather than rewriting so a crash mid-run leaves every
// prior write intact. Writes for the same CandidateID are serialized via mu, satisfying the
// single-writer requirement of §5; writes for distinct candidates may
// interleave freely since each call appends its own line.
type JSONLSink struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

var _ beam.MetadataSink = (*JSONLSink)(nil)

// NewJSONLSink opens (creating or truncating) path for append-style JSONL
// writes.
func NewJSONLSink(path string) (*JSONLSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("metadatasink: failed to create %s: %w", path, err)
	}
	return &JSONLSink{file: f, encoder: json.NewEncoder(f)}, nil
}

// Close closes the underlying file.
func (s *JSONLSink) Close() error {
	return s.file.Close()
}

// RecordAttempt implements beam.MetadataSink (§4.2 step 2, P6).
func (s *JSONLSink) RecordAttempt(_ context.Context, attempt beam.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.encoder.Encode(record{
		Kind:        "attempt_recorded",
		Timestamp:   time.Now(),
		CandidateID: attempt.ID.String(),
		ParentID:    attempt.ParentID,
		Dimension:   string(attempt.Dimension),
		What:        attempt.What,
		How:         attempt.How,
	})
}

// UpdateAttemptWithResults implements beam.MetadataSink (§4.2 step 5).
func (s *JSONLSink) UpdateAttemptWithResults(_ context.Context, id beam.CandidateID, results beam.AttemptResults, flags beam.AttemptFlags) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := record{
		Kind:            "attempt_updated",
		Timestamp:       time.Now(),
		CandidateID:     id.String(),
		Combined:        results.Combined,
		ImageURL:        results.Image.URL,
		ImageLocalPath:  results.Image.LocalPath,
		TotalScore:      results.TotalScore,
		SafetyRephrased: flags.SafetyRephrased,
	}
	if results.Evaluation != nil {
		rec.AlignmentScore = &results.Evaluation.AlignmentScore
		rec.AestheticScore = &results.Evaluation.AestheticScore
	}
	return s.encoder.Encode(rec)
}

// MarkFinalWinner implements beam.MetadataSink.
func (s *JSONLSink) MarkFinalWinner(_ context.Context, winner beam.FinalWinner) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.encoder.Encode(record{
		Kind:        "final_winner",
		Timestamp:   time.Now(),
		CandidateID: winner.ID.String(),
		TotalScore:  winner.TotalScore,
	})
}
