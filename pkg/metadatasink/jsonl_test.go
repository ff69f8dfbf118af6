package metadatasink_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/metadatasink"
	"github.com/stretchr/testify/require"
)

func TestJSONLSink_RecordThenUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attempts.jsonl")
	sink, err := metadatasink.NewJSONLSink(path)
	require.NoError(t, err)

	id := beam.CandidateID{Iteration: 0, Local: 2}
	ctx := context.Background()

	require.NoError(t, sink.RecordAttempt(ctx, beam.AttemptRecord{
		ID: id, Dimension: beam.DimensionWhat, What: "w", How: "h",
	}))

	score := float32(78)
	require.NoError(t, sink.UpdateAttemptWithResults(ctx, id, beam.AttemptResults{
		Combined:   "w h",
		Image:      beam.Image{URL: "u"},
		TotalScore: &score,
	}, beam.AttemptFlags{}))

	require.NoError(t, sink.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)

	var rec1, rec2 map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec1))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec2))

	require.Equal(t, "attempt_recorded", rec1["kind"])
	require.Equal(t, "i0c2", rec1["candidate_id"])
	require.Equal(t, "attempt_updated", rec2["kind"])
	require.Equal(t, float64(78), rec2["total_score"])
}

func TestJSONLSink_FailedAttemptHasNoUpdateLine(t *testing.T) {
	// P6: a failed image call yields recordAttempt but no
	// updateAttemptWithResults.
	path := filepath.Join(t.TempDir(), "attempts.jsonl")
	sink, err := metadatasink.NewJSONLSink(path)
	require.NoError(t, err)

	id := beam.CandidateID{Iteration: 0, Local: 2}
	require.NoError(t, sink.RecordAttempt(context.Background(), beam.AttemptRecord{ID: id}))
	require.NoError(t, sink.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 1)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}
