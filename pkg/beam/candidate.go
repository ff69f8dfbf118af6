package beam

// PromptPair is the "content" (What) and "style" (How) halves of a prompt.
// Both fields are non-empty and immutable once a Candidate is constructed.
type PromptPair struct {
	What string
	How  string
}

// ImageMetadata carries provenance for a generated image, including the
// safety-retry annotations from the candidate pipeline's rephrase path.
type ImageMetadata struct {
	Model            string
	Size             string
	Seed             int64
	SafetyRephrased  bool
	OriginalPrompt   string
	RephrasedPrompt  string
}

// Image is an image artifact. At least one of URL/LocalPath must be set;
// LocalPath is preferred by consumers for stable references.
type Image struct {
	URL       string
	LocalPath string
	Metadata  ImageMetadata
}

// Usable reports whether the image carries a referenceable location, per
// invariant I2.
func (img Image) Usable() bool {
	return img.URL != "" || img.LocalPath != ""
}

// Evaluation is the vision provider's score-mode judgement of a candidate.
// Present only when scoring mode is active.
type Evaluation struct {
	AlignmentScore float32 // [0,100]
	AestheticScore float32 // [0,10]
	Analysis       string
	TokensUsed     int
}

// RankNote annotates a candidate's globalRank with extra meaning.
type RankNote string

// TiedAtFloor marks a child that lost to every surviving parent and was
// collapsed into the floor-rank equivalence class (§4.7).
const TiedAtFloor RankNote = "tied_at_floor"

// Ranking is the comparative (pairwise) ranker's verdict for a candidate.
// Present only when comparative ranking is active.
type Ranking struct {
	Rank   uint32 // 1 = best
	Reason string
	Wins   uint32
}

// Dimension is the prompt half a refinement iteration mutates.
type Dimension string

const (
	DimensionWhat Dimension = "what"
	DimensionHow  Dimension = "how"
)

// Candidate is the value object produced once by the pipeline and then
// enriched by the ranker and global-rank assigner. It is never mutated
// across goroutines once published; downstream stages produce new derived
// Candidate values instead of mutating in place.
type Candidate struct {
	ID        CandidateID
	ParentID  *uint32 // nil for iteration 0
	Dimension Dimension

	What, How, Combined string

	Image Image

	Evaluation *Evaluation
	Ranking    *Ranking

	TotalScore *float32

	GlobalRank     *uint32
	GlobalRankNote RankNote
}

// Prompts returns the candidate's (what, how) pair.
func (c Candidate) Prompts() PromptPair {
	return PromptPair{What: c.What, How: c.How}
}

// Comparison records a single pairwise-judge outcome (or a seeded/inferred
// equivalent): winnerID beat loserID.
type Comparison struct {
	WinnerID CandidateID
	LoserID  CandidateID
}
