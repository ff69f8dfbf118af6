package beam

import "context"

// ProviderMetadata carries the bookkeeping a provider call returns alongside
// its result (model id, token usage). The core only ever reads TokensUsed;
// everything else is opaque pass-through for the caller's own accounting.
type ProviderMetadata struct {
	Model      string
	TokensUsed int
}

// ExpandOptions parameterizes a single-dimension prompt expansion call.
type ExpandOptions struct {
	Dimension   Dimension
	Temperature float32
}

// ExpandResult is the text provider's response to expand().
type ExpandResult struct {
	RefinedPrompt string
	Metadata      ProviderMetadata
}

// RefineOptions parameterizes a refinement call against a critique.
type RefineOptions struct {
	Dimension  Dimension
	Critique   string
	UserPrompt string
}

// RefineResult is the text provider's response to refine().
type RefineResult struct {
	RefinedPrompt string
	Metadata      ProviderMetadata
}

// CombineResult is the text provider's response to combine().
type CombineResult struct {
	CombinedPrompt string
	Metadata       ProviderMetadata
}

// GenerateTextOptions parameterizes the safety-rephrase generateText() call.
type GenerateTextOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
}

// TextProvider is the abstract text-generation capability (§6.1).
type TextProvider interface {
	Expand(ctx context.Context, userPrompt string, opts ExpandOptions) (ExpandResult, error)
	Refine(ctx context.Context, currentPrompt string, opts RefineOptions) (RefineResult, error)
	Combine(ctx context.Context, what, how string) (CombineResult, error)
	// GenerateText is used only by the safety-rephrase path (§4.2).
	GenerateText(ctx context.Context, userMessage string, opts GenerateTextOptions) (string, error)
}

// ImageGenOptions is the open-but-enumerated options bag passed through from
// the driver to the image provider (§6's "options is an open bag").
type ImageGenOptions struct {
	Dimension   Dimension
	CandidateID CandidateID
	Seed        int64
	Size        string
	Quality     string
	// InputImage and DenoiseStrength activate the optional two-stage
	// cartoon->photoreal post-process hook (§9 open question, SPEC_FULL §4.3).
	InputImage       *Image
	DenoiseStrength  float32
}

// ImageGenResult is the image provider's response to generate().
type ImageGenResult struct {
	Image Image
}

// ImageProvider is the abstract image-generation capability (§6.2). It may
// return a SafetyViolation error, recognized by message shape (errors.go).
type ImageProvider interface {
	Generate(ctx context.Context, prompt string, opts ImageGenOptions) (ImageGenResult, error)
}

// AnalyzeResult is the evaluation provider's response to analyze().
type AnalyzeResult struct {
	AlignmentScore float32
	AestheticScore float32
	Analysis       string
	Metadata       ProviderMetadata
}

// EvaluationProvider is the abstract, optional vision-scoring capability
// (§6.3). Presence of an EvaluationProvider vs. a PairwiseJudge selects
// score mode vs. comparative mode for the ranker.
type EvaluationProvider interface {
	Analyze(ctx context.Context, image Image, combinedPrompt string) (AnalyzeResult, error)
}

// Winner identifies which of two compared images a judge preferred.
type Winner string

const (
	WinnerA Winner = "A"
	WinnerB Winner = "B"
)

// CompareResult is the pairwise judge's response to compare().
type CompareResult struct {
	Winner     Winner
	Reason     string
	Confidence float32
	TokensUsed int
}

// JudgeImage bundles a candidate id with its image for a pairwise compare
// call; the judge only ever needs the id back to attribute wins.
type JudgeImage struct {
	ID    CandidateID
	Image Image
}

// PairwiseJudge is the abstract, optional comparative-ranking capability
// (§6.4).
type PairwiseJudge interface {
	Compare(ctx context.Context, imgA, imgB JudgeImage, userPrompt string) (CompareResult, error)
}

// Feedback is whichever of Ranking/Evaluation a parent carries forward into
// its critique (§4.4 step 2: "ranking if present, else evaluation").
type Feedback struct {
	Ranking    *Ranking
	Evaluation *Evaluation
}

// CritiqueOptions parameterizes a critique() call.
type CritiqueOptions struct {
	Dimension Dimension
	Iteration uint32
}

// CritiqueResult is the critique generator's response to critique().
type CritiqueResult struct {
	Critique       string
	Recommendation string
	Reason         string
	Metadata       ProviderMetadata
}

// CritiqueGenerator is the abstract critique capability (§6.5).
type CritiqueGenerator interface {
	Critique(ctx context.Context, feedback Feedback, prompts PromptPair, combined, userPrompt string, opts CritiqueOptions) (CritiqueResult, error)
}

// AttemptRecord is the defensive pre-image-call record written by the
// pipeline (§4.2 step 2, §8 P6).
type AttemptRecord struct {
	ID        CandidateID
	ParentID  *uint32
	Dimension Dimension
	What, How string
}

// AttemptResults is the post-success update written by the pipeline
// (§4.2 step 5).
type AttemptResults struct {
	Combined   string
	Image      Image
	Evaluation *Evaluation
	TotalScore *float32
}

// AttemptFlags carries out-of-band annotations for updateAttemptWithResults,
// e.g. that a safety rephrase occurred.
type AttemptFlags struct {
	SafetyRephrased bool
}

// FinalWinner is what markFinalWinner receives at the end of a run.
type FinalWinner struct {
	ID         CandidateID
	TotalScore *float32
}

// MetadataSink is the abstract, defensive attempt-metadata persistence
// capability (§6.6). A no-op implementation is acceptable; see
// pkg/metadatasink for NoOp and JSONL implementations.
type MetadataSink interface {
	RecordAttempt(ctx context.Context, attempt AttemptRecord) error
	UpdateAttemptWithResults(ctx context.Context, id CandidateID, results AttemptResults, flags AttemptFlags) error
	MarkFinalWinner(ctx context.Context, winner FinalWinner) error
}
