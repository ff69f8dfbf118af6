package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alecthomas/kong"
)

const version = "0.1.0"

// CLI represents the beamforge command-line interface.
var CLI struct {
	Debug   bool       `help:"Enable debug mode." short:"d" env:"BEAMFORGE_DEBUG"`
	Version VersionCmd `cmd:"" help:"Print version information."`
	Help    HelpCmd    `cmd:"" hidden:"" default:"1"`
	List    ListCmd    `cmd:"" help:"List registered text/image/evaluation/judge/critique providers."`
	Run     RunCmd     `cmd:"" help:"Run a beam search over a user prompt."`
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (v *VersionCmd) Run() error {
	fmt.Printf("beamforge %s\n", version)
	return nil
}

// HelpCmd prints help.
type HelpCmd struct{}

func (h *HelpCmd) Run(ctx *kong.Context) error {
	appCtx := *ctx
	if len(appCtx.Path) > 1 {
		appCtx.Path = appCtx.Path[:1]
	}
	return appCtx.PrintUsage(false)
}

// ListCmd lists registered provider adapters.
type ListCmd struct{}

func (l *ListCmd) Run() error {
	listProviders()
	return nil
}

// RunCmd runs one beam search.
type RunCmd struct {
	UserPrompt string `arg:"" help:"The user's image-prompt goal to beam search over."`

	// Provider selection
	Text       string `help:"Text provider name (e.g. openai.Text, test.Repeat)." required:""`
	Image      string `help:"Image provider name (e.g. replicate.Image, test.Blank)." required:""`
	Evaluation string `help:"Evaluation provider name (score mode). Mutually exclusive with --judge." name:"evaluation"`
	Judge      string `help:"Pairwise judge provider name (comparative mode). Mutually exclusive with --evaluation." name:"judge"`
	Critique   string `help:"Critique provider name. Required when --iterations > 0." name:"critique"`

	TextConfig       string `help:"JSON config for the text provider." name:"text-config"`
	ImageConfig      string `help:"JSON config for the image provider." name:"image-config"`
	EvaluationConfig string `help:"JSON config for the evaluation provider." name:"evaluation-config"`
	JudgeConfig      string `help:"JSON config for the judge provider." name:"judge-config"`
	CritiqueConfig   string `help:"JSON config for the critique provider." name:"critique-config"`

	ConfigFile string `help:"YAML run-configuration file path." type:"existingfile" name:"config-file"`

	// Run shape
	N                   int     `help:"Initial candidate count." default:"6"`
	M                   int     `help:"Keep top (survivors kept per iteration)." default:"2"`
	Iterations          int     `help:"Number of refinement iterations after iteration 0." default:"2"`
	Alpha               float64 `help:"Weight of alignment vs aesthetic in score-mode total score, in [0,1]." default:"0.7"`
	Comparative         bool    `help:"Use pairwise comparative ranking instead of score-mode ranking."`
	EnsembleSize        int     `help:"Judge calls per pair in comparative mode (majority vote)." name:"ensemble-size" default:"1"`
	GracefulDegradation bool    `help:"Continue ranking past individual judge-call failures." name:"graceful-degradation"`
	Seed                int64   `help:"Image generation seed."`
	Size                string  `help:"Image size hint passed to the image provider."`
	Quality             string  `help:"Image quality hint passed to the image provider."`

	// Concurrency
	LLMConcurrency      int `help:"Max concurrent text-provider calls." name:"llm-concurrency" default:"4"`
	ImageGenConcurrency int `help:"Max concurrent image-provider calls." name:"imagegen-concurrency" default:"4"`
	VisionConcurrency   int `help:"Max concurrent evaluation/judge-provider calls." name:"vision-concurrency" default:"4"`

	Timeout time.Duration `help:"Overall run timeout." default:"30m"`

	// Output
	Format  string `help:"Progress output format." enum:"table,json" default:"table" short:"f"`
	Output  string `help:"JSONL attempt-metadata output file path." short:"o" type:"path"`
	Verbose bool   `help:"Verbose progress output." short:"v"`

	// Logging
	LogLevel  string `help:"Log level." enum:"debug,info,warn,error" default:"info" name:"log-level"`
	LogFormat string `help:"Log output format." enum:"text,json" default:"text" name:"log-format"`
}

func (r *RunCmd) Run() error {
	return r.execute()
}

// Validate enforces the CLI-level preconditions kong checks before Run().
// The deeper run-configuration invariants (N%M==0, alpha range, etc.) are
// enforced by config.Config.Validate and orchestrator.New.
func (r *RunCmd) Validate() error {
	if r.Evaluation == "" && r.Judge == "" {
		return fmt.Errorf("one of --evaluation or --judge is required")
	}
	if r.Evaluation != "" && r.Judge != "" {
		return fmt.Errorf("cannot use both --evaluation and --judge")
	}
	if r.Judge != "" && !r.Comparative {
		return fmt.Errorf("--judge requires --comparative")
	}
	if r.Evaluation != "" && r.Comparative {
		return fmt.Errorf("--evaluation is for score mode; did you mean --judge?")
	}
	for _, cfg := range []string{r.TextConfig, r.ImageConfig, r.EvaluationConfig, r.JudgeConfig, r.CritiqueConfig} {
		if cfg == "" {
			continue
		}
		var probe map[string]any
		if err := json.Unmarshal([]byte(cfg), &probe); err != nil {
			return fmt.Errorf("invalid provider config JSON: %w", err)
		}
	}
	return nil
}
