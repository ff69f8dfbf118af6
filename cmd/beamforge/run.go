package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/config"
	"github.com/praetorian-inc/beamforge/pkg/logging"
	"github.com/praetorian-inc/beamforge/pkg/metadatasink"
	"github.com/praetorian-inc/beamforge/pkg/orchestrator"
	"github.com/praetorian-inc/beamforge/pkg/progress"
	"github.com/praetorian-inc/beamforge/pkg/providers"
	"github.com/praetorian-inc/beamforge/pkg/registry"
)

// execute is RunCmd's real body; Run() just forwards to it so Validate and
// the struct tags stay the thin kong-facing layer.
func (r *RunCmd) execute() error {
	logging.Configure(logging.ParseLevel(r.LogLevel), r.LogFormat, nil)

	cfg, err := r.buildConfig()
	if err != nil {
		return err
	}

	textProvider, err := providers.Text.Create(r.Text, mustConfig(r.TextConfig))
	if err != nil {
		return fmt.Errorf("failed to create text provider %s: %w", r.Text, err)
	}
	imageProvider, err := providers.Image.Create(r.Image, mustConfig(r.ImageConfig))
	if err != nil {
		return fmt.Errorf("failed to create image provider %s: %w", r.Image, err)
	}

	var evalProvider beam.EvaluationProvider
	var judgeProvider beam.PairwiseJudge
	if r.Evaluation != "" {
		evalProvider, err = providers.Evaluation.Create(r.Evaluation, mustConfig(r.EvaluationConfig))
		if err != nil {
			return fmt.Errorf("failed to create evaluation provider %s: %w", r.Evaluation, err)
		}
	}
	if r.Judge != "" {
		judgeProvider, err = providers.Judge.Create(r.Judge, mustConfig(r.JudgeConfig))
		if err != nil {
			return fmt.Errorf("failed to create judge provider %s: %w", r.Judge, err)
		}
	}

	var critiqueProvider beam.CritiqueGenerator
	if r.Critique != "" {
		critiqueProvider, err = providers.Critique.Create(r.Critique, mustConfig(r.CritiqueConfig))
		if err != nil {
			return fmt.Errorf("failed to create critique provider %s: %w", r.Critique, err)
		}
	}

	var sink beam.MetadataSink
	if r.Output != "" {
		jsonl, err := metadatasink.NewJSONLSink(r.Output)
		if err != nil {
			return err
		}
		defer jsonl.Close()
		sink = jsonl
	}

	reporter := r.newReporter()
	callbacks := orchestrator.Callbacks{
		OnCandidateProcessed: reporter.onCandidateProcessed,
		OnIterationComplete:  reporter.onIterationComplete,
		OnRankingComplete:    reporter.onRankingComplete,
	}

	driver, err := orchestrator.New(*cfg, orchestrator.Providers{
		Text: textProvider, Image: imageProvider, Evaluation: evalProvider,
		Judge: judgeProvider, Critique: critiqueProvider, Sink: sink,
	}, callbacks, progress.NewLoggingSink(nil))
	if err != nil {
		return fmt.Errorf("failed to construct driver: %w", err)
	}

	ctx, cancel := r.setupContext()
	defer cancel()

	result, err := driver.Run(ctx, r.UserPrompt)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	return reporter.printResult(result)
}

// buildConfig assembles a config.Config from an optional YAML file (lowest
// precedence) overridden by explicit CLI flags (highest precedence).
func (r *RunCmd) buildConfig() (*config.Config, error) {
	cfg := &config.Config{
		Run: config.RunConfig{
			N: 0, M: 0, Iterations: 0, Alpha: 0,
		},
		RateLimits: config.RateLimitConfig{},
	}

	if r.ConfigFile != "" {
		loaded, err := config.LoadConfigKoanf(r.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		cfg = loaded
	}

	cliCfg := &config.Config{
		Run: config.RunConfig{
			N: r.N, M: r.M, Iterations: r.Iterations, Alpha: r.Alpha,
			Comparative: r.Comparative, EnsembleSize: r.EnsembleSize,
			GracefulDegradation: r.GracefulDegradation,
			Seed:                r.Seed, Size: r.Size, Quality: r.Quality,
		},
		RateLimits: config.RateLimitConfig{
			LLM: r.LLMConcurrency, ImageGen: r.ImageGenConcurrency, Vision: r.VisionConcurrency,
		},
	}
	cfg.Merge(cliCfg)

	if cfg.RateLimits.LLM == 0 {
		cfg.RateLimits.LLM = r.LLMConcurrency
	}
	if cfg.RateLimits.ImageGen == 0 {
		cfg.RateLimits.ImageGen = r.ImageGenConcurrency
	}
	if cfg.RateLimits.Vision == 0 {
		cfg.RateLimits.Vision = r.VisionConcurrency
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}
	return cfg, nil
}

// setupContext creates a context bounded by --timeout and cancelled on
// SIGINT/SIGTERM. The returned cancel func must be called to avoid leaking
// the timeout timer.
func (r *RunCmd) setupContext() (context.Context, context.CancelFunc) {
	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(baseCtx, r.Timeout)
	return ctx, func() {
		stop()
		cancel()
	}
}

// mustConfig parses a possibly-empty JSON config string into a
// registry.Config; RunCmd.Validate already rejected malformed JSON, so the
// only remaining error case here is the empty string, which yields an empty
// map rather than an error.
func mustConfig(jsonStr string) registry.Config {
	if jsonStr == "" {
		return registry.Config{}
	}
	var cfg registry.Config
	if err := json.Unmarshal([]byte(jsonStr), &cfg); err != nil {
		return registry.Config{}
	}
	return cfg
}

// reporter renders orchestrator callbacks to stdout in either table or
// JSON form, gated by --verbose for per-candidate detail.
type reporter struct {
	format  string
	verbose bool
}

func (r *RunCmd) newReporter() *reporter {
	return &reporter{format: r.Format, verbose: r.Verbose}
}

func (rp *reporter) onCandidateProcessed(iteration uint32, c *beam.Candidate, err error) {
	if rp.format == "json" {
		return
	}
	if err != nil {
		fmt.Printf("[iter %d] candidate failed: %v\n", iteration, err)
		return
	}
	if !rp.verbose || c == nil {
		return
	}
	fmt.Printf("[iter %d] %s combined=%q\n", iteration, c.ID.String(), truncatePrompt(c.Combined, 80))
}

func (rp *reporter) onRankingComplete(iteration uint32, ranked []beam.Candidate) {
	if rp.format == "json" || !rp.verbose {
		return
	}
	fmt.Printf("[iter %d] ranked %d candidates\n", iteration, len(ranked))
}

func (rp *reporter) onIterationComplete(iteration uint32, survivors []beam.Candidate) {
	if rp.format == "json" {
		return
	}
	fmt.Printf("[iter %d] %d survivor(s) advance\n", iteration, len(survivors))
}

func (rp *reporter) printResult(result orchestrator.Result) error {
	if rp.format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	fmt.Println("\nBeamforge Run Result")
	fmt.Println("====================")
	fmt.Printf("Run ID: %s\n", result.RunID)
	fmt.Printf("Winner: %s\n", result.Winner.ID.String())
	fmt.Printf("  Combined: %s\n", result.Winner.Combined)
	if result.Winner.Image.Usable() {
		fmt.Printf("  Image:    %s\n", firstNonEmptyImageRef(result.Winner.Image))
	}
	if result.Winner.TotalScore != nil {
		fmt.Printf("  Score:    %.3f\n", *result.Winner.TotalScore)
	}

	fmt.Printf("\nFinalists (%d):\n", len(result.Finalists))
	for _, c := range result.Finalists {
		fmt.Printf("  - %s\n", c.ID.String())
	}

	fmt.Printf("\nGlobally ranked candidates: %d\n", len(result.AllGlobalRanked))
	return nil
}

func firstNonEmptyImageRef(img beam.Image) string {
	if img.LocalPath != "" {
		return img.LocalPath
	}
	return img.URL
}

func truncatePrompt(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
