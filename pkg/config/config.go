// Package config loads and validates a beamforge run's configuration.
// The run options are the fixed fields of RunConfig, not an open map.
// Validate rejects unrecognized keys of the providers map only; other
// unrecognized keys in a YAML file or BEAMFORGE_ environment variable are
// ignored by the loaders.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete beamforge configuration.
type Config struct {
	Run        RunConfig                 `yaml:"run" koanf:"run"`
	RateLimits RateLimitConfig           `yaml:"rate_limits" koanf:"rate_limits"`
	Providers  map[string]ProviderConfig `yaml:"providers" koanf:"providers" validate:"dive"`
	Output     OutputConfig              `yaml:"output" koanf:"output"`
	Log        LogConfig                 `yaml:"log" koanf:"log"`
	Profiles   map[string]Profile        `yaml:"profiles,omitempty" koanf:"profiles"`
}

// Profile is a named override bundle, e.g. a fast/cheap "dev" preset
// versus a full-ensemble "prod" preset.
type Profile struct {
	Run        RunConfig                 `yaml:"run,omitempty"`
	RateLimits RateLimitConfig           `yaml:"rate_limits,omitempty"`
	Providers  map[string]ProviderConfig `yaml:"providers,omitempty"`
	Output     OutputConfig              `yaml:"output,omitempty"`
	Log        LogConfig                 `yaml:"log,omitempty"`
}

// knownProviderKeys are the only provider slots the orchestrator wires
// (§6: text, image, vision, judge, critique, photoreal). Anything else in
// the providers map is a configuration error.
var knownProviderKeys = map[string]bool{
	"text": true, "image": true, "vision": true,
	"judge": true, "critique": true, "photoreal": true,
}

// RunConfig is the beam-search run shape (§1, §4.1).
type RunConfig struct {
	// N is the number of candidates expanded per iteration.
	N int `yaml:"n" koanf:"n" validate:"omitempty,gte=2"`
	// M is the keep-top count: how many candidates survive each iteration.
	M int `yaml:"m" koanf:"m" validate:"omitempty,gte=1"`
	// Iterations is how many refinement iterations run after iteration 0.
	Iterations int `yaml:"iterations" koanf:"iterations" validate:"gte=0"`
	// Alpha weights alignment vs. aesthetic score in TotalScore (§4.5).
	Alpha float64 `yaml:"alpha" koanf:"alpha" validate:"gte=0,lte=1"`
	// Comparative switches the ranker from absolute scoring to pairwise
	// judging (§4.6); requires providers.judge to be set.
	Comparative bool `yaml:"comparative" koanf:"comparative"`
	// EnsembleSize is how many independent judge votes decide a pairwise
	// comparison; 0 or 1 means a single vote.
	EnsembleSize int `yaml:"ensemble_size,omitempty" koanf:"ensemble_size" validate:"gte=0"`
	// GracefulDegradation keeps a ranking pass alive after a judge failure
	// instead of aborting the run.
	GracefulDegradation bool   `yaml:"graceful_degradation,omitempty" koanf:"graceful_degradation"`
	Timeout             string `yaml:"timeout,omitempty" koanf:"timeout"`
	Seed                int64  `yaml:"seed,omitempty" koanf:"seed"`
	Size                string `yaml:"size,omitempty" koanf:"size"`
	Quality             string `yaml:"quality,omitempty" koanf:"quality"`
}

// RateLimitConfig is the admission limit per provider class (§4.1).
type RateLimitConfig struct {
	LLM      int `yaml:"llm" koanf:"llm" validate:"omitempty,gte=1"`
	ImageGen int `yaml:"image_gen" koanf:"image_gen" validate:"omitempty,gte=1"`
	Vision   int `yaml:"vision" koanf:"vision" validate:"omitempty,gte=1"`
}

// ProviderConfig is a single provider's model selection and credentials.
type ProviderConfig struct {
	Model       string  `yaml:"model" koanf:"model"`
	Temperature float64 `yaml:"temperature,omitempty" koanf:"temperature" validate:"gte=0,lte=2"`
	APIKey      string  `yaml:"api_key,omitempty" koanf:"api_key"`
	Region      string  `yaml:"region,omitempty" koanf:"region"`
}

// OutputConfig selects the metadata sink (§6.6).
type OutputConfig struct {
	Format string `yaml:"format" koanf:"format" validate:"omitempty,oneof=jsonl none"`
	Path   string `yaml:"path,omitempty" koanf:"path"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" koanf:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format,omitempty" koanf:"format" validate:"omitempty,oneof=text json"`
}

// Validate runs the validator struct tags, then checks invariants the tags
// can't express: N must be a whole multiple of M so expansionRatio divides
// evenly (§4.4 step 3), and jsonl output needs a path, and every providers
// key must be recognized.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Run.N < c.Run.M {
		return fmt.Errorf("run.n (%d) must be >= run.m (%d)", c.Run.N, c.Run.M)
	}
	if c.Run.M > 0 && c.Run.N%c.Run.M != 0 {
		return fmt.Errorf("run.n (%d) must be a whole multiple of run.m (%d)", c.Run.N, c.Run.M)
	}
	if c.Run.Timeout != "" {
		if _, err := time.ParseDuration(c.Run.Timeout); err != nil {
			return fmt.Errorf("invalid run.timeout: %w", err)
		}
	}
	if c.Run.Comparative && c.Providers["judge"].Model == "" {
		return fmt.Errorf("run.comparative requires providers.judge to be configured")
	}
	if c.Output.Format == "jsonl" && c.Output.Path == "" {
		return fmt.Errorf("output.path is required when output.format is jsonl")
	}
	for name := range c.Providers {
		if !knownProviderKeys[name] {
			return fmt.Errorf("unrecognized providers key %q", name)
		}
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence.
func (c *Config) Merge(other *Config) {
	if other.Run.N != 0 {
		c.Run.N = other.Run.N
	}
	if other.Run.M != 0 {
		c.Run.M = other.Run.M
	}
	if other.Run.Iterations != 0 {
		c.Run.Iterations = other.Run.Iterations
	}
	if other.Run.Alpha != 0 {
		c.Run.Alpha = other.Run.Alpha
	}
	if other.Run.Comparative {
		c.Run.Comparative = other.Run.Comparative
	}
	if other.Run.EnsembleSize != 0 {
		c.Run.EnsembleSize = other.Run.EnsembleSize
	}
	if other.Run.GracefulDegradation {
		c.Run.GracefulDegradation = other.Run.GracefulDegradation
	}
	if other.Run.Timeout != "" {
		c.Run.Timeout = other.Run.Timeout
	}
	if other.Run.Seed != 0 {
		c.Run.Seed = other.Run.Seed
	}
	if other.Run.Size != "" {
		c.Run.Size = other.Run.Size
	}
	if other.Run.Quality != "" {
		c.Run.Quality = other.Run.Quality
	}

	if other.RateLimits.LLM != 0 {
		c.RateLimits.LLM = other.RateLimits.LLM
	}
	if other.RateLimits.ImageGen != 0 {
		c.RateLimits.ImageGen = other.RateLimits.ImageGen
	}
	if other.RateLimits.Vision != 0 {
		c.RateLimits.Vision = other.RateLimits.Vision
	}

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	for name, p := range other.Providers {
		existing := c.Providers[name]
		if p.Model != "" {
			existing.Model = p.Model
		}
		if p.Temperature != 0 {
			existing.Temperature = p.Temperature
		}
		if p.APIKey != "" {
			existing.APIKey = p.APIKey
		}
		if p.Region != "" {
			existing.Region = p.Region
		}
		c.Providers[name] = existing
	}

	if other.Output.Format != "" {
		c.Output.Format = other.Output.Format
	}
	if other.Output.Path != "" {
		c.Output.Path = other.Output.Path
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}

// ApplyProfile merges a named profile into this config.
func (c *Config) ApplyProfile(profileName string) error {
	profile, exists := c.Profiles[profileName]
	if !exists {
		return fmt.Errorf("profile %q not found", profileName)
	}
	c.Merge(&Config{
		Run: profile.Run, RateLimits: profile.RateLimits, Providers: profile.Providers,
		Output: profile.Output, Log: profile.Log,
	})
	return nil
}

// interpolateEnvVars replaces ${VAR} with environment variable values.
func interpolateEnvVars(s string, getenv func(string) (string, bool)) (string, error) {
	result := s
	start := 0
	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		endIdx := strings.Index(result[idx:], "}")
		if endIdx == -1 {
			return "", fmt.Errorf("unclosed environment variable reference at position %d", idx)
		}
		endIdx += idx

		varName := result[idx+2 : endIdx]
		value, ok := getenv(varName)
		if !ok {
			return "", fmt.Errorf("environment variable %q is not set", varName)
		}

		result = result[:idx] + value + result[endIdx+1:]
		start = idx + len(value)
	}
	return result, nil
}
