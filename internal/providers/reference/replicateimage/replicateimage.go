// Package replicateimage is a reference beam.ImageProvider backed by a
// Stable-Diffusion-class model hosted on Replicate. It is illustrative
// wiring for the domain stack, not a production client.
package replicateimage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/providers"
	"github.com/praetorian-inc/beamforge/pkg/registry"
	"github.com/praetorian-inc/beamforge/pkg/retry"
	replicatego "github.com/replicate/replicate-go"
)

func init() {
	providers.RegisterImage("replicate.Image", New)
}

// Config holds the Replicate image provider's configuration.
type Config struct {
	Model   string
	APIKey  string
	BaseURL string
}

// ConfigFromMap parses a registry.Config map into a typed Config.
func ConfigFromMap(m registry.Config) (Config, error) {
	model, err := registry.RequireString(m, "model")
	if err != nil {
		return Config{}, fmt.Errorf("replicate.Image requires 'model' configuration")
	}
	apiKey, err := registry.GetAPIKeyWithEnv(m, "REPLICATE_API_TOKEN", "replicate.Image")
	if err != nil {
		return Config{}, err
	}
	return Config{Model: model, APIKey: apiKey, BaseURL: registry.GetString(m, "base_url", "")}, nil
}

// Provider is the reference beam.ImageProvider.
type Provider struct {
	client *replicatego.Client
	model  string
}

// New builds a Provider from legacy registry.Config.
func New(m registry.Config) (beam.ImageProvider, error) {
	cfg, err := ConfigFromMap(m)
	if err != nil {
		return nil, err
	}
	return NewTyped(cfg)
}

// NewTyped builds a Provider from a typed Config.
func NewTyped(cfg Config) (*Provider, error) {
	opts := []replicatego.ClientOption{replicatego.WithToken(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, replicatego.WithBaseURL(cfg.BaseURL))
	}
	client, err := replicatego.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("replicateimage: failed to create client: %w", err)
	}
	return &Provider{client: client, model: cfg.Model}, nil
}

// Generate runs the configured model on Replicate and returns the first
// image URL in its output. A Replicate safety-filter rejection surfaces as
// a "safety_violations=[...]"-shaped error message, which
// beam.IsSafetyViolation recognizes and the candidate pipeline retries once
// with a rephrased prompt.
func (p *Provider) Generate(ctx context.Context, prompt string, opts beam.ImageGenOptions) (beam.ImageGenResult, error) {
	input := replicatego.PredictionInput{
		"prompt": prompt,
		"seed":   opts.Seed,
	}
	if opts.Size != "" {
		input["size"] = opts.Size
	}
	if opts.Quality != "" {
		input["quality"] = opts.Quality
	}
	if opts.InputImage != nil && opts.InputImage.Usable() {
		input["image"] = firstNonEmpty(opts.InputImage.URL, opts.InputImage.LocalPath)
		input["prompt_strength"] = float64(opts.DenoiseStrength)
	}

	var output replicatego.PredictionOutput
	retryCfg := retry.DefaultConfig()
	retryCfg.RetryableFunc = isTransientReplicateError
	err := retry.Do(ctx, retryCfg, func() error {
		var runErr error
		output, runErr = p.client.Run(ctx, p.model, input, nil)
		return runErr
	})
	if err != nil {
		return beam.ImageGenResult{}, p.wrapError(err)
	}

	url := extractURL(output)
	if url == "" {
		return beam.ImageGenResult{}, fmt.Errorf("replicateimage: model returned no image")
	}

	return beam.ImageGenResult{Image: beam.Image{
		URL: url,
		Metadata: beam.ImageMetadata{
			Model: p.model,
			Size:  opts.Size,
			Seed:  opts.Seed,
		},
	}}, nil
}

// isTransientReplicateError decides which Run failures are worth a retry:
// rate limits and server errors, but never a safety-filter rejection, which
// the pipeline's own single rephrase-retry handles.
func isTransientReplicateError(err error) bool {
	if _, ok := beam.IsSafetyViolation(err); ok {
		return false
	}
	var apiErr *replicatego.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}
	return true
}

func extractURL(output replicatego.PredictionOutput) string {
	switch v := output.(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	case []any:
		for _, elem := range v {
			if s, ok := elem.(string); ok {
				return s
			}
		}
	}
	return ""
}

func (p *Provider) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*replicatego.APIError); ok {
		return fmt.Errorf("replicateimage: API error (status %d): %w", apiErr.Status, err)
	}
	return fmt.Errorf("replicateimage: %w", err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
