// Package openaitext is a reference beam.TextProvider backed by the OpenAI
// chat completions API. It is illustrative wiring for the domain stack, not
// a production client: no retry/backoff beyond what the candidate pipeline's
// safety-retry path already provides.
package openaitext

import (
	"context"
	"fmt"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/providers"
	"github.com/praetorian-inc/beamforge/pkg/registry"
	goopenai "github.com/sashabaranov/go-openai"
)

func init() {
	providers.RegisterText("openai.Text", New)
}

// Config holds the OpenAI text provider's configuration.
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{Model: "gpt-4o", Temperature: 0.7, MaxTokens: 600}
}

// ConfigFromMap parses a registry.Config map into a typed Config.
func ConfigFromMap(m registry.Config) (Config, error) {
	cfg := DefaultConfig()

	cfg.Model = registry.GetString(m, "model", cfg.Model)

	apiKey, err := registry.GetAPIKeyWithEnv(m, "OPENAI_API_KEY", "openai.Text")
	if err != nil {
		return cfg, err
	}
	cfg.APIKey = apiKey

	cfg.BaseURL = registry.GetString(m, "base_url", "")
	cfg.Temperature = registry.GetFloat32(m, "temperature", cfg.Temperature)
	cfg.MaxTokens = registry.GetInt(m, "max_tokens", cfg.MaxTokens)
	return cfg, nil
}

// Provider is the reference beam.TextProvider.
type Provider struct {
	client *goopenai.Client
	cfg    Config
}

// New builds a Provider from legacy registry.Config, the entry point used
// by the global provider registry's factory lookup.
func New(m registry.Config) (beam.TextProvider, error) {
	cfg, err := ConfigFromMap(m)
	if err != nil {
		return nil, err
	}
	return NewTyped(cfg), nil
}

// NewTyped builds a Provider from a typed Config.
func NewTyped(cfg Config) *Provider {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Provider{client: goopenai.NewClientWithConfig(clientCfg), cfg: cfg}
}

func (p *Provider) chat(ctx context.Context, system, user string) (string, beam.ProviderMetadata, error) {
	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", beam.ProviderMetadata{}, fmt.Errorf("openaitext: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", beam.ProviderMetadata{}, fmt.Errorf("openaitext: empty response")
	}
	meta := beam.ProviderMetadata{Model: p.cfg.Model, TokensUsed: resp.Usage.TotalTokens}
	return resp.Choices[0].Message.Content, meta, nil
}

// Expand produces a single refined half of the prompt pair along the given
// dimension.
func (p *Provider) Expand(ctx context.Context, userPrompt string, opts beam.ExpandOptions) (beam.ExpandResult, error) {
	system := fmt.Sprintf("You expand the %q half of an image generation prompt. Reply with only the expanded text.", opts.Dimension)
	text, meta, err := p.chat(ctx, system, userPrompt)
	if err != nil {
		return beam.ExpandResult{}, err
	}
	return beam.ExpandResult{RefinedPrompt: text, Metadata: meta}, nil
}

// Refine rewrites currentPrompt in response to a critique.
func (p *Provider) Refine(ctx context.Context, currentPrompt string, opts beam.RefineOptions) (beam.RefineResult, error) {
	system := fmt.Sprintf("You refine the %q half of an image generation prompt given a critique. Reply with only the refined text.", opts.Dimension)
	user := fmt.Sprintf("User goal: %s\nCurrent: %s\nCritique: %s", opts.UserPrompt, currentPrompt, opts.Critique)
	text, meta, err := p.chat(ctx, system, user)
	if err != nil {
		return beam.RefineResult{}, err
	}
	return beam.RefineResult{RefinedPrompt: text, Metadata: meta}, nil
}

// Combine merges the what/how halves into one generation-ready prompt.
func (p *Provider) Combine(ctx context.Context, what, how string) (beam.CombineResult, error) {
	system := "You merge a content description and a style description into one coherent image generation prompt. Reply with only the merged prompt."
	user := fmt.Sprintf("Content: %s\nStyle: %s", what, how)
	text, meta, err := p.chat(ctx, system, user)
	if err != nil {
		return beam.CombineResult{}, err
	}
	return beam.CombineResult{CombinedPrompt: text, Metadata: meta}, nil
}

// GenerateText is used only by the safety-rephrase path.
func (p *Provider) GenerateText(ctx context.Context, userMessage string, opts beam.GenerateTextOptions) (string, error) {
	system := opts.SystemPrompt
	if system == "" {
		system = "Reply concisely."
	}
	text, _, err := p.chat(ctx, system, userMessage)
	return text, err
}
