// Package critique is a reference beam.CritiqueGenerator reusing the same
// OpenAI chat client as internal/providers/reference/openaitext, but with a
// distinct system prompt tailored to producing actionable refinement
// feedback rather than raw prompt text.
package critique

import (
	"context"
	"fmt"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/providers"
	"github.com/praetorian-inc/beamforge/pkg/registry"
	goopenai "github.com/sashabaranov/go-openai"
)

func init() {
	providers.RegisterCritique("openai.Critique", New)
}

// Config holds the critique provider's configuration.
type Config struct {
	Model       string
	APIKey      string
	Temperature float32
}

// ConfigFromMap parses a registry.Config map into a typed Config.
func ConfigFromMap(m registry.Config) (Config, error) {
	apiKey, err := registry.GetAPIKeyWithEnv(m, "OPENAI_API_KEY", "openai.Critique")
	if err != nil {
		return Config{}, err
	}
	return Config{
		Model:       registry.GetString(m, "model", "gpt-4o"),
		APIKey:      apiKey,
		Temperature: registry.GetFloat32(m, "temperature", 0.3),
	}, nil
}

// Provider is the reference beam.CritiqueGenerator.
type Provider struct {
	client *goopenai.Client
	cfg    Config
}

// New builds a Provider from legacy registry.Config.
func New(m registry.Config) (beam.CritiqueGenerator, error) {
	cfg, err := ConfigFromMap(m)
	if err != nil {
		return nil, err
	}
	return &Provider{client: goopenai.NewClient(cfg.APIKey), cfg: cfg}, nil
}

// Critique asks the model for one actionable suggestion to improve the
// given dimension of the prompt, given whatever feedback is available
// (ranking preferred over evaluation per §4.4).
func (p *Provider) Critique(ctx context.Context, feedback beam.Feedback, prompts beam.PromptPair, combined, userPrompt string, opts beam.CritiqueOptions) (beam.CritiqueResult, error) {
	system := fmt.Sprintf(
		"You critique the %q half of an image generation prompt across refinement iterations. "+
			"Reply with exactly two lines: \"critique: <one actionable suggestion>\" and "+
			"\"recommendation: <keep|revise>\".", opts.Dimension)

	user := fmt.Sprintf("User goal: %s\nWhat: %s\nHow: %s\nCombined: %s\n%s",
		userPrompt, prompts.What, prompts.How, combined, describeFeedback(feedback))

	resp, err := p.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return beam.CritiqueResult{}, fmt.Errorf("critique: %w", err)
	}
	if len(resp.Choices) == 0 {
		return beam.CritiqueResult{}, fmt.Errorf("critique: empty response")
	}

	text := resp.Choices[0].Message.Content
	return beam.CritiqueResult{
		Critique:       text,
		Recommendation: text,
		Metadata:       beam.ProviderMetadata{Model: p.cfg.Model, TokensUsed: resp.Usage.TotalTokens},
	}, nil
}

func describeFeedback(f beam.Feedback) string {
	switch {
	case f.Ranking != nil:
		return fmt.Sprintf("Ranking: rank %d of its generation, %d win(s).", f.Ranking.Rank, f.Ranking.Wins)
	case f.Evaluation != nil:
		return fmt.Sprintf("Evaluation: alignment %.1f, aesthetic %.1f.", f.Evaluation.AlignmentScore, f.Evaluation.AestheticScore)
	default:
		return "No prior feedback available."
	}
}
