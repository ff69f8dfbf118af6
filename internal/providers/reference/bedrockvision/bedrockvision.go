// Package bedrockvision is a reference beam.EvaluationProvider and
// beam.PairwiseJudge backed by a vision-capable Claude model on AWS
// Bedrock. It is illustrative wiring for the domain stack, not a
// production client: the candidate image bytes are never fetched or
// base64-encoded (imageBlock sends the image's URL or local path to the
// model as text), and response parsing assumes a well-behaved model.
package bedrockvision

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/providers"
	"github.com/praetorian-inc/beamforge/pkg/registry"
)

func init() {
	providers.RegisterEvaluation("bedrock.Vision", NewEvaluation)
	providers.RegisterJudge("bedrock.Vision", NewJudge)
}

const (
	defaultMaxTokens   = 400
	anthropicVersion   = "bedrock-2023-05-31"
)

// Config holds the Bedrock vision provider's configuration.
type Config struct {
	ModelID     string
	Region      string
	MaxTokens   int
	Temperature float64
}

// ConfigFromMap parses a registry.Config map into a typed Config.
func ConfigFromMap(m registry.Config) (Config, error) {
	modelID, err := registry.RequireString(m, "model")
	if err != nil {
		return Config{}, fmt.Errorf("bedrock.Vision requires 'model' configuration")
	}
	region, err := registry.RequireString(m, "region")
	if err != nil {
		return Config{}, fmt.Errorf("bedrock.Vision requires 'region' configuration")
	}
	return Config{
		ModelID:     modelID,
		Region:      region,
		MaxTokens:   registry.GetInt(m, "max_tokens", defaultMaxTokens),
		Temperature: registry.GetFloat64(m, "temperature", 0.0),
	}, nil
}

// Provider is the reference beam.EvaluationProvider / beam.PairwiseJudge.
type Provider struct {
	client *bedrockruntime.Client
	cfg    Config
}

func newProvider(m registry.Config) (*Provider, error) {
	cfg, err := ConfigFromMap(m)
	if err != nil {
		return nil, err
	}
	awsCfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("bedrockvision: failed to load AWS config: %w", err)
	}
	return &Provider{client: bedrockruntime.NewFromConfig(awsCfg), cfg: cfg}, nil
}

// NewEvaluation builds a Provider exposed as a beam.EvaluationProvider.
func NewEvaluation(m registry.Config) (beam.EvaluationProvider, error) { return newProvider(m) }

// NewJudge builds a Provider exposed as a beam.PairwiseJudge.
func NewJudge(m registry.Config) (beam.PairwiseJudge, error) { return newProvider(m) }

func (p *Provider) invoke(ctx context.Context, content []map[string]any) (string, int, error) {
	body, err := json.Marshal(map[string]any{
		"anthropic_version": anthropicVersion,
		"max_tokens":        p.cfg.MaxTokens,
		"temperature":       p.cfg.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": content},
		},
	})
	if err != nil {
		return "", 0, fmt.Errorf("bedrockvision: marshal request: %w", err)
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.cfg.ModelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", 0, p.handleError(err)
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", 0, fmt.Errorf("bedrockvision: unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	return text.String(), resp.Usage.InputTokens + resp.Usage.OutputTokens, nil
}

func imageBlock(img beam.Image) map[string]any {
	ref := img.URL
	if ref == "" {
		ref = img.LocalPath
	}
	// A production client would fetch and base64-encode the bytes into an
	// {"type":"image","source":{"type":"base64",...}} block; this
	// reference adapter passes the reference by URL in text instead.
	return map[string]any{"type": "text", "text": fmt.Sprintf("[image reference: %s]", ref)}
}

// Analyze scores a candidate image's alignment and aesthetic quality
// against its combined prompt.
func (p *Provider) Analyze(ctx context.Context, image beam.Image, combinedPrompt string) (beam.AnalyzeResult, error) {
	instruction := fmt.Sprintf(
		"Score the image against this prompt: %q. Reply with exactly two lines: "+
			"\"alignment: <0-100>\" and \"aesthetic: <0-10>\".", combinedPrompt)
	content := []map[string]any{
		imageBlock(image),
		{"type": "text", "text": instruction},
	}

	text, tokens, err := p.invoke(ctx, content)
	if err != nil {
		return beam.AnalyzeResult{}, err
	}

	alignment, aesthetic := parseScores(text)
	return beam.AnalyzeResult{
		AlignmentScore: alignment,
		AestheticScore: aesthetic,
		Analysis:       text,
		Metadata:       beam.ProviderMetadata{Model: p.cfg.ModelID, TokensUsed: tokens},
	}, nil
}

// Compare judges which of two candidate images better satisfies userPrompt.
func (p *Provider) Compare(ctx context.Context, imgA, imgB beam.JudgeImage, userPrompt string) (beam.CompareResult, error) {
	instruction := fmt.Sprintf(
		"Two images (A then B) were generated from the same goal: %q. "+
			"Reply with exactly two lines: \"winner: A\" or \"winner: B\", then \"reason: <why>\".", userPrompt)
	content := []map[string]any{
		imageBlock(imgA.Image),
		imageBlock(imgB.Image),
		{"type": "text", "text": instruction},
	}

	text, tokens, err := p.invoke(ctx, content)
	if err != nil {
		return beam.CompareResult{}, err
	}

	winner := beam.WinnerA
	if strings.Contains(strings.ToLower(text), "winner: b") {
		winner = beam.WinnerB
	}
	return beam.CompareResult{Winner: winner, Reason: text, TokensUsed: tokens}, nil
}

func parseScores(text string) (alignment, aesthetic float32) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if v, ok := strings.CutPrefix(line, "alignment:"); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 32); err == nil {
				alignment = float32(f)
			}
		}
		if v, ok := strings.CutPrefix(line, "aesthetic:"); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 32); err == nil {
				aesthetic = float32(f)
			}
		}
	}
	return alignment, aesthetic
}

func (p *Provider) handleError(err error) error {
	errStr := err.Error()
	if strings.Contains(errStr, "ThrottlingException") || strings.Contains(errStr, "TooManyRequestsException") {
		return fmt.Errorf("bedrockvision: rate limit exceeded: %w", err)
	}
	if strings.Contains(errStr, "AccessDeniedException") {
		return fmt.Errorf("bedrockvision: authentication error: %w", err)
	}
	return fmt.Errorf("bedrockvision: API error: %w", err)
}
