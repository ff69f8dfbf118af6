package pipeline

import (
	"context"
	"errors"

	"github.com/praetorian-inc/beamforge/pkg/beam"
	"github.com/praetorian-inc/beamforge/pkg/progress"
	"github.com/praetorian-inc/beamforge/pkg/ratelimit"
)

const (
	rephraseTemperature = 0.7
	rephraseMaxTokens   = 500
)

// generateWithSafetyRetry implements §4.2 step 3: generate the image; on a
// recognized safety-violation error, rephrase the prompt once under the
// text limiter and retry image generation exactly once. Any other error
// propagates without retry. Returns the image and whether a safety rephrase
// occurred.
func (p *Pipeline) generateWithSafetyRetry(ctx context.Context, opts Options, combined string) (beam.Image, bool, error) {
	p.publish(progress.Event{Stage: progress.StageImageGen, Status: progress.StatusStarting, CandidateID: &opts.ID, Message: "generating image"})

	img, err := p.generateImage(ctx, opts, combined)
	if err == nil {
		p.publish(progress.Event{Stage: progress.StageImageGen, Status: progress.StatusComplete, CandidateID: &opts.ID, ImageURL: firstNonEmpty(img.URL, img.LocalPath), Message: "image generated"})
		return img, false, nil
	}
	if errors.Is(err, beam.ErrCancelled) {
		return beam.Image{}, false, err
	}

	sv, isSafety := beam.IsSafetyViolation(err)
	if !isSafety {
		p.publishError(opts.ID, progress.StageImageGen, err)
		return beam.Image{}, false, p.wrapTransient(opts.ID, "imageGen", err)
	}

	p.publish(progress.Event{Stage: progress.StageSafety, Status: progress.StatusRephrasing, CandidateID: &opts.ID, Message: "rephrasing prompt after safety violation", Err: sv})

	rephrased, rephraseErr := ratelimit.Execute(ctx, p.limiters.Text, func(ctx context.Context) (string, error) {
		return p.providers.Text.GenerateText(ctx, combined, beam.GenerateTextOptions{
			SystemPrompt: "Rephrase the following image prompt to avoid content-policy rejection while preserving its artistic intent.",
			MaxTokens:    rephraseMaxTokens,
			Temperature:  rephraseTemperature,
		})
	})
	if rephraseErr != nil || rephrased == "" {
		// Rephrasing itself failed or returned empty: surface the original
		// error (§4.2 step 3).
		p.publish(progress.Event{Stage: progress.StageSafety, Status: progress.StatusFailed, CandidateID: &opts.ID, Message: "safety rephrase failed", Err: sv})
		return beam.Image{}, false, p.wrapTransient(opts.ID, "safety-rephrase", sv)
	}

	p.publish(progress.Event{Stage: progress.StageSafety, Status: progress.StatusRetrying, CandidateID: &opts.ID, Message: "retrying image generation with rephrased prompt"})

	retryOpts := opts
	img, err = p.generateImage(ctx, retryOpts, rephrased)
	if err != nil {
		if errors.Is(err, beam.ErrCancelled) {
			return beam.Image{}, false, err
		}
		p.publish(progress.Event{Stage: progress.StageSafety, Status: progress.StatusFailed, CandidateID: &opts.ID, Message: "safety retry failed", Err: sv})
		// The retry failed too: surface the original violation, annotated.
		return beam.Image{}, false, p.wrapTransient(opts.ID, "imageGen-safety-retry", sv)
	}

	img.Metadata.SafetyRephrased = true
	img.Metadata.OriginalPrompt = combined
	img.Metadata.RephrasedPrompt = rephrased

	p.publish(progress.Event{Stage: progress.StageSafety, Status: progress.StatusSuccess, CandidateID: &opts.ID, Message: "image generated after safety rephrase"})
	p.publish(progress.Event{Stage: progress.StageImageGen, Status: progress.StatusComplete, CandidateID: &opts.ID, ImageURL: firstNonEmpty(img.URL, img.LocalPath), Message: "image generated"})

	return img, true, nil
}

func (p *Pipeline) generateImage(ctx context.Context, opts Options, prompt string) (beam.Image, error) {
	res, err := ratelimit.Execute(ctx, p.limiters.Image, func(ctx context.Context) (beam.ImageGenResult, error) {
		return p.providers.Image.Generate(ctx, prompt, beam.ImageGenOptions{
			Dimension:   opts.Dimension,
			CandidateID: opts.ID,
			Seed:        opts.Seed,
			Size:        opts.Size,
			Quality:     opts.Quality,
		})
	})
	if err != nil {
		return beam.Image{}, err
	}
	return res.Image, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
