// Package analysis turns a URL into a validated artifact by calling the
// vision model, repairing wrapped or partial JSON output, and re-invoking the
// model with corrective instructions when validation fails.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/adforge/ad-recipe-back/internal/ai"
	"github.com/adforge/ad-recipe-back/internal/domain"
	"github.com/adforge/ad-recipe-back/internal/extract"
)

const defaultMaxAttempts = 5

type Dependencies struct {
	Router *ai.ModelRouter
	Client ai.VisionGenerator
	// MaxAttempts bounds the validate-and-retry loop, not transport retries.
	MaxAttempts int
	Logger      *log.Logger
}

type Analyzer struct {
	router      *ai.ModelRouter
	client      ai.VisionGenerator
	maxAttempts int
	logger      *log.Logger
}

type Input struct {
	Kind ai.TaskKind
	URL  string
	// PageContext optionally carries sales-page analysis JSON so the concept
	// model can use product-specific terminology.
	PageContext json.RawMessage
}

func NewAnalyzer(deps Dependencies) *Analyzer {
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = defaultMaxAttempts
	}
	return &Analyzer{
		router:      deps.Router,
		client:      deps.Client,
		maxAttempts: deps.MaxAttempts,
		logger:      deps.Logger,
	}
}

// Analyze runs the bounded request/validate/repair loop. It fails with
// *UpstreamError when the provider is unreachable on both primary and
// fallback models, and with *ValidationError when no attempt yields a
// recoverable title and summary. Missing non-essential detail sections are
// backfilled with documented placeholders rather than failing the task.
func (a *Analyzer) Analyze(ctx context.Context, input Input) (domain.Artifact, error) {
	if strings.TrimSpace(input.URL) == "" {
		return domain.Artifact{}, &ValidationError{
			Kind:     string(input.Kind),
			Attempts: 0,
			Reason:   "input URL is empty",
		}
	}

	profile := a.router.Select(input.Kind)
	basePrompt := userPrompt(input.Kind, input.URL, string(input.PageContext))
	instructions := systemPrompt(input.Kind)

	var (
		best           *domain.Artifact
		partialTitle   string
		partialSummary string
		lastReason     = "no model response"
	)

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		prompt := basePrompt
		if attempt > 1 {
			prompt = basePrompt + "\n\n" + correctiveInstruction(lastReason)
		}

		text, err := a.generate(ctx, profile, instructions, prompt, input)
		if err != nil {
			return domain.Artifact{}, &UpstreamError{Kind: string(input.Kind), Err: err}
		}

		parsed := extract.TryExtractStructured(text)
		if parsed == nil {
			lastReason = "response contained no parseable JSON object"
			a.logf("analysis attempt %d/%d for %s: %s", attempt, a.maxAttempts, input.Kind, lastReason)
			continue
		}

		artifact := decodeArtifact(parsed)
		validErr := ValidateArtifact(artifact, input.Kind)
		if validErr == nil {
			return artifact, nil
		}
		lastReason = validErr.Error()

		if strings.TrimSpace(artifact.Title) != "" {
			partialTitle = artifact.Title
		}
		if strings.TrimSpace(artifact.Summary) != "" {
			partialSummary = artifact.Summary
		}
		// Remember the best partial result: title and summary are the
		// unforgeable core, detail sections can be backfilled.
		if strings.TrimSpace(artifact.Title) != "" && strings.TrimSpace(artifact.Summary) != "" {
			copied := artifact
			best = &copied
		}
		a.logf("analysis attempt %d/%d for %s rejected: %s", attempt, a.maxAttempts, input.Kind, lastReason)
	}

	if best != nil {
		fillPlaceholders(best, input.Kind)
		a.logf("analysis for %s accepted with placeholder detail sections after %d attempts", input.Kind, a.maxAttempts)
		return *best, nil
	}

	return domain.Artifact{}, &ValidationError{
		Kind:           string(input.Kind),
		Attempts:       a.maxAttempts,
		PartialTitle:   partialTitle,
		PartialSummary: partialSummary,
		Reason:         lastReason,
	}
}

func (a *Analyzer) generate(
	ctx context.Context,
	profile ai.ModelProfile,
	instructions string,
	prompt string,
	input Input,
) (string, error) {
	request := ai.GenerateRequest{
		Model:           profile.PrimaryModel,
		Instructions:    instructions,
		Input:           prompt,
		Temperature:     profile.Temperature,
		MaxOutputTokens: profile.MaxOutputTokens,
	}
	if input.Kind == ai.TaskConcept {
		request.ImageURL = input.URL
	}

	result, err := a.client.Generate(ctx, request)
	if err == nil {
		return result.Text, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	a.logf("primary model %s failed, trying fallback %s: %v", profile.PrimaryModel, profile.FallbackModel, err)
	request.Model = profile.FallbackModel
	fallbackResult, fallbackErr := a.client.Generate(ctx, request)
	if fallbackErr != nil {
		return "", fmt.Errorf("primary: %v; fallback: %w", err, fallbackErr)
	}
	return fallbackResult.Text, nil
}

func decodeArtifact(parsed map[string]any) domain.Artifact {
	artifact := domain.Artifact{}
	if title, ok := parsed["title"].(string); ok {
		artifact.Title = strings.TrimSpace(title)
	}
	if summary, ok := parsed["summary"].(string); ok {
		artifact.Summary = strings.TrimSpace(summary)
	}
	if details, ok := parsed["details"].(map[string]any); ok {
		artifact.Details = details
	}
	return artifact
}

func (a *Analyzer) logf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}
