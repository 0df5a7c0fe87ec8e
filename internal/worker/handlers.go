package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adforge/ad-recipe-back/internal/ai"
	"github.com/adforge/ad-recipe-back/internal/analysis"
	"github.com/adforge/ad-recipe-back/internal/domain"
)

// NewAdConceptHandler analyzes an ad image URL into a concept artifact.
func NewAdConceptHandler(analyzer *analysis.Analyzer) Handler {
	return func(ctx context.Context, _ string, payload json.RawMessage) (json.RawMessage, error) {
		var input domain.AdConceptPayload
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, fmt.Errorf("decode ad concept payload: %w", err)
		}
		if strings.TrimSpace(input.ImageURL) == "" {
			return nil, fmt.Errorf("image_url is required")
		}

		artifact, err := analyzer.Analyze(ctx, analysis.Input{
			Kind:        ai.TaskConcept,
			URL:         input.ImageURL,
			PageContext: input.PageContext,
		})
		if err != nil {
			return nil, err
		}
		return marshalArtifact(artifact)
	}
}

// NewSalesPageHandler analyzes a sales page URL into a product artifact.
func NewSalesPageHandler(analyzer *analysis.Analyzer) Handler {
	return func(ctx context.Context, _ string, payload json.RawMessage) (json.RawMessage, error) {
		var input domain.SalesPagePayload
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, fmt.Errorf("decode sales page payload: %w", err)
		}
		if strings.TrimSpace(input.PageURL) == "" {
			return nil, fmt.Errorf("page_url is required")
		}

		artifact, err := analyzer.Analyze(ctx, analysis.Input{
			Kind: ai.TaskSalesPage,
			URL:  input.PageURL,
		})
		if err != nil {
			return nil, err
		}
		return marshalArtifact(artifact)
	}
}

func marshalArtifact(artifact domain.Artifact) (json.RawMessage, error) {
	encoded, err := json.Marshal(artifact)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return encoded, nil
}
