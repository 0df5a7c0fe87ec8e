package analysis

import (
	"fmt"
	"strings"

	"github.com/adforge/ad-recipe-back/internal/ai"
	"github.com/adforge/ad-recipe-back/internal/domain"
)

var conceptDetailKeys = []string{
	"elements",
	"visual_flow",
	"visual_tone",
	"color_palette",
	"spacing_strategy",
	"best_practices",
	"primary_offering_visibility",
}

var salesPageDetailKeys = []string{
	"key_benefits",
	"features",
	"target_audience",
	"offer",
	"call_to_action",
}

// RequiredDetailKeys returns the detail-map sections an artifact of the given
// kind must carry to be accepted.
func RequiredDetailKeys(kind ai.TaskKind) []string {
	if kind == ai.TaskSalesPage {
		return salesPageDetailKeys
	}
	return conceptDetailKeys
}

// ValidateArtifact enforces the acceptance contract: non-empty title and
// summary, plus every required detail key for the kind. Cached artifacts go
// through the same check before reuse, so stale or malformed cache entries
// trigger regeneration instead of poisoning a recipe.
func ValidateArtifact(artifact domain.Artifact, kind ai.TaskKind) error {
	if strings.TrimSpace(artifact.Title) == "" {
		return fmt.Errorf("missing required field title")
	}
	if strings.TrimSpace(artifact.Summary) == "" {
		return fmt.Errorf("missing required field summary")
	}
	if artifact.Details == nil {
		return fmt.Errorf("missing details map")
	}
	for _, key := range RequiredDetailKeys(kind) {
		if _, present := artifact.Details[key]; !present {
			return fmt.Errorf("missing details section %q", key)
		}
	}
	return nil
}

// fillPlaceholders synthesizes documented placeholders for missing
// non-essential detail sections. Title and summary are never fabricated.
func fillPlaceholders(artifact *domain.Artifact, kind ai.TaskKind) {
	if artifact.Details == nil {
		artifact.Details = make(map[string]any)
	}
	for _, key := range RequiredDetailKeys(kind) {
		if _, present := artifact.Details[key]; present {
			continue
		}
		artifact.Details[key] = placeholderValue(key)
	}
}

func placeholderValue(key string) any {
	switch key {
	case "elements":
		return []any{map[string]any{
			"type":     "unspecified",
			"position": "unknown",
			"purpose":  "not recovered from model output",
			"styling":  "not recovered from model output",
		}}
	case "key_benefits", "features", "best_practices":
		return []any{"not recovered from model output"}
	case "primary_offering_visibility":
		return map[string]any{"is_visible": true, "note": "not recovered from model output"}
	case "color_palette", "offer":
		return map[string]any{"note": "not recovered from model output"}
	default:
		return "not recovered from model output"
	}
}
