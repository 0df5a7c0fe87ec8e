package analysis

import (
	"fmt"
	"strings"

	"github.com/adforge/ad-recipe-back/internal/ai"
)

const conceptSystemPrompt = `You are analyzing a marketing image intended for use in paid social ads.

Generate an extremely detailed, structured description of the image as JSON. Focus on layout, visual hierarchy, components, spacing, and design purpose. Abstract every component into a reusable template form (e.g. "product photo area", "feature badge", "call-to-action button") without referencing product-specific branding.

Respond with a single JSON object matching this structure:
{
  "title": "short descriptive name for this ad concept template",
  "summary": "1-3 sentence description of the concept and its purpose",
  "details": {
    "elements": [{"type": "...", "position": "...", "purpose": "...", "styling": "..."}],
    "visual_flow": "how the viewer's attention moves through the image",
    "visual_tone": "overall tone/vibe of the image",
    "color_palette": {"primary": "...", "secondary": "...", "accent": "..."},
    "spacing_strategy": "how spacing and typography are used",
    "best_practices": ["persuasive imagery practices the ad applies"],
    "primary_offering_visibility": {"is_visible": true}
  }
}

"title", "summary" and every listed "details" section are required. Add any further observations to "details". Output JSON only.`

const salesPageSystemPrompt = `You are an expert marketing assistant. Analyze the sales page at the given URL and extract the information an advertiser needs to build ad creatives.

Respond with a single JSON object matching this structure:
{
  "title": "the product name",
  "summary": "tagline or one-sentence value proposition",
  "details": {
    "key_benefits": ["..."],
    "features": ["..."],
    "target_audience": "...",
    "offer": {"discount": "...", "guarantee": "..."},
    "call_to_action": "...",
    "social_proof": {"testimonials": [], "media_mentions": []},
    "brand_voice": "..."
  }
}

"title", "summary" and the listed "details" sections are required. Add any further marketing observations to "details". Output JSON only.`

const conceptUserPrompt = `Analyze this product image and provide a detailed structured description following the required JSON structure exactly.`

// correctiveInstruction is appended when a previous response failed
// validation, telling the model exactly what to repair.
func correctiveInstruction(reason string) string {
	return fmt.Sprintf(
		"Your previous response was rejected: %s. Respond again with a single valid JSON object containing the required \"title\" and \"summary\" fields and every required \"details\" section. Do not wrap the JSON in prose or code fences.",
		reason,
	)
}

func systemPrompt(kind ai.TaskKind) string {
	if kind == ai.TaskSalesPage {
		return salesPageSystemPrompt
	}
	return conceptSystemPrompt
}

func userPrompt(kind ai.TaskKind, url string, pageContext string) string {
	if kind == ai.TaskSalesPage {
		return fmt.Sprintf("Analyze the sales page at this URL: %s and extract information in the exact JSON format specified.", url)
	}

	var builder strings.Builder
	builder.WriteString(conceptUserPrompt)
	if strings.TrimSpace(pageContext) != "" {
		builder.WriteString("\n\nProduct context extracted from the sales page (use its terminology where it fits):\n")
		builder.WriteString(pageContext)
	}
	return builder.String()
}
