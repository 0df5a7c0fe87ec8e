package worker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"
)

var recipeTemplate = template.Must(template.New("ad_recipe").Parse(`You are an expert ad creative designer. Create a high-converting Facebook ad using the provided information and assets:

### EXISTING AD CONCEPT (JSON):
This contains the visual layout, structure, and design approach to replicate.
{{.ConceptJSON}}

### PRODUCT INFORMATION (JSON):
This contains the core product details to include in your ad.
{{.SalesPageJSON}}

### USER-PROVIDED ASSETS:
You will receive product image(s), a brand logo, and any additional visual assets the user provides.

### CREATIVE REQUIREMENTS:

1. FORMAT: Facebook Ad (9:16 vertical format) with standard margins and safe zones.
2. LAYOUT & STRUCTURE: follow EXACTLY the layout structure described in the ad concept JSON, preserving visual hierarchy, element positioning, and proportional sizing.
3. VISUAL IDENTITY: use ONLY the user-provided product images and logo, keep their exact proportions, and extract the brand color palette from the provided assets.
4. PRIMARY OFFERING VISIBILITY: check "primary_offering_visibility" in the ad concept JSON; feature the product image prominently when "is_visible" is true, otherwise follow the conceptual approach without showing the product.
5. MESSAGING: use the tone and style from the ad concept JSON, pull specific copy points from the product information JSON, and include a call-to-action matching the original concept.
6. TECHNICAL: crisp high-resolution output, mobile-legible text, and compliance with Facebook ad policies on text-to-image ratio.

### PROCESS:
1. Analyze the ad concept JSON to understand the visual approach.
2. Extract key details from the product information JSON.
3. Integrate the user-provided assets following the concept structure.
4. Respect the primary offering visibility flag.
5. Generate an ad that blends the proven layout with the user's product and brand identity.

The final result should feel like a professional, high-converting ad that keeps the proven layout structure while showcasing the user's specific product.
`))

// ComposeRecipePrompt substitutes both analysis artifacts into the fixed
// generation-prompt template, pretty-printing each JSON block.
func ComposeRecipePrompt(conceptJSON, salesPageJSON json.RawMessage) (string, error) {
	concept, err := indentJSON(conceptJSON)
	if err != nil {
		return "", fmt.Errorf("format concept json: %w", err)
	}
	salesPage, err := indentJSON(salesPageJSON)
	if err != nil {
		return "", fmt.Errorf("format sales page json: %w", err)
	}

	var rendered bytes.Buffer
	err = recipeTemplate.Execute(&rendered, struct {
		ConceptJSON   string
		SalesPageJSON string
	}{
		ConceptJSON:   concept,
		SalesPageJSON: salesPage,
	})
	if err != nil {
		return "", fmt.Errorf("render recipe template: %w", err)
	}
	return rendered.String(), nil
}

func indentJSON(raw json.RawMessage) (string, error) {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return "", err
	}
	return pretty.String(), nil
}
