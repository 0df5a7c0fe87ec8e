package domain

import "encoding/json"

// Artifact is the structured output of one analysis call. Title and Summary
// are required for an artifact to be accepted; Details is an open-ended map
// whose required keys depend on the task kind.
type Artifact struct {
	Title   string         `json:"title"`
	Summary string         `json:"summary"`
	Details map[string]any `json:"details"`
}

// ConceptRecord is a cached ad-concept artifact keyed by the caller-supplied
// ad archive ID (a business key, distinct from any task ID).
type ConceptRecord struct {
	AdArchiveID string          `json:"ad_archive_id"`
	ImageURL    string          `json:"image_url"`
	ConceptJSON json.RawMessage `json:"concept_json"`
	UserID      string          `json:"user_id"`
}

// RecipeRecord aggregates both analyses and the composed generation prompt.
type RecipeRecord struct {
	AdArchiveID   string          `json:"ad_archive_id"`
	ImageURL      string          `json:"image_url"`
	SalesURL      string          `json:"sales_url"`
	AdConceptJSON json.RawMessage `json:"ad_concept_json"`
	SalesPageJSON json.RawMessage `json:"sales_page_json"`
	RecipePrompt  string          `json:"recipe_prompt"`
	UserID        string          `json:"user_id"`
}

// Task payloads carried inside QueueMessage.Payload.

type AdConceptPayload struct {
	ImageURL string `json:"image_url"`
	// PageContext carries sales-page analysis JSON when the concept task runs
	// as part of a recipe chain, so the model can use product terminology.
	PageContext json.RawMessage `json:"page_context,omitempty"`
}

type SalesPagePayload struct {
	PageURL string `json:"page_url"`
}

type AdRecipePayload struct {
	AdArchiveID string `json:"ad_archive_id"`
	ImageURL    string `json:"image_url"`
	SalesURL    string `json:"sales_url"`
	UserID      string `json:"user_id"`
}
