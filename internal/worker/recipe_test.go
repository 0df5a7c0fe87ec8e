package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adforge/ad-recipe-back/internal/domain"
	"github.com/adforge/ad-recipe-back/internal/repository"
	"github.com/adforge/ad-recipe-back/internal/taskstore"
)

const validConceptResult = `{
	"title": "Hero Product Showcase",
	"summary": "Centered product shot with benefit badges.",
	"details": {
		"elements": [{"type": "product_photo"}],
		"visual_flow": "product first",
		"visual_tone": "clean",
		"color_palette": {"primary": "white"},
		"spacing_strategy": "negative space",
		"best_practices": ["focal point"],
		"primary_offering_visibility": {"is_visible": true}
	}
}`

const validSalesResult = `{
	"title": "HydraBoost Serum",
	"summary": "Deep hydration in one step.",
	"details": {
		"key_benefits": ["hydration"],
		"features": ["hyaluronic acid"],
		"target_audience": "adults with dry skin",
		"offer": {"discount": "20%"},
		"call_to_action": "Shop now"
	}
}`

var (
	errSales   = errors.New("sales page unreachable")
	errConcept = errors.New("vision model rejected image")
)

type recipeFixture struct {
	processor    *Processor
	store        *taskstore.MemoryStore
	concepts     *repository.MemoryConceptsRepository
	recipes      *repository.MemoryRecipesRepository
	conceptCalls atomic.Int32
	salesCalls   atomic.Int32
}

func newRecipeFixture(conceptErr, salesErr error) *recipeFixture {
	f := &recipeFixture{
		store:    taskstore.NewMemoryStore(time.Hour),
		concepts: repository.NewMemoryConceptsRepository(),
		recipes:  repository.NewMemoryRecipesRepository(),
	}
	f.processor = NewProcessor(nil, f.store, nil)

	f.processor.Register(domain.TaskKindAdConcept, func(context.Context, string, json.RawMessage) (json.RawMessage, error) {
		f.conceptCalls.Add(1)
		if conceptErr != nil {
			return nil, conceptErr
		}
		return json.RawMessage(validConceptResult), nil
	})
	f.processor.Register(domain.TaskKindSalesPage, func(context.Context, string, json.RawMessage) (json.RawMessage, error) {
		f.salesCalls.Add(1)
		if salesErr != nil {
			return nil, salesErr
		}
		return json.RawMessage(validSalesResult), nil
	})
	f.processor.Register(domain.TaskKindAdRecipe, NewAdRecipeHandler(RecipeDependencies{
		Inline:   f.processor,
		Store:    f.store,
		Concepts: f.concepts,
		Recipes:  f.recipes,
	}))
	return f
}

func recipePayload() json.RawMessage {
	payload, _ := json.Marshal(domain.AdRecipePayload{
		AdArchiveID: "archive-42",
		ImageURL:    "https://cdn.example.com/ad.png",
		SalesURL:    "https://shop.example.com/serum",
		UserID:      "7b0d2b0a-8a3e-4b8a-9f6d-111111111111",
	})
	return payload
}

func TestRecipeChainHappyPath(t *testing.T) {
	f := newRecipeFixture(nil, nil)
	ctx := context.Background()

	if _, err := f.processor.Execute(ctx, domain.TaskKindAdRecipe, "parent", recipePayload()); err != nil {
		t.Fatalf("recipe chain failed: %v", err)
	}

	record, err := f.store.Get(ctx, "parent")
	if err != nil {
		t.Fatalf("parent record missing: %v", err)
	}
	if record.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed parent, got %s (%s)", record.Status, record.Error)
	}

	var result domain.RecipeRecord
	if err := json.Unmarshal(record.Result, &result); err != nil {
		t.Fatalf("decode recipe result: %v", err)
	}
	if result.AdArchiveID != "archive-42" {
		t.Fatalf("unexpected archive id: %s", result.AdArchiveID)
	}
	if !strings.Contains(result.RecipePrompt, "Hero Product Showcase") {
		t.Fatalf("recipe prompt must embed the concept artifact")
	}
	if !strings.Contains(result.RecipePrompt, "HydraBoost Serum") {
		t.Fatalf("recipe prompt must embed the sales page artifact")
	}

	if inserted := f.recipes.Inserted(); len(inserted) != 1 {
		t.Fatalf("expected one persisted recipe, got %d", len(inserted))
	}
	if _, err := f.concepts.GetByArchiveID(ctx, "archive-42"); err != nil {
		t.Fatalf("expected concept cached after chain: %v", err)
	}

	// Child records stay independently observable under derived IDs.
	salesRecord, err := f.store.Get(ctx, domain.SalesChildID("parent"))
	if err != nil || salesRecord.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed sales child record, got %+v err=%v", salesRecord, err)
	}
	conceptRecord, err := f.store.Get(ctx, domain.ConceptChildID("parent"))
	if err != nil || conceptRecord.Status != domain.TaskStatusCompleted {
		t.Fatalf("expected completed concept child record, got %+v err=%v", conceptRecord, err)
	}
}

func TestRecipeChainReusesValidCachedConcept(t *testing.T) {
	f := newRecipeFixture(nil, nil)
	ctx := context.Background()

	if err := f.concepts.Store(ctx, domain.ConceptRecord{
		AdArchiveID: "archive-42",
		ImageURL:    "https://cdn.example.com/ad.png",
		ConceptJSON: json.RawMessage(validConceptResult),
		UserID:      "7b0d2b0a-8a3e-4b8a-9f6d-111111111111",
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if _, err := f.processor.Execute(ctx, domain.TaskKindAdRecipe, "parent", recipePayload()); err != nil {
		t.Fatalf("recipe chain failed: %v", err)
	}

	if calls := f.conceptCalls.Load(); calls != 0 {
		t.Fatalf("cached concept must skip regeneration, got %d calls", calls)
	}
	if calls := f.salesCalls.Load(); calls != 1 {
		t.Fatalf("sales page analysis must still run, got %d calls", calls)
	}
}

func TestRecipeChainRegeneratesInvalidCachedConcept(t *testing.T) {
	f := newRecipeFixture(nil, nil)
	ctx := context.Background()

	// Missing required detail sections: present but stale entry.
	stale := json.RawMessage(`{"title":"Old","summary":"Old layout","details":{"visual_tone":"dated"}}`)
	if err := f.concepts.Store(ctx, domain.ConceptRecord{
		AdArchiveID: "archive-42",
		ConceptJSON: stale,
	}); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	if _, err := f.processor.Execute(ctx, domain.TaskKindAdRecipe, "parent", recipePayload()); err != nil {
		t.Fatalf("recipe chain failed: %v", err)
	}

	if calls := f.conceptCalls.Load(); calls != 1 {
		t.Fatalf("invalid cache entry must trigger regeneration, got %d calls", calls)
	}

	refreshed, err := f.concepts.GetByArchiveID(ctx, "archive-42")
	if err != nil {
		t.Fatalf("expected refreshed cache entry: %v", err)
	}
	if strings.Contains(string(refreshed.ConceptJSON), `"Old"`) {
		t.Fatalf("stale entry must be overwritten")
	}
}

func TestRecipeChainPropagatesSalesPageFailure(t *testing.T) {
	f := newRecipeFixture(nil, errSales)
	ctx := context.Background()

	_, err := f.processor.Execute(ctx, domain.TaskKindAdRecipe, "parent", recipePayload())
	if err == nil {
		t.Fatalf("expected chain failure")
	}

	record, getErr := f.store.Get(ctx, "parent")
	if getErr != nil {
		t.Fatalf("parent record missing: %v", getErr)
	}
	if record.Status != domain.TaskStatusFailed {
		t.Fatalf("expected failed parent, got %s", record.Status)
	}
	if !strings.Contains(record.Error, "sales page extraction failed") {
		t.Fatalf("expected stage-prefixed error, got %q", record.Error)
	}
	if calls := f.conceptCalls.Load(); calls != 0 {
		t.Fatalf("concept stage must not run after sales failure, got %d calls", calls)
	}
	if len(f.recipes.Inserted()) != 0 {
		t.Fatalf("failed chain must not persist a recipe")
	}
}

func TestRecipeChainPropagatesConceptFailure(t *testing.T) {
	f := newRecipeFixture(errConcept, nil)
	ctx := context.Background()

	_, err := f.processor.Execute(ctx, domain.TaskKindAdRecipe, "parent", recipePayload())
	if err == nil {
		t.Fatalf("expected chain failure")
	}

	record, _ := f.store.Get(ctx, "parent")
	if record.Status != domain.TaskStatusFailed {
		t.Fatalf("expected failed parent, got %s", record.Status)
	}
	if !strings.Contains(record.Error, "ad concept extraction failed") {
		t.Fatalf("expected stage-prefixed error, got %q", record.Error)
	}
	if len(f.recipes.Inserted()) != 0 {
		t.Fatalf("failed chain must not persist a recipe")
	}
}

func TestRecipeChainReplacesInvalidUserID(t *testing.T) {
	f := newRecipeFixture(nil, nil)
	ctx := context.Background()

	payload, _ := json.Marshal(domain.AdRecipePayload{
		AdArchiveID: "archive-42",
		ImageURL:    "https://cdn.example.com/ad.png",
		SalesURL:    "https://shop.example.com/serum",
		UserID:      "not-a-uuid",
	})
	if _, err := f.processor.Execute(ctx, domain.TaskKindAdRecipe, "parent", payload); err != nil {
		t.Fatalf("recipe chain failed: %v", err)
	}

	inserted := f.recipes.Inserted()
	if len(inserted) != 1 {
		t.Fatalf("expected one persisted recipe, got %d", len(inserted))
	}
	if inserted[0].UserID == "not-a-uuid" || inserted[0].UserID == "" {
		t.Fatalf("expected substituted UUID, got %q", inserted[0].UserID)
	}
}
