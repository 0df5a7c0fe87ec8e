package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/adforge/ad-recipe-back/internal/domain"
)

func TestMemoryConceptsUpsertOverwritesByArchiveID(t *testing.T) {
	repo := NewMemoryConceptsRepository()
	ctx := context.Background()

	if err := repo.Store(ctx, domain.ConceptRecord{
		AdArchiveID: "archive-42",
		ConceptJSON: json.RawMessage(`{"title":"Old"}`),
	}); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := repo.Store(ctx, domain.ConceptRecord{
		AdArchiveID: "archive-42",
		ConceptJSON: json.RawMessage(`{"title":"New"}`),
	}); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	record, err := repo.GetByArchiveID(ctx, "archive-42")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(record.ConceptJSON) != `{"title":"New"}` {
		t.Fatalf("expected overwritten record, got %s", record.ConceptJSON)
	}
}

func TestMemoryConceptsUnknownArchiveID(t *testing.T) {
	repo := NewMemoryConceptsRepository()

	_, err := repo.GetByArchiveID(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryConceptsReturnsIsolatedCopies(t *testing.T) {
	repo := NewMemoryConceptsRepository()
	ctx := context.Background()

	if err := repo.Store(ctx, domain.ConceptRecord{
		AdArchiveID: "archive-42",
		ConceptJSON: json.RawMessage(`{"title":"Kept"}`),
	}); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	first, err := repo.GetByArchiveID(ctx, "archive-42")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	first.ConceptJSON[2] = 'X'

	second, err := repo.GetByArchiveID(ctx, "archive-42")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(second.ConceptJSON) != `{"title":"Kept"}` {
		t.Fatalf("caller mutation leaked into the repository: %s", second.ConceptJSON)
	}
}

func TestMemoryRecipesCollectsInserts(t *testing.T) {
	repo := NewMemoryRecipesRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := repo.Insert(ctx, domain.RecipeRecord{AdArchiveID: "archive-42"}); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	if inserted := repo.Inserted(); len(inserted) != 3 {
		t.Fatalf("expected 3 inserted recipes, got %d", len(inserted))
	}
}
