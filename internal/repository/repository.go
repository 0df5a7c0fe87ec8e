package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/adforge/ad-recipe-back/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// ConceptsRepository caches validated ad-concept artifacts keyed by the
// caller-supplied ad archive ID so analyses are reused across tasks.
type ConceptsRepository interface {
	GetByArchiveID(ctx context.Context, adArchiveID string) (*domain.ConceptRecord, error)
	// Store upserts by archive ID: regeneration after a failed cache validity
	// check overwrites the stale entry.
	Store(ctx context.Context, record domain.ConceptRecord) error
}

// RecipesRepository persists completed recipe artifacts. The orchestration
// layer only writes; no read path is required.
type RecipesRepository interface {
	Insert(ctx context.Context, record domain.RecipeRecord) error
}

// MemoryConceptsRepository stores concept records in memory for local
// development and tests.
type MemoryConceptsRepository struct {
	mu      sync.RWMutex
	records map[string]domain.ConceptRecord
}

func NewMemoryConceptsRepository() *MemoryConceptsRepository {
	return &MemoryConceptsRepository{
		records: make(map[string]domain.ConceptRecord),
	}
}

func (r *MemoryConceptsRepository) GetByArchiveID(_ context.Context, adArchiveID string) (*domain.ConceptRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[adArchiveID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := record
	clone.ConceptJSON = append(json.RawMessage(nil), record.ConceptJSON...)
	return &clone, nil
}

func (r *MemoryConceptsRepository) Store(_ context.Context, record domain.ConceptRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record.ConceptJSON = append(json.RawMessage(nil), record.ConceptJSON...)
	r.records[record.AdArchiveID] = record
	return nil
}

// MemoryRecipesRepository collects inserted recipes for local development and
// tests.
type MemoryRecipesRepository struct {
	mu      sync.RWMutex
	records []domain.RecipeRecord
}

func NewMemoryRecipesRepository() *MemoryRecipesRepository {
	return &MemoryRecipesRepository{}
}

func (r *MemoryRecipesRepository) Insert(_ context.Context, record domain.RecipeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

// Inserted returns a snapshot of stored recipes.
func (r *MemoryRecipesRepository) Inserted() []domain.RecipeRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.RecipeRecord(nil), r.records...)
}
