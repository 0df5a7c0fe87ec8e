package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/adforge/ad-recipe-back/internal/ai"
	"github.com/adforge/ad-recipe-back/internal/analysis"
	"github.com/adforge/ad-recipe-back/internal/domain"
	"github.com/adforge/ad-recipe-back/internal/repository"
	"github.com/adforge/ad-recipe-back/internal/taskstore"
)

// Inliner runs a sub-task on the caller's worker, blocking until its terminal
// state is written. The Processor satisfies it with Execute.
type Inliner interface {
	Execute(ctx context.Context, kind domain.TaskKind, taskID string, payload json.RawMessage) (json.RawMessage, error)
}

// ChainStageError reports which stage of a composite task failed. The parent
// record republishes the child's error message under this prefix.
type ChainStageError struct {
	Stage   string
	Message string
}

func (e *ChainStageError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Stage, e.Message)
}

type RecipeDependencies struct {
	Inline   Inliner
	Store    taskstore.Store
	Concepts repository.ConceptsRepository
	Recipes  repository.RecipesRepository
	Logger   *log.Logger
}

// NewAdRecipeHandler builds the chain coordinator: sales-page sub-task first,
// then a cache-or-regenerate concept sub-task, then prompt composition and
// recipe persistence. Sub-tasks run inline on the parent's worker under
// derived child IDs, so their status can be queried independently while the
// parent cannot complete before they do. Any stage failure aborts the chain
// with a stage-prefixed error; a retry re-runs the whole chain.
func NewAdRecipeHandler(deps RecipeDependencies) Handler {
	return func(ctx context.Context, taskID string, payload json.RawMessage) (json.RawMessage, error) {
		var input domain.AdRecipePayload
		if err := json.Unmarshal(payload, &input); err != nil {
			return nil, fmt.Errorf("decode ad recipe payload: %w", err)
		}
		if err := validateRecipePayload(input); err != nil {
			return nil, err
		}

		salesJSON, err := runChild(ctx, deps, domain.TaskKindSalesPage, domain.SalesChildID(taskID), domain.SalesPagePayload{
			PageURL: input.SalesURL,
		}, "sales page extraction")
		if err != nil {
			return nil, err
		}

		conceptJSON, err := conceptForArchive(ctx, deps, taskID, input, salesJSON)
		if err != nil {
			return nil, err
		}

		recipePrompt, err := ComposeRecipePrompt(conceptJSON, salesJSON)
		if err != nil {
			return nil, fmt.Errorf("compose recipe prompt: %w", err)
		}

		record := domain.RecipeRecord{
			AdArchiveID:   input.AdArchiveID,
			ImageURL:      input.ImageURL,
			SalesURL:      input.SalesURL,
			AdConceptJSON: conceptJSON,
			SalesPageJSON: salesJSON,
			RecipePrompt:  recipePrompt,
			UserID:        normalizeUserID(input.UserID, deps.Logger),
		}
		if err := deps.Recipes.Insert(ctx, record); err != nil {
			return nil, fmt.Errorf("persist ad recipe: %w", err)
		}

		result, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("encode recipe result: %w", err)
		}
		return result, nil
	}
}

// conceptForArchive reuses a cached concept artifact when it passes the same
// structural validation applied to fresh analyses. Missing, stale or
// malformed cache entries trigger regeneration, and the fresh artifact
// overwrites the cache entry.
func conceptForArchive(
	ctx context.Context,
	deps RecipeDependencies,
	taskID string,
	input domain.AdRecipePayload,
	salesJSON json.RawMessage,
) (json.RawMessage, error) {
	cached, err := deps.Concepts.GetByArchiveID(ctx, input.AdArchiveID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("concept cache lookup: %w", err)
	}
	if cached != nil {
		if validErr := validateConceptJSON(cached.ConceptJSON); validErr == nil {
			logf(deps.Logger, "reusing cached ad concept for archive_id=%s", input.AdArchiveID)
			return cached.ConceptJSON, nil
		} else {
			logf(deps.Logger, "cached ad concept for archive_id=%s is invalid, regenerating: %v", input.AdArchiveID, validErr)
		}
	}

	conceptJSON, err := runChild(ctx, deps, domain.TaskKindAdConcept, domain.ConceptChildID(taskID), domain.AdConceptPayload{
		ImageURL:    input.ImageURL,
		PageContext: salesJSON,
	}, "ad concept extraction")
	if err != nil {
		return nil, err
	}

	if err := deps.Concepts.Store(ctx, domain.ConceptRecord{
		AdArchiveID: input.AdArchiveID,
		ImageURL:    input.ImageURL,
		ConceptJSON: conceptJSON,
		UserID:      normalizeUserID(input.UserID, deps.Logger),
	}); err != nil {
		return nil, fmt.Errorf("persist ad concept: %w", err)
	}
	return conceptJSON, nil
}

// runChild executes a sub-task inline and then reads its record back from the
// task store: the record is the source of truth for the child's outcome, and
// child reads/writes stay observable to status clients.
func runChild(
	ctx context.Context,
	deps RecipeDependencies,
	kind domain.TaskKind,
	childID string,
	payload any,
	stage string,
) (json.RawMessage, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", stage, err)
	}

	_, execErr := deps.Inline.Execute(ctx, kind, childID, encoded)

	record, readErr := deps.Store.Get(ctx, childID)
	if readErr != nil {
		if execErr != nil {
			return nil, &ChainStageError{Stage: stage, Message: execErr.Error()}
		}
		return nil, fmt.Errorf("read %s status: %w", stage, readErr)
	}
	if record.Status != domain.TaskStatusCompleted {
		message := record.Error
		if message == "" && execErr != nil {
			message = execErr.Error()
		}
		return nil, &ChainStageError{Stage: stage, Message: message}
	}
	return record.Result, nil
}

func validateRecipePayload(input domain.AdRecipePayload) error {
	if strings.TrimSpace(input.AdArchiveID) == "" {
		return fmt.Errorf("ad_archive_id is required")
	}
	if strings.TrimSpace(input.ImageURL) == "" {
		return fmt.Errorf("image_url is required")
	}
	if strings.TrimSpace(input.SalesURL) == "" {
		return fmt.Errorf("sales_url is required")
	}
	return nil
}

func validateConceptJSON(raw json.RawMessage) error {
	var artifact domain.Artifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return fmt.Errorf("decode cached concept: %w", err)
	}
	return analysis.ValidateArtifact(artifact, ai.TaskConcept)
}

// normalizeUserID keeps valid UUIDs and replaces anything else with a fresh
// one so persistence never fails on a malformed caller-supplied ID.
func normalizeUserID(userID string, logger *log.Logger) string {
	trimmed := strings.TrimSpace(userID)
	if _, err := uuid.Parse(trimmed); err == nil {
		return trimmed
	}
	replacement := uuid.NewString()
	logf(logger, "invalid user_id %q, substituting generated id", userID)
	return replacement
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
