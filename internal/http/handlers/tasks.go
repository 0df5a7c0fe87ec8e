package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/adforge/ad-recipe-back/internal/domain"
	"github.com/adforge/ad-recipe-back/internal/taskstore"
)

type adConceptRequest struct {
	ImageURL    string          `json:"image_url"`
	PageContext json.RawMessage `json:"page_context,omitempty"`
}

type salesPageRequest struct {
	PageURL string `json:"page_url"`
}

type adRecipeRequest struct {
	AdArchiveID string `json:"ad_archive_id"`
	ImageURL    string `json:"image_url"`
	SalesURL    string `json:"sales_url"`
	UserID      string `json:"user_id,omitempty"`
}

func (api *API) ExtractAdConcept(w http.ResponseWriter, r *http.Request) {
	var request adConceptRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid payload")
		return
	}
	if strings.TrimSpace(request.ImageURL) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "image_url is required")
		return
	}

	api.enqueue(w, r, request, "ad concept analysis queued", func(ctx context.Context) (string, error) {
		return api.tasks.EnqueueAdConcept(ctx, domain.AdConceptPayload{
			ImageURL:    request.ImageURL,
			PageContext: request.PageContext,
		})
	})
}

func (api *API) ExtractSalesPage(w http.ResponseWriter, r *http.Request) {
	var request salesPageRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid payload")
		return
	}
	if strings.TrimSpace(request.PageURL) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "page_url is required")
		return
	}

	api.enqueue(w, r, request, "sales page analysis queued", func(ctx context.Context) (string, error) {
		return api.tasks.EnqueueSalesPage(ctx, domain.SalesPagePayload{
			PageURL: request.PageURL,
		})
	})
}

func (api *API) GenerateAdRecipe(w http.ResponseWriter, r *http.Request) {
	var request adRecipeRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid payload")
		return
	}
	if strings.TrimSpace(request.AdArchiveID) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "ad_archive_id is required")
		return
	}
	if strings.TrimSpace(request.ImageURL) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "image_url is required")
		return
	}
	if strings.TrimSpace(request.SalesURL) == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "sales_url is required")
		return
	}

	api.enqueue(w, r, request, "ad recipe generation queued", func(ctx context.Context) (string, error) {
		return api.tasks.EnqueueAdRecipe(ctx, domain.AdRecipePayload{
			AdArchiveID: request.AdArchiveID,
			ImageURL:    request.ImageURL,
			SalesURL:    request.SalesURL,
			UserID:      request.UserID,
		})
	})
}

// enqueue centralizes the Idempotency-Key handling shared by the three
// submission endpoints: a replayed key with the same payload returns the
// original task, a replayed key with a different payload is a conflict.
func (api *API) enqueue(w http.ResponseWriter, r *http.Request, request any, message string, submit func(context.Context) (string, error)) {
	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadHash := hashPayload(request)

	if idempotencyKey != "" {
		if entry, ok := api.idempotency.Get(idempotencyKey); ok {
			if entry.PayloadHash != payloadHash {
				writeError(w, r, http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different payload")
				return
			}
			writeJSON(w, http.StatusAccepted, enqueueResponse{TaskID: entry.TaskID, Message: message})
			return
		}
	}

	taskID, err := submit(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to enqueue task")
		return
	}
	if idempotencyKey != "" {
		api.idempotency.Put(idempotencyKey, payloadHash, taskID)
	}

	writeJSON(w, http.StatusAccepted, enqueueResponse{TaskID: taskID, Message: message})
}

func (api *API) TaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimSpace(chi.URLParam(r, "taskID"))
	if taskID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "task_id is required")
		return
	}

	record, err := api.tasks.GetTask(r.Context(), taskID)
	if err != nil {
		if err == taskstore.ErrNotFound {
			writeError(w, r, http.StatusNotFound, "not_found", "task not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load task")
		return
	}

	writeJSON(w, http.StatusOK, taskResponse(taskID, record))
}

func taskResponse(taskID string, record domain.TaskRecord) map[string]any {
	response := map[string]any{
		"task_id": taskID,
		"status":  record.Status,
	}
	if len(record.Result) > 0 {
		response["result"] = jsonRawOrFallback(record.Result)
	}
	if strings.TrimSpace(record.Error) != "" {
		response["error"] = record.Error
	}
	return response
}

func jsonRawOrFallback(value []byte) any {
	var decoded any
	if err := json.Unmarshal(value, &decoded); err == nil {
		return decoded
	}
	return string(value)
}
