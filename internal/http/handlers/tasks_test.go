package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adforge/ad-recipe-back/internal/domain"
	"github.com/adforge/ad-recipe-back/internal/service"
	"github.com/adforge/ad-recipe-back/internal/taskstore"
)

type stubProducer struct {
	messages []domain.QueueMessage
}

func (p *stubProducer) Enqueue(_ context.Context, message domain.QueueMessage) error {
	p.messages = append(p.messages, message)
	return nil
}

type apiFixture struct {
	api      *API
	store    *taskstore.MemoryStore
	producer *stubProducer
	router   chi.Router
}

func newAPIFixture(stream StreamConfig) *apiFixture {
	f := &apiFixture{
		store:    taskstore.NewMemoryStore(time.Hour),
		producer: &stubProducer{},
	}
	f.api = NewAPI(service.NewTasksService(f.store, f.producer), stream)

	f.router = chi.NewRouter()
	f.router.Post("/v1/extract-ad-concept", f.api.ExtractAdConcept)
	f.router.Post("/v1/extract-sales-page", f.api.ExtractSalesPage)
	f.router.Post("/v1/generate-ad-recipe", f.api.GenerateAdRecipe)
	f.router.Get("/v1/tasks/{taskID}", f.api.TaskStatus)
	f.router.Get("/v1/tasks/{taskID}/stream", f.api.StreamTaskStatus)
	return f
}

func TestExtractAdConceptAcceptsAndReturnsTaskID(t *testing.T) {
	f := newAPIFixture(StreamConfig{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/v1/extract-ad-concept", strings.NewReader(`{"image_url":"https://cdn.example.com/ad.png"}`))
	f.router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}

	var response enqueueResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.TaskID == "" {
		t.Fatalf("expected task_id in response")
	}
	if response.Message == "" {
		t.Fatalf("expected message in response")
	}

	record, err := f.store.Get(context.Background(), response.TaskID)
	if err != nil {
		t.Fatalf("expected queued record readable immediately: %v", err)
	}
	if record.Status != domain.TaskStatusQueued {
		t.Fatalf("expected queued, got %s", record.Status)
	}
	if len(f.producer.messages) != 1 {
		t.Fatalf("expected one queued message, got %d", len(f.producer.messages))
	}
}

func TestExtractAdConceptRejectsMissingImageURL(t *testing.T) {
	f := newAPIFixture(StreamConfig{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/v1/extract-ad-concept", strings.NewReader(`{}`))
	f.router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestGenerateAdRecipeRejectsIncompletePayload(t *testing.T) {
	f := newAPIFixture(StreamConfig{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/v1/generate-ad-recipe", strings.NewReader(`{"ad_archive_id":"archive-42","image_url":"https://cdn.example.com/ad.png"}`))
	f.router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing sales_url, got %d", recorder.Code)
	}
}

func TestIdempotencyKeyReplayReturnsSameTask(t *testing.T) {
	f := newAPIFixture(StreamConfig{})
	body := `{"page_url":"https://shop.example.com/serum"}`

	first := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/v1/extract-sales-page", strings.NewReader(body))
	request.Header.Set("Idempotency-Key", "key-1")
	f.router.ServeHTTP(first, request)

	second := httptest.NewRecorder()
	request = httptest.NewRequest(http.MethodPost, "/v1/extract-sales-page", strings.NewReader(body))
	request.Header.Set("Idempotency-Key", "key-1")
	f.router.ServeHTTP(second, request)

	var firstResponse, secondResponse enqueueResponse
	_ = json.Unmarshal(first.Body.Bytes(), &firstResponse)
	_ = json.Unmarshal(second.Body.Bytes(), &secondResponse)

	if firstResponse.TaskID != secondResponse.TaskID {
		t.Fatalf("replayed key must return the original task: %s vs %s", firstResponse.TaskID, secondResponse.TaskID)
	}
	if len(f.producer.messages) != 1 {
		t.Fatalf("replay must not enqueue again, got %d messages", len(f.producer.messages))
	}
}

func TestIdempotencyKeyConflictOnDifferentPayload(t *testing.T) {
	f := newAPIFixture(StreamConfig{})

	first := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/v1/extract-sales-page", strings.NewReader(`{"page_url":"https://shop.example.com/serum"}`))
	request.Header.Set("Idempotency-Key", "key-1")
	f.router.ServeHTTP(first, request)

	second := httptest.NewRecorder()
	request = httptest.NewRequest(http.MethodPost, "/v1/extract-sales-page", strings.NewReader(`{"page_url":"https://shop.example.com/cream"}`))
	request.Header.Set("Idempotency-Key", "key-1")
	f.router.ServeHTTP(second, request)

	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key with new payload, got %d", second.Code)
	}
}

func TestTaskStatusReturnsRecord(t *testing.T) {
	f := newAPIFixture(StreamConfig{})
	ctx := context.Background()

	if err := f.store.Put(ctx, "task-1", domain.TaskRecord{
		Status: domain.TaskStatusCompleted,
		Result: json.RawMessage(`{"title":"Hero Product Showcase"}`),
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/v1/tasks/task-1", nil)
	f.router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response["status"] != string(domain.TaskStatusCompleted) {
		t.Fatalf("unexpected status: %v", response["status"])
	}
	if response["task_id"] != "task-1" {
		t.Fatalf("unexpected task_id: %v", response["task_id"])
	}
	if _, ok := response["result"]; !ok {
		t.Fatalf("expected result in completed response")
	}
	if _, ok := response["error"]; ok {
		t.Fatalf("completed response must not carry an error")
	}
}

func TestTaskStatusUnknownTaskReturns404(t *testing.T) {
	f := newAPIFixture(StreamConfig{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/v1/tasks/missing", nil)
	f.router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}
