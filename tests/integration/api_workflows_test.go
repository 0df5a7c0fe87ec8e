package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adforge/ad-recipe-back/internal/ai"
	"github.com/adforge/ad-recipe-back/internal/analysis"
	"github.com/adforge/ad-recipe-back/internal/domain"
	httpserver "github.com/adforge/ad-recipe-back/internal/http"
	"github.com/adforge/ad-recipe-back/internal/http/handlers"
	"github.com/adforge/ad-recipe-back/internal/queue"
	"github.com/adforge/ad-recipe-back/internal/repository"
	"github.com/adforge/ad-recipe-back/internal/service"
	"github.com/adforge/ad-recipe-back/internal/taskstore"
	"github.com/adforge/ad-recipe-back/internal/worker"
)

const conceptModelOutput = `{
	"title": "Hero Product Showcase",
	"summary": "Centered product shot with benefit badges.",
	"details": {
		"elements": [{"type": "product_photo", "position": "center"}],
		"visual_flow": "product first, headline second",
		"visual_tone": "clean and clinical",
		"color_palette": {"primary": "white", "accent": "teal"},
		"spacing_strategy": "generous negative space",
		"best_practices": ["single focal point"],
		"primary_offering_visibility": {"is_visible": true}
	}
}`

const salesPageModelOutput = `{
	"title": "HydraBoost Serum",
	"summary": "Deep hydration in one step.",
	"details": {
		"key_benefits": ["48h hydration"],
		"features": ["2% hyaluronic acid"],
		"target_audience": "adults with dry skin",
		"offer": {"discount": "20% first order"},
		"call_to_action": "Shop now"
	}
}`

// visionStub answers with a canned artifact depending on whether the request
// carries an image, mimicking the two analysis shapes the real provider
// returns.
type visionStub struct{}

func (visionStub) Available() bool { return true }

func (visionStub) Generate(_ context.Context, request ai.GenerateRequest) (ai.GenerateResult, error) {
	if request.ImageURL != "" {
		return ai.GenerateResult{Text: conceptModelOutput, ModelID: request.Model}, nil
	}
	return ai.GenerateResult{Text: salesPageModelOutput, ModelID: request.Model}, nil
}

type integrationRuntime struct {
	server   *httptest.Server
	concepts *repository.MemoryConceptsRepository
	recipes  *repository.MemoryRecipesRepository
	cancel   context.CancelFunc
}

func startIntegrationRuntime(t *testing.T) integrationRuntime {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)

	store := taskstore.NewMemoryStore(time.Hour)
	localQueue := queue.NewLocalQueue(2048, 3, logger)
	concepts := repository.NewMemoryConceptsRepository()
	recipes := repository.NewMemoryRecipesRepository()

	analyzer := analysis.NewAnalyzer(analysis.Dependencies{
		Router: ai.NewModelRouter(ai.ModelRouterConfig{}),
		Client: visionStub{},
		Logger: logger,
	})

	processor := worker.NewProcessor(localQueue, store, logger)
	processor.Register(domain.TaskKindAdConcept, worker.NewAdConceptHandler(analyzer))
	processor.Register(domain.TaskKindSalesPage, worker.NewSalesPageHandler(analyzer))
	processor.Register(domain.TaskKindAdRecipe, worker.NewAdRecipeHandler(worker.RecipeDependencies{
		Inline:   processor,
		Store:    store,
		Concepts: concepts,
		Recipes:  recipes,
		Logger:   logger,
	}))
	go processor.Start(ctx)

	tasksService := service.NewTasksService(store, localQueue)
	api := handlers.NewAPI(tasksService, handlers.StreamConfig{
		Grace:        10 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
		Timeout:      5 * time.Second,
	})
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      "",
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	server := httptest.NewServer(router)
	return integrationRuntime{
		server:   server,
		concepts: concepts,
		recipes:  recipes,
		cancel: func() {
			cancel()
			server.Close()
		},
	}
}

func postJSON(
	t *testing.T,
	client *http.Client,
	url string,
	payload any,
	headers map[string]string,
) (int, map[string]any) {
	t.Helper()

	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := client.Do(request)
	if err != nil {
		t.Fatalf("execute request: %v", err)
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(response.Body)
	if len(raw) == 0 {
		return response.StatusCode, map[string]any{}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode response body (%d): %s", response.StatusCode, string(raw))
	}

	return response.StatusCode, decoded
}

func getJSON(t *testing.T, client *http.Client, url string) (int, map[string]any) {
	t.Helper()
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("build get request: %v", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		t.Fatalf("execute get request: %v", err)
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(response.Body)
	if len(raw) == 0 {
		return response.StatusCode, map[string]any{}
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode get response body (%d): %s", response.StatusCode, string(raw))
	}

	return response.StatusCode, decoded
}

func waitForTaskDone(
	t *testing.T,
	client *http.Client,
	baseURL string,
	taskID string,
	timeout time.Duration,
) map[string]any {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, body := getJSON(t, client, fmt.Sprintf("%s/v1/tasks/%s", baseURL, taskID))
		if status != http.StatusOK {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		taskStatus, _ := body["status"].(string)
		if taskStatus == string(domain.TaskStatusCompleted) {
			return body
		}
		if taskStatus == string(domain.TaskStatusFailed) {
			t.Fatalf("task %s failed: %+v", taskID, body)
		}
		time.Sleep(20 * time.Millisecond)
	}

	t.Fatalf("timeout waiting for task %s to complete", taskID)
	return nil
}

func enqueueTask(
	t *testing.T,
	client *http.Client,
	url string,
	payload any,
) string {
	t.Helper()

	status, body := postJSON(t, client, url, payload, nil)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202 from %s, got %d body=%+v", url, status, body)
	}
	taskID, _ := body["task_id"].(string)
	if strings.TrimSpace(taskID) == "" {
		t.Fatalf("expected task_id from %s, got %+v", url, body)
	}
	return taskID
}

func TestAdConceptAndSalesPageWorkflows(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	conceptTaskID := enqueueTask(t, client, baseURL+"/v1/extract-ad-concept", map[string]any{
		"image_url": "https://cdn.example.com/ad.png",
	})
	conceptTask := waitForTaskDone(t, client, baseURL, conceptTaskID, 4*time.Second)
	conceptResult, ok := conceptTask["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected concept result payload, got %+v", conceptTask)
	}
	if conceptResult["title"] != "Hero Product Showcase" {
		t.Fatalf("unexpected concept title: %+v", conceptResult["title"])
	}
	details, ok := conceptResult["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected details map in concept result: %+v", conceptResult)
	}
	if _, ok := details["visual_flow"]; !ok {
		t.Fatalf("expected visual_flow in concept details: %+v", details)
	}

	salesTaskID := enqueueTask(t, client, baseURL+"/v1/extract-sales-page", map[string]any{
		"page_url": "https://shop.example.com/serum",
	})
	salesTask := waitForTaskDone(t, client, baseURL, salesTaskID, 4*time.Second)
	salesResult, ok := salesTask["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected sales page result payload, got %+v", salesTask)
	}
	if salesResult["title"] != "HydraBoost Serum" {
		t.Fatalf("unexpected sales page title: %+v", salesResult["title"])
	}
}

func TestAdRecipeWorkflowPersistsRecipeAndCachesConcept(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	recipeTaskID := enqueueTask(t, client, baseURL+"/v1/generate-ad-recipe", map[string]any{
		"ad_archive_id": "archive-e2e-1",
		"image_url":     "https://cdn.example.com/ad.png",
		"sales_url":     "https://shop.example.com/serum",
		"user_id":       "7b0d2b0a-8a3e-4b8a-9f6d-111111111111",
	})
	recipeTask := waitForTaskDone(t, client, baseURL, recipeTaskID, 6*time.Second)

	recipeResult, ok := recipeTask["result"].(map[string]any)
	if !ok {
		t.Fatalf("expected recipe result payload, got %+v", recipeTask)
	}
	prompt, _ := recipeResult["recipe_prompt"].(string)
	if !strings.Contains(prompt, "Hero Product Showcase") || !strings.Contains(prompt, "HydraBoost Serum") {
		t.Fatalf("recipe prompt must embed both artifacts, got: %.200s", prompt)
	}

	if inserted := runtime.recipes.Inserted(); len(inserted) != 1 {
		t.Fatalf("expected one persisted recipe, got %d", len(inserted))
	}
	if _, err := runtime.concepts.GetByArchiveID(context.Background(), "archive-e2e-1"); err != nil {
		t.Fatalf("expected concept cached by archive id: %v", err)
	}

	// Child statuses remain queryable under derived identifiers.
	childStatus, childBody := getJSON(t, client, fmt.Sprintf("%s/v1/tasks/%s_sales", baseURL, recipeTaskID))
	if childStatus != http.StatusOK {
		t.Fatalf("expected 200 for sales child status, got %d body=%+v", childStatus, childBody)
	}
	if childBody["status"] != string(domain.TaskStatusCompleted) {
		t.Fatalf("expected completed sales child, got %+v", childBody)
	}

	// A second recipe for the same archive reuses the cached concept.
	secondTaskID := enqueueTask(t, client, baseURL+"/v1/generate-ad-recipe", map[string]any{
		"ad_archive_id": "archive-e2e-1",
		"image_url":     "https://cdn.example.com/ad.png",
		"sales_url":     "https://shop.example.com/serum",
	})
	waitForTaskDone(t, client, baseURL, secondTaskID, 6*time.Second)
	if inserted := runtime.recipes.Inserted(); len(inserted) != 2 {
		t.Fatalf("expected second persisted recipe, got %d", len(inserted))
	}
}

func TestStatusStreamOverHTTP(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.cancel()

	client := runtime.server.Client()
	baseURL := runtime.server.URL

	taskID := enqueueTask(t, client, baseURL+"/v1/extract-sales-page", map[string]any{
		"page_url": "https://shop.example.com/serum",
	})

	response, err := client.Get(fmt.Sprintf("%s/v1/tasks/%s/stream", baseURL, taskID))
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from stream, got %d", response.StatusCode)
	}
	if got := response.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected event-stream content type, got %q", got)
	}

	scanner := bufio.NewScanner(response.Body)
	sawUpdate := false
	terminal := false
	for scanner.Scan() {
		line := scanner.Text()
		if line == "event: update" {
			sawUpdate = true
		}
		if strings.HasPrefix(line, "data: ") {
			var body map[string]any
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &body); err != nil {
				t.Fatalf("decode stream data: %v", err)
			}
			if body["status"] == string(domain.TaskStatusCompleted) {
				terminal = true
			}
		}
	}
	if !sawUpdate {
		t.Fatalf("expected at least one update event")
	}
	if !terminal {
		t.Fatalf("expected stream to end with the completed record")
	}
}

func TestUnknownTaskReturns404(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.cancel()

	status, _ := getJSON(t, runtime.server.Client(), runtime.server.URL+"/v1/tasks/does-not-exist")
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown task, got %d", status)
	}
}
