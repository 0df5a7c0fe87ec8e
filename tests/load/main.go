// Local benchmark harness: boots the full stack on an in-memory task store
// and local queue behind httptest, then measures enqueue and status-read
// latency under concurrency. Results print as JSON and optionally persist
// to a file.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
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
		"elements": [{"type": "product_photo"}],
		"visual_flow": "product first",
		"visual_tone": "clean",
		"color_palette": {"primary": "white"},
		"spacing_strategy": "negative space",
		"best_practices": ["focal point"],
		"primary_offering_visibility": {"is_visible": true}
	}
}`

const salesPageModelOutput = `{
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

type visionStub struct{}

func (visionStub) Available() bool { return true }

func (visionStub) Generate(_ context.Context, request ai.GenerateRequest) (ai.GenerateResult, error) {
	if request.ImageURL != "" {
		return ai.GenerateResult{Text: conceptModelOutput, ModelID: request.Model}, nil
	}
	return ai.GenerateResult{Text: salesPageModelOutput, ModelID: request.Model}, nil
}

type scenarioResult struct {
	Name          string   `json:"name"`
	Total         int      `json:"total"`
	Success       int      `json:"success"`
	Errors        int      `json:"errors"`
	P50MS         float64  `json:"p50_ms"`
	P95MS         float64  `json:"p95_ms"`
	P99MS         float64  `json:"p99_ms"`
	MaxMS         float64  `json:"max_ms"`
	ThroughputRPS float64  `json:"throughput_rps"`
	ErrorSamples  []string `json:"error_samples,omitempty"`
}

type runResult struct {
	GeneratedAtUTC string           `json:"generated_at_utc"`
	Environment    string           `json:"environment"`
	Results        []scenarioResult `json:"results"`
	SLOEvaluation  map[string]bool  `json:"slo_evaluation"`
}

type benchmarkEnv struct {
	server *httptest.Server
	cancel context.CancelFunc
}

func main() {
	conceptTotal := flag.Int("concepts-total", 200, "total ad concept enqueue requests")
	conceptConcurrency := flag.Int("concepts-concurrency", 24, "concurrency for ad concept enqueue requests")
	salesTotal := flag.Int("sales-total", 200, "total sales page enqueue requests")
	salesConcurrency := flag.Int("sales-concurrency", 24, "concurrency for sales page enqueue requests")
	recipesTotal := flag.Int("recipes-total", 120, "total recipe enqueue requests")
	recipesConcurrency := flag.Int("recipes-concurrency", 16, "concurrency for recipe enqueue requests")
	statusTotal := flag.Int("status-total", 400, "total status read requests")
	statusConcurrency := flag.Int("status-concurrency", 32, "concurrency for status read requests")
	outputPath := flag.String("output", "", "optional path to persist benchmark results JSON")
	flag.Parse()

	env, err := startBenchmarkEnvironment()
	if err != nil {
		log.Fatalf("failed to start local benchmark environment: %v", err)
	}
	defer env.cancel()
	defer env.server.Close()

	client := &http.Client{Timeout: 10 * time.Second}

	conceptScenario := runScenario("concept_enqueue", *conceptTotal, *conceptConcurrency, func(index int) error {
		payload := map[string]any{
			"image_url": fmt.Sprintf("https://cdn.example.com/ads/%d.png", index%64),
		}
		_, err := postJSON(client, env.server.URL+"/v1/extract-ad-concept", payload, http.StatusAccepted)
		return err
	})

	salesScenario := runScenario("sales_page_enqueue", *salesTotal, *salesConcurrency, func(index int) error {
		payload := map[string]any{
			"page_url": fmt.Sprintf("https://shop.example.com/products/%d", index%64),
		}
		_, err := postJSON(client, env.server.URL+"/v1/extract-sales-page", payload, http.StatusAccepted)
		return err
	})

	recipesScenario := runScenario("recipe_enqueue", *recipesTotal, *recipesConcurrency, func(index int) error {
		payload := map[string]any{
			"ad_archive_id": fmt.Sprintf("archive-%d", index%32),
			"image_url":     fmt.Sprintf("https://cdn.example.com/ads/%d.png", index%32),
			"sales_url":     fmt.Sprintf("https://shop.example.com/products/%d", index%32),
		}
		_, err := postJSON(client, env.server.URL+"/v1/generate-ad-recipe", payload, http.StatusAccepted)
		return err
	})

	// Seed one task and let it settle so the status scenario reads a real record.
	statusTaskID, err := postJSON(client, env.server.URL+"/v1/extract-sales-page", map[string]any{
		"page_url": "https://shop.example.com/status-probe",
	}, http.StatusAccepted)
	if err != nil {
		log.Fatalf("failed to seed status task: %v", err)
	}
	time.Sleep(500 * time.Millisecond)

	statusScenario := runScenario("status_read", *statusTotal, *statusConcurrency, func(int) error {
		return getJSON(client, env.server.URL+"/v1/tasks/"+statusTaskID, http.StatusOK)
	})

	results := []scenarioResult{conceptScenario, salesScenario, recipesScenario, statusScenario}
	slo := map[string]bool{
		"enqueue_p95_le_200ms":     conceptScenario.P95MS <= 200 && salesScenario.P95MS <= 200 && recipesScenario.P95MS <= 200,
		"status_read_p95_le_100ms": statusScenario.P95MS <= 100,
	}

	report := runResult{
		GeneratedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
		Environment:    "local-httptest",
		Results:        results,
		SLOEvaluation:  slo,
	}

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal benchmark report: %v", err)
	}

	if *outputPath != "" {
		if err := os.WriteFile(*outputPath, encoded, 0o644); err != nil {
			log.Fatalf("failed to write output file: %v", err)
		}
	}

	_, _ = fmt.Fprintln(os.Stdout, string(encoded))
}

func startBenchmarkEnvironment() (*benchmarkEnv, error) {
	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)

	store := taskstore.NewMemoryStore(time.Hour)
	localQueue := queue.NewLocalQueue(4096, 3, logger)
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
	api := handlers.NewAPI(tasksService, handlers.StreamConfig{})
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      "",
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	server := httptest.NewServer(router)
	return &benchmarkEnv{
		server: server,
		cancel: cancel,
	}, nil
}

func runScenario(
	name string,
	total int,
	concurrency int,
	requestFn func(index int) error,
) scenarioResult {
	if total <= 0 {
		return scenarioResult{Name: name}
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	startedAt := time.Now()
	type sample struct {
		durationMS float64
		err        string
	}

	jobs := make(chan int, total)
	results := make(chan sample, total)
	for i := 0; i < total; i++ {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				requestStart := time.Now()
				err := requestFn(index)
				s := sample{
					durationMS: float64(time.Since(requestStart).Microseconds()) / 1000.0,
				}
				if err != nil {
					s.err = err.Error()
				}
				results <- s
			}
		}()
	}
	wg.Wait()
	close(results)

	durations := make([]float64, 0, total)
	errorSamples := make([]string, 0, 5)
	success := 0
	errorsCount := 0
	for item := range results {
		durations = append(durations, item.durationMS)
		if item.err == "" {
			success++
			continue
		}
		errorsCount++
		if len(errorSamples) < 5 {
			errorSamples = append(errorSamples, item.err)
		}
	}

	sort.Float64s(durations)
	elapsedSeconds := time.Since(startedAt).Seconds()
	throughput := 0.0
	if elapsedSeconds > 0 {
		throughput = float64(total) / elapsedSeconds
	}

	return scenarioResult{
		Name:          name,
		Total:         total,
		Success:       success,
		Errors:        errorsCount,
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.00),
		ThroughputRPS: round2(throughput),
		ErrorSamples:  errorSamples,
	}
}

func postJSON(
	client *http.Client,
	url string,
	payload any,
	expectedStatus int,
) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
	if response.StatusCode != expectedStatus {
		return "", fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(raw))
	}

	var body struct {
		TaskID string `json:"task_id"`
	}
	_ = json.Unmarshal(raw, &body)
	return body.TaskID, nil
}

func getJSON(client *http.Client, url string, expectedStatus int) error {
	request, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != expectedStatus {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 1024))
		return fmt.Errorf("unexpected status %d (expected %d): %s", response.StatusCode, expectedStatus, string(body))
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return nil
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return round2(values[0])
	}
	if p >= 1 {
		return round2(values[len(values)-1])
	}
	rank := int(math.Ceil(float64(len(values))*p)) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(values) {
		rank = len(values) - 1
	}
	return round2(values[rank])
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
