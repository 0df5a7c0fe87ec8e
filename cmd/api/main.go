package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adforge/ad-recipe-back/internal/ai"
	"github.com/adforge/ad-recipe-back/internal/analysis"
	"github.com/adforge/ad-recipe-back/internal/config"
	"github.com/adforge/ad-recipe-back/internal/domain"
	httpserver "github.com/adforge/ad-recipe-back/internal/http"
	"github.com/adforge/ad-recipe-back/internal/http/handlers"
	"github.com/adforge/ad-recipe-back/internal/queue"
	"github.com/adforge/ad-recipe-back/internal/repository"
	"github.com/adforge/ad-recipe-back/internal/service"
	"github.com/adforge/ad-recipe-back/internal/taskstore"
	"github.com/adforge/ad-recipe-back/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "[ad-recipe] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, storeCloser := setupTaskStore(ctx, cfg, logger)
	defer storeCloser()

	concepts, recipes, repoCloser := setupRepositories(ctx, cfg, logger)
	defer repoCloser()

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	modelRouter := ai.NewModelRouter(ai.ModelRouterConfig{
		ConceptPrimary:    cfg.OpenAIModelVisionPrimary,
		ConceptFallback:   cfg.OpenAIModelVisionFallback,
		SalesPagePrimary:  cfg.OpenAIModelTextPrimary,
		SalesPageFallback: cfg.OpenAIModelTextFallback,
	})
	aiClient := ai.NewOpenAIClient(ai.OpenAIClientConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Timeout:    time.Duration(cfg.OpenAITimeoutMS) * time.Millisecond,
		MaxRetries: cfg.OpenAIMaxRetries,
	})
	analyzer := analysis.NewAnalyzer(analysis.Dependencies{
		Router:      modelRouter,
		Client:      aiClient,
		MaxAttempts: cfg.AnalysisMaxAttempts,
		Logger:      logger,
	})

	processor := worker.NewProcessor(consumer, store, logger)
	processor.Register(domain.TaskKindAdConcept, worker.NewAdConceptHandler(analyzer))
	processor.Register(domain.TaskKindSalesPage, worker.NewSalesPageHandler(analyzer))
	processor.Register(domain.TaskKindAdRecipe, worker.NewAdRecipeHandler(worker.RecipeDependencies{
		Inline:   processor,
		Store:    store,
		Concepts: concepts,
		Recipes:  recipes,
		Logger:   logger,
	}))

	tasksService := service.NewTasksService(store, producer)
	api := handlers.NewAPI(tasksService, handlers.StreamConfig{
		Grace:        time.Duration(cfg.StreamGraceMS) * time.Millisecond,
		PollInterval: time.Duration(cfg.StreamPollMS) * time.Millisecond,
		Timeout:      time.Duration(cfg.StreamTimeoutSecond) * time.Second,
	})

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		go processor.Start(ctx)
		logger.Printf("worker enabled and started")
	} else {
		logger.Printf("worker disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Write timeout must outlive the SSE polling ceiling.
		WriteTimeout: time.Duration(cfg.StreamTimeoutSecond)*time.Second + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupTaskStore(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (taskstore.Store, func()) {
	ttl := time.Duration(cfg.TaskTTLSeconds) * time.Second

	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using in-memory task store")
		return taskstore.NewMemoryStore(ttl), func() {}
	}

	redisStore, err := taskstore.NewRedisStore(ctx, taskstore.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      ttl,
	})
	if err != nil {
		logger.Printf("failed to initialize redis task store, fallback to memory: %v", err)
		return taskstore.NewMemoryStore(ttl), func() {}
	}
	logger.Printf("redis task store initialized")
	return redisStore, func() {
		_ = redisStore.Close()
	}
}

func setupRepositories(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.ConceptsRepository, repository.RecipesRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory repositories")
		return repository.NewMemoryConceptsRepository(), repository.NewMemoryRecipesRepository(), func() {}
	}

	store, err := repository.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres store, fallback to memory: %v", err)
		return repository.NewMemoryConceptsRepository(), repository.NewMemoryRecipesRepository(), func() {}
	}
	logger.Printf("postgres store initialized")
	return store, store, func() {
		store.Close()
	}
}

func setupQueue(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (queue.Producer, queue.Consumer, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Streams: map[domain.TaskKind]string{
			domain.TaskKindAdConcept: cfg.StreamAdConcept,
			domain.TaskKindSalesPage: cfg.StreamSalesPage,
			domain.TaskKindAdRecipe:  cfg.StreamAdRecipe,
		},
		DLQStream:   cfg.StreamDLQ,
		Group:       cfg.StreamGroup,
		Consumer:    cfg.StreamConsumer,
		MaxAttempts: 3,
	})
	if err != nil {
		logger.Printf("failed to initialize redis streams queue, fallback to local: %v", err)
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}

	logger.Printf("redis streams queue initialized")
	return streams, streams, func() {
		_ = streams.Close()
	}
}
