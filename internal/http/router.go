package httpserver

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adforge/ad-recipe-back/internal/http/handlers"
	"github.com/adforge/ad-recipe-back/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Trace(deps.Logger))
	router.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	}))
	router.Use(middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst))
	router.Use(middleware.Auth(deps.AuthToken))

	router.Get("/healthz", deps.API.Health)

	router.Route("/v1", func(r chi.Router) {
		r.Post("/extract-ad-concept", deps.API.ExtractAdConcept)
		r.Post("/extract-sales-page", deps.API.ExtractSalesPage)
		r.Post("/generate-ad-recipe", deps.API.GenerateAdRecipe)
		r.Get("/tasks/{taskID}", deps.API.TaskStatus)
		r.Get("/tasks/{taskID}/stream", deps.API.StreamTaskStatus)
	})

	return router
}
