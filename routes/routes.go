package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/answer-detector/app"
	"github.com/upb/answer-detector/handlers"
	"github.com/upb/answer-detector/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.EchoRequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout(deps)))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	health := handlers.NewHealthHandler(deps.Chain, deps.Logger)
	classification := handlers.NewClassificationHandler(deps.Resolver, deps.Chain, handlers.ClassificationOptions{
		DefaultQuestions: deps.Config.Questions,
		MaxBatchSize:     deps.Config.Resolver.MaxBatchSize,
		BatchMode:        deps.Config.Resolver.BatchMode,
	}, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Get("/results", classification.HandleResults)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/classify", classification.HandleClassify)
		r.Get("/backends", classification.HandleListBackends)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}

// requestTimeout bounds request handling by the server write timeout, which
// must outlast a full walk of the chain
func requestTimeout(deps *app.Dependencies) time.Duration {
	if timeout := deps.Config.Server.WriteTimeout; timeout > 0 {
		return timeout
	}
	return 60 * time.Second
}
