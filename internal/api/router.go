package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(handler *Handler, health *HealthHandler, maxConcurrent int, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Probes and scrapes sit outside the limiter so they are never rejected
	// under load.
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		rl := NewRateLimiter(maxConcurrent, logger)
		r.Use(rl.Middleware)
		r.Use(TracingMiddleware)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/search", handler.Search)
			r.Post("/search", handler.Search)
			r.Get("/suggest", handler.Suggest)
			r.Get("/parse", handler.Parse)
			if handler.history != nil {
				r.Get("/history", handler.History)
			}
		})
	})

	return r
}
