package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"wipetrace/internal/platform/config"
	"wipetrace/internal/platform/metrics"
	"wipetrace/internal/transport/http/middleware"
)

type RouteRegistrar interface {
	RegisterRoutes(r chi.Router)
}

type Handlers struct {
	Deletion      RouteRegistrar
	Companies     RouteRegistrar
	Templates     RouteRegistrar
	Notifications RouteRegistrar
	Email         RouteRegistrar
	Jobs          RouteRegistrar
}

func (h Handlers) all() []RouteRegistrar {
	return []RouteRegistrar{h.Deletion, h.Companies, h.Templates, h.Notifications, h.Email, h.Jobs}
}

// NewRouter mounts the API under /api/v1 with health and metrics endpoints
// at the root. ready backs /readyz.
func NewRouter(cfg config.Config, log *zap.Logger, h Handlers, ready func(context.Context) error) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ready(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SendRateLimit(cfg.RateLimitPerMinute, time.Minute))
		for _, registrar := range h.all() {
			if registrar != nil {
				registrar.RegisterRoutes(r)
			}
		}
	})

	return router
}
