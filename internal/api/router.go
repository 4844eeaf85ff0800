package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// healthCheckTimeout bounds each component check in /api/v1/health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/stations", func(r chi.Router) {
			// Provisioning is unauthenticated: the caller receives the
			// only copy of the new station's token.
			r.Post("/", s.handleCreateStation)

			r.Route("/{id}", func(r chi.Router) {
				r.Use(s.stationAuthMiddleware)

				r.Get("/", s.handleGetStation)
				r.Put("/", s.handleRenameStation)
				r.Get("/state", s.handleGetState)
				r.Put("/state", s.handleSetState)
				r.Get("/config", s.handleGetConfig)
				r.Put("/config", s.handleSetConfig)
				r.Get("/presence", s.handleGetPresence)
			})
		})
	})

	return r
}

// handleHealth reports the version and the state of each component.
// Any failing component makes the response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	components := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.health[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
