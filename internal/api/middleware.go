package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/technoelf/stomata/internal/station"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"
	ctxKeyStationID contextKey = "station_id"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stomata_api_requests_total",
		Help: "Producer API requests by method, route pattern and status",
	},
	[]string{"method", "route", "status"},
)

// requestIDMiddleware generates a unique request ID for each request.
// If the client sends an X-Request-ID header, it is used; otherwise one is generated.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request and counts it by route pattern.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
	})
}

// recoveryMiddleware catches panics in handlers and returns a 500 response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered in HTTP handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", r.Context().Value(ctxKeyRequestID),
				)
				writeInternalError(w, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

func (s *Server) bodySizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// stationAuthMiddleware requires HTTP Basic credentials "<id>:<token>"
// where id matches the {id} in the path. Unknown stations get 404.
func (s *Server) stationAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			writeBadRequest(w, "station id must be a positive integer")
			return
		}

		hash, err := s.stations.TokenHash(r.Context(), id)
		if errors.Is(err, station.ErrStationNotFound) {
			writeNotFound(w, "station not found")
			return
		}
		if err != nil {
			s.logger.Error("loading station credentials", "station_id", id, "error", err)
			writeInternalError(w, "failed to load station")
			return
		}

		user, token, ok := r.BasicAuth()
		if !ok || user != strconv.FormatInt(id, 10) {
			writeUnauthorized(w, "station credentials required")
			return
		}
		match, err := s.verifyToken(id, token, hash)
		if err != nil {
			s.logger.Warn("station token verification failed", "station_id", id, "error", err)
		}
		if !match {
			writeUnauthorized(w, "invalid station credentials")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyStationID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// stationIDFromContext returns the ID set by stationAuthMiddleware.
func stationIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(ctxKeyStationID).(int64)
	return id
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// requestIDBytes is the number of random bytes used for request IDs.
const requestIDBytes = 8

func generateRequestID() string {
	b := make([]byte, requestIDBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}
