package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aryankumar/fleetgate/internal/util"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// requireEnv rejects /api requests without an env query parameter. The id
// itself is resolved by the gateway so unknown ids map onto
// unknown_environment.
func requireEnv(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("env") == "" {
			writeJSON(w, http.StatusBadRequest, Envelope{
				Success: false,
				Message: "query parameter env is required",
				Error:   util.CodeInvalidRequest,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logRequests logs one line per request
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		}
		if envID := r.URL.Query().Get("env"); envID != "" {
			attrs = append(attrs, "env", envID)
		}

		if status >= http.StatusInternalServerError {
			s.logger.Warn("request completed", attrs...)
		} else {
			s.logger.Info("request completed", attrs...)
		}
	})
}

// instrument records request metrics by route pattern, not raw path
func (s *Server) instrument(next http.Handler) http.Handler {
	if s.deps.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.deps.Metrics.ObserveHTTP(route, r.Method, status, time.Since(start))
	})
}

// recoverer turns a handler panic into an internal error response
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("handler panicked",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprint(rec))
				writeJSON(w, http.StatusInternalServerError, Envelope{
					Success: false,
					Message: "internal server error",
					Error:   util.CodeInternal,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
