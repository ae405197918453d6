// Package api exposes the HTTP search interface over a built index.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mlefevre/upc-decisions/internal/index"
)

// Searcher answers index queries. Satisfied by *index.Engine.
type Searcher interface {
	Search(ctx context.Context, q index.Query) ([]index.Entry, error)
}

// Server wires HTTP handlers to the query engine.
type Server struct {
	router   chi.Router
	searcher Searcher
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(searcher Searcher, logger *zap.Logger) *Server {
	s := &Server{
		searcher: searcher,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/search", s.search)

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := index.Query{Keyword: r.URL.Query().Get("query")}

	if raw := r.URL.Query().Get("start"); raw != "" {
		dt, err := index.ParseQueryDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		q.Start = &dt
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		dt, err := index.ParseQueryDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		q.End = &dt
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		q.Limit = limit
	}

	entries, err := s.searcher.Search(r.Context(), q)
	if errors.Is(err, index.ErrInvalidQuery) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("search failed"))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are gone at this point; nothing useful left to do.
		return
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
