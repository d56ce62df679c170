// Package api exposes the archive over HTTP: browsing endpoints for
// conversations, messages, and the timeline, plus operational endpoints
// that trigger imports and cleanup.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/chatvault/chatvault/internal/importer"
	"github.com/chatvault/chatvault/internal/record"
	"github.com/chatvault/chatvault/internal/store"
	"github.com/chatvault/chatvault/internal/timeline"
)

type Server struct {
	router   *chi.Mux
	port     int
	store    store.Store
	timeline *timeline.Projector
	runner   *importer.Runner
	logger   *slog.Logger
}

func NewServer(port int, s store.Store, runner *importer.Runner, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	srv := &Server{
		router:   router,
		port:     port,
		store:    s,
		timeline: timeline.New(s),
		runner:   runner,
		logger:   logger,
	}

	router.Get("/health", srv.health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/conversations", srv.listConversations)
		r.Post("/conversations/export", srv.exportConversations)
		r.Get("/conversations/{id}", srv.getConversation)
		r.Post("/conversations/{id}/hidden", srv.setConversationHidden)
		r.Delete("/conversations/{id}", srv.deleteConversation)

		r.Get("/messages/search", srv.searchMessages)
		r.Get("/messages/{id}", srv.getMessage)
		r.Post("/messages/{id}/hidden", srv.setMessageHidden)

		r.Get("/timeline", srv.getTimeline)

		r.Post("/import/start", srv.startImport)
		r.Post("/import/html", srv.startHTMLImport)
		r.Post("/import/upload", srv.uploadFile)
		r.Get("/import/status", srv.importStatus)

		r.Post("/cleanup/html-duplicates", srv.cleanupHTMLDuplicates)

		r.Get("/ttl/auth", srv.listTTLAuth)
		r.Get("/ttl/sessions", srv.listTTLSessions)

		r.Get("/stats", srv.getStats)
	})

	return srv
}

// Handler exposes the router so the caller can wrap it in its own
// http.Server for graceful shutdown.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	counts, err := s.timeline.Counts(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"totals":       stats,
		"event_counts": counts,
	})
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// respondError maps pipeline sentinels onto status codes. Parse and
// format errors are the client's fault; everything else is ours.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, record.ErrParse) || errors.Is(err, record.ErrUnrecognizedFormat) {
		status = http.StatusBadRequest
	}
	if status >= 500 {
		s.logger.Error("request failed", "error", err)
	}
	s.respond(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.respond(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func (s *Server) notFound(w http.ResponseWriter, msg string) {
	s.respond(w, http.StatusNotFound, map[string]string{"error": msg})
}

func pageRequest(r *http.Request) store.PageRequest {
	return store.PageRequest{
		Page:    queryInt(r, "page", 1),
		PerPage: queryInt(r, "per_page", 20),
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func queryFloat(r *http.Request, key string) float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0
}
