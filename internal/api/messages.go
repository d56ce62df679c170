package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msg, err := s.store.FindMessage(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if msg == nil {
		s.notFound(w, "message not found")
		return
	}
	s.respond(w, http.StatusOK, toMessageView(*msg))
}

func (s *Server) searchMessages(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		s.badRequest(w, "q is required")
		return
	}

	msgs, info, err := s.store.SearchMessages(r.Context(), query, pageRequest(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	views := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, toMessageView(m))
	}
	s.respond(w, http.StatusOK, map[string]any{
		"messages": views,
		"query":    query,
		"page":     info.Page,
		"per_page": info.PerPage,
		"total":    info.Total,
		"pages":    info.Pages,
	})
}

func (s *Server) setMessageHidden(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req hiddenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}

	msg, err := s.store.FindMessage(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if msg == nil {
		s.notFound(w, "message not found")
		return
	}
	if err := s.store.SetMessageHidden(r.Context(), id, req.Hidden); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"message_id": id,
		"hidden":     req.Hidden,
	})
}
