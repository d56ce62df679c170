package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/chatvault/chatvault/internal/store"
)

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ConversationFilter{
		Search:           q.Get("search"),
		SearchInMessages: q.Get("search_in_messages") == "true",
		SortOrder:        q.Get("sort_order"),
		IncludeHidden:    q.Get("include_hidden") == "true",
	}

	convs, info, err := s.store.ListConversations(r.Context(), filter, pageRequest(r))
	if err != nil {
		s.respondError(w, err)
		return
	}

	views := make([]conversationView, 0, len(convs))
	for _, c := range convs {
		views = append(views, toConversationView(c))
	}
	s.respond(w, http.StatusOK, map[string]any{
		"conversations": views,
		"page":          info.Page,
		"per_page":      info.PerPage,
		"total":         info.Total,
		"pages":         info.Pages,
	})
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := s.store.FindConversation(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if conv == nil {
		s.notFound(w, "conversation not found")
		return
	}

	msgs, err := s.store.ListMessages(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	fbs, err := s.store.ListFeedback(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	cmps, err := s.store.ListComparisons(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}

	msgViews := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		msgViews = append(msgViews, toMessageView(m))
	}
	fbViews := make([]feedbackView, 0, len(fbs))
	for _, f := range fbs {
		fbViews = append(fbViews, toFeedbackView(f))
	}
	cmpViews := make([]comparisonView, 0, len(cmps))
	for _, c := range cmps {
		cmpViews = append(cmpViews, toComparisonView(c))
	}

	s.respond(w, http.StatusOK, map[string]any{
		"conversation": toConversationView(*conv),
		"messages":     msgViews,
		"feedback":     fbViews,
		"comparisons":  cmpViews,
	})
}

type hiddenRequest struct {
	Hidden bool `json:"hidden"`
}

func (s *Server) setConversationHidden(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req hiddenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}

	conv, err := s.store.FindConversation(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if conv == nil {
		s.notFound(w, "conversation not found")
		return
	}
	if err := s.store.SetConversationHidden(r.Context(), id, req.Hidden); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"hidden":          req.Hidden,
	})
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conv, err := s.store.FindConversation(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if conv == nil {
		s.notFound(w, "conversation not found")
		return
	}

	res, err := s.store.DeleteConversationCascade(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.logger.Info("conversation deleted", "conversation_id", id,
		"messages", res.Messages, "feedback", res.Feedback)
	s.respond(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"deleted":         res,
	})
}

type exportRequest struct {
	ConversationIDs []string `json:"conversation_ids"`
}

type exportEntry struct {
	Conversation conversationView `json:"conversation"`
	Messages     []messageView    `json:"messages"`
}

// exportConversations bundles the selected conversations with their
// messages into a downloadable JSON attachment. Unknown ids are
// silently dropped so a stale selection still exports the rest.
func (s *Server) exportConversations(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	if len(req.ConversationIDs) == 0 {
		s.badRequest(w, "conversation_ids is required")
		return
	}

	var entries []exportEntry
	for _, id := range req.ConversationIDs {
		conv, err := s.store.FindConversation(r.Context(), id)
		if err != nil {
			s.respondError(w, err)
			return
		}
		if conv == nil {
			continue
		}
		msgs, err := s.store.ListMessages(r.Context(), id)
		if err != nil {
			s.respondError(w, err)
			return
		}
		views := make([]messageView, 0, len(msgs))
		for _, m := range msgs {
			views = append(views, toMessageView(m))
		}
		entries = append(entries, exportEntry{
			Conversation: toConversationView(*conv),
			Messages:     views,
		})
	}

	name := fmt.Sprintf("conversations-export-%s.json", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		s.logger.Error("encode export", "error", err)
	}
}
