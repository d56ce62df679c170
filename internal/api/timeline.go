package api

import (
	"net/http"

	"github.com/chatvault/chatvault/internal/record"
	"github.com/chatvault/chatvault/internal/timeline"
)

func (s *Server) getTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	eventType := record.EventType(q.Get("event_type"))
	switch eventType {
	case "", record.EventConversationCreated, record.EventMessageSent, record.EventFeedbackGiven:
	default:
		s.badRequest(w, "unknown event_type")
		return
	}

	sortOrder := q.Get("sort_order")
	if sortOrder != "" && sortOrder != "newest" && sortOrder != "oldest" {
		s.badRequest(w, "sort_order must be newest or oldest")
		return
	}

	events, info, err := s.timeline.Events(r.Context(), timeline.Query{
		EventType: eventType,
		Start:     queryFloat(r, "start"),
		End:       queryFloat(r, "end"),
		Search:    q.Get("search"),
		SortOrder: sortOrder,
		Page:      queryInt(r, "page", 1),
		PerPage:   queryInt(r, "per_page", 20),
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	if events == nil {
		events = []record.TimelineEvent{}
	}
	s.respond(w, http.StatusOK, map[string]any{
		"events":   events,
		"page":     info.Page,
		"per_page": info.PerPage,
		"total":    info.Total,
		"pages":    info.Pages,
	})
}
