package api

import "net/http"

func (s *Server) listTTLAuth(w http.ResponseWriter, r *http.Request) {
	rows, info, err := s.store.ListTTLAuth(r.Context(), pageRequest(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	views := make([]ttlAuthView, 0, len(rows))
	for _, a := range rows {
		views = append(views, toTTLAuthView(a))
	}
	s.respond(w, http.StatusOK, map[string]any{
		"auth":     views,
		"page":     info.Page,
		"per_page": info.PerPage,
		"total":    info.Total,
		"pages":    info.Pages,
	})
}

func (s *Server) listTTLSessions(w http.ResponseWriter, r *http.Request) {
	rows, info, err := s.store.ListTTLSessions(r.Context(), pageRequest(r))
	if err != nil {
		s.respondError(w, err)
		return
	}
	views := make([]ttlSessionView, 0, len(rows))
	for _, sess := range rows {
		views = append(views, toTTLSessionView(sess))
	}
	s.respond(w, http.StatusOK, map[string]any{
		"sessions": views,
		"page":     info.Page,
		"per_page": info.PerPage,
		"total":    info.Total,
		"pages":    info.Pages,
	})
}
