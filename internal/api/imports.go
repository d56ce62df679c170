package api

import (
	"io"
	"net/http"
)

// Upload size cap. Real ChatGPT exports run tens of megabytes.
const maxUploadBytes = 256 << 20

func (s *Server) startImport(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.ImportAll(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, summary)
}

func (s *Server) startHTMLImport(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.ImportHTMLDir(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, summary)
}

// uploadFile imports a single file posted as multipart form data under
// the "file" field.
func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.badRequest(w, "expected multipart form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.badRequest(w, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		s.respondError(w, err)
		return
	}

	result, err := s.runner.ImportFile(r.Context(), header.Filename, data)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, result)
}

func (s *Server) importStatus(w http.ResponseWriter, r *http.Request) {
	logs, err := s.store.ListImportLogs(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{
		"folders": logs,
		"total":   len(logs),
	})
}

func (s *Server) cleanupHTMLDuplicates(w http.ResponseWriter, r *http.Request) {
	res, err := s.runner.CleanupHTMLDuplicates(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, res)
}
