package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chatvault/chatvault/internal/importer"
	"github.com/chatvault/chatvault/internal/record"
	"github.com/chatvault/chatvault/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Memory, string) {
	t.Helper()
	mem := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chatlogDir := t.TempDir()
	runner := importer.New(mem, nil, logger, chatlogDir, filepath.Join(chatlogDir, "HTMLS"))
	return NewServer(0, mem, runner, logger), mem, chatlogDir
}

func seedConversation(t *testing.T, mem *store.Memory) {
	t.Helper()
	ctx := context.Background()
	if err := mem.InsertConversation(ctx, record.Conversation{
		ConversationID: "0abc-1", Title: "Tides and currents",
		CreateTime: 1000, UpdateTime: 1100, Source: record.SourceJSONExport,
	}); err != nil {
		t.Fatal(err)
	}
	if err := mem.InsertMessage(ctx, record.Message{
		ConversationID: "0abc-1", MessageID: "m1", Role: "user",
		Content: "why do tides happen", CreateTime: 1010, Source: record.SourceJSONExport,
	}); err != nil {
		t.Fatal(err)
	}
	if err := mem.InsertMessage(ctx, record.Message{
		ConversationID: "0abc-1", MessageID: "m2", Role: "assistant",
		Content: "gravitational pull of the moon", CreateTime: 1020, Source: record.SourceJSONExport,
	}); err != nil {
		t.Fatal(err)
	}
	if err := mem.InsertFeedback(ctx, record.Feedback{
		FeedbackID: "fb-1", ConversationID: "0abc-1", MessageID: "m2",
		Rating: "thumbs_up", CreateTime: 1030,
	}); err != nil {
		t.Fatal(err)
	}
}

func doRequest(t *testing.T, srv *Server, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, "GET", "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
}

func TestListConversations(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedConversation(t, mem)

	w := doRequest(t, srv, "GET", "/api/v1/conversations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["total"].(float64) != 1 {
		t.Errorf("total = %v, want 1", body["total"])
	}
	convs := body["conversations"].([]any)
	if len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
	first := convs[0].(map[string]any)
	if first["conversation_id"] != "0abc-1" {
		t.Errorf("conversation_id = %v", first["conversation_id"])
	}
	if first["title"] != "Tides and currents" {
		t.Errorf("title = %v", first["title"])
	}
}

func TestListConversations_Search(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedConversation(t, mem)

	w := doRequest(t, srv, "GET", "/api/v1/conversations?search=tides", nil)
	body := decodeBody(t, w)
	if body["total"].(float64) != 1 {
		t.Errorf("title search total = %v, want 1", body["total"])
	}

	w = doRequest(t, srv, "GET", "/api/v1/conversations?search=nosuchthing", nil)
	body = decodeBody(t, w)
	if body["total"].(float64) != 0 {
		t.Errorf("miss search total = %v, want 0", body["total"])
	}

	// Message-body search finds the conversation by its content.
	w = doRequest(t, srv, "GET", "/api/v1/conversations?search=gravitational&search_in_messages=true", nil)
	body = decodeBody(t, w)
	if body["total"].(float64) != 1 {
		t.Errorf("message search total = %v, want 1", body["total"])
	}
}

func TestGetConversation(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedConversation(t, mem)

	w := doRequest(t, srv, "GET", "/api/v1/conversations/0abc-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	msgs := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	// Messages arrive in create_time order.
	first := msgs[0].(map[string]any)
	if first["message_id"] != "m1" {
		t.Errorf("first message = %v, want m1", first["message_id"])
	}
	if len(body["feedback"].([]any)) != 1 {
		t.Errorf("feedback = %v", body["feedback"])
	}

	w = doRequest(t, srv, "GET", "/api/v1/conversations/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHideConversation(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedConversation(t, mem)
	ctx := context.Background()

	w := doRequest(t, srv, "POST", "/api/v1/conversations/0abc-1/hidden",
		strings.NewReader(`{"hidden": true}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	conv, err := mem.FindConversation(ctx, "0abc-1")
	if err != nil {
		t.Fatal(err)
	}
	if !conv.IsHidden {
		t.Error("conversation not hidden after toggle")
	}

	// Hidden conversations drop out of default listings.
	body := decodeBody(t, doRequest(t, srv, "GET", "/api/v1/conversations", nil))
	if body["total"].(float64) != 0 {
		t.Errorf("hidden conversation still listed: total = %v", body["total"])
	}
	body = decodeBody(t, doRequest(t, srv, "GET", "/api/v1/conversations?include_hidden=true", nil))
	if body["total"].(float64) != 1 {
		t.Errorf("include_hidden total = %v, want 1", body["total"])
	}

	w = doRequest(t, srv, "POST", "/api/v1/conversations/missing/hidden",
		strings.NewReader(`{"hidden": true}`))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHideMessage(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedConversation(t, mem)

	w := doRequest(t, srv, "POST", "/api/v1/messages/m1/hidden",
		strings.NewReader(`{"hidden": true}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	msg, err := mem.FindMessage(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if !msg.IsHidden {
		t.Error("message not hidden after toggle")
	}
}

func TestDeleteConversation(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedConversation(t, mem)

	w := doRequest(t, srv, "DELETE", "/api/v1/conversations/0abc-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	deleted := body["deleted"].(map[string]any)
	if deleted["messages"].(float64) != 2 {
		t.Errorf("deleted messages = %v, want 2", deleted["messages"])
	}
	if deleted["feedback"].(float64) != 1 {
		t.Errorf("deleted feedback = %v, want 1", deleted["feedback"])
	}

	conv, err := mem.FindConversation(context.Background(), "0abc-1")
	if err != nil {
		t.Fatal(err)
	}
	if conv != nil {
		t.Error("conversation still present after delete")
	}

	w = doRequest(t, srv, "DELETE", "/api/v1/conversations/0abc-1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", w.Code)
	}
}

func TestExportConversations(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedConversation(t, mem)

	w := doRequest(t, srv, "POST", "/api/v1/conversations/export",
		strings.NewReader(`{"conversation_ids": ["0abc-1", "missing"]}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	var entries []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 (unknown ids dropped)", len(entries))
	}
	if len(entries[0]["messages"].([]any)) != 2 {
		t.Errorf("exported messages = %v", entries[0]["messages"])
	}

	w = doRequest(t, srv, "POST", "/api/v1/conversations/export",
		strings.NewReader(`{"conversation_ids": []}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty selection: expected 400, got %d", w.Code)
	}
}

func TestSearchMessages(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedConversation(t, mem)

	w := doRequest(t, srv, "GET", "/api/v1/messages/search?q=gravitational", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["total"].(float64) != 1 {
		t.Errorf("total = %v, want 1", body["total"])
	}

	w = doRequest(t, srv, "GET", "/api/v1/messages/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q: expected 400, got %d", w.Code)
	}
}

func TestGetMessage(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedConversation(t, mem)

	w := doRequest(t, srv, "GET", "/api/v1/messages/m2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["role"] != "assistant" {
		t.Errorf("role = %v", body["role"])
	}

	w = doRequest(t, srv, "GET", "/api/v1/messages/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestTimelineEndpoint(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedConversation(t, mem)

	w := doRequest(t, srv, "GET", "/api/v1/timeline", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["total"].(float64) != 4 {
		t.Errorf("total = %v, want 4", body["total"])
	}

	w = doRequest(t, srv, "GET", "/api/v1/timeline?event_type=message_sent&sort_order=oldest", nil)
	body = decodeBody(t, w)
	events := body["events"].([]any)
	if len(events) != 2 {
		t.Fatalf("message events = %d, want 2", len(events))
	}
	first := events[0].(map[string]any)
	if first["message_id"] != "m1" {
		t.Errorf("oldest first = %v, want m1", first["message_id"])
	}

	w = doRequest(t, srv, "GET", "/api/v1/timeline?event_type=bogus", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus event_type: expected 400, got %d", w.Code)
	}
	w = doRequest(t, srv, "GET", "/api/v1/timeline?sort_order=sideways", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bogus sort_order: expected 400, got %d", w.Code)
	}
}

const apiConversationsJSON = `[
  {
    "conversation_id": "0abc123-def4",
    "title": "Uploaded chat",
    "create_time": 1700000000,
    "update_time": 1700000100,
    "mapping": {
      "root": {"id": "root", "children": ["n1"]},
      "n1": {
        "id": "n1",
        "parent": "root",
        "children": [],
        "message": {
          "id": "n1",
          "author": {"role": "user"},
          "content": {"content_type": "text", "parts": ["hello there"]},
          "create_time": 1700000000
        }
      }
    }
  }
]`

func TestImportStartAndStatus(t *testing.T) {
	srv, _, chatlogDir := newTestServer(t)

	folder := filepath.Join(chatlogDir, "export-2024")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "conversations.json"), []byte(apiConversationsJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, srv, "POST", "/api/v1/import/start", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["processed"].(float64) != 1 {
		t.Errorf("processed = %v, want 1", body["processed"])
	}
	if body["conversations"].(float64) != 1 {
		t.Errorf("conversations = %v, want 1", body["conversations"])
	}

	w = doRequest(t, srv, "GET", "/api/v1/import/status", nil)
	body = decodeBody(t, w)
	folders := body["folders"].([]any)
	if len(folders) != 1 {
		t.Fatalf("folders = %d, want 1", len(folders))
	}
	log := folders[0].(map[string]any)
	if log["import_status"] != "completed" {
		t.Errorf("import_status = %v", log["import_status"])
	}
}

func TestUploadFile(t *testing.T) {
	srv, _, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "conversations.json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(apiConversationsJSON)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/api/v1/import/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["kind"] != "conversations" {
		t.Errorf("kind = %v", body["kind"])
	}
	if body["conversations"].(float64) != 1 {
		t.Errorf("conversations = %v, want 1", body["conversations"])
	}

	w = doRequest(t, srv, "POST", "/api/v1/import/upload", strings.NewReader("{}"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-multipart: expected 400, got %d", w.Code)
	}
}

func TestCleanupEndpoint(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	ctx := context.Background()

	if err := mem.InsertConversation(ctx, record.Conversation{ConversationID: "0abc-1", CreateTime: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := mem.InsertMessage(ctx, record.Message{
		ConversationID: "0abc-1", MessageID: "h1", Content: "scraped", Source: record.SourceHTMLExport, CreateTime: 1010,
	}); err != nil {
		t.Fatal(err)
	}
	if err := mem.InsertMessage(ctx, record.Message{
		ConversationID: "0abc-1", MessageID: "j1", Content: "exported", Source: record.SourceJSONExport, CreateTime: 1010,
	}); err != nil {
		t.Fatal(err)
	}

	w := doRequest(t, srv, "POST", "/api/v1/cleanup/html-duplicates", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["removed"].(float64) != 1 {
		t.Errorf("removed = %v, want 1", body["removed"])
	}
}

func TestTTLEndpoints(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	ctx := context.Background()

	if err := mem.InsertTTLAuth(ctx, record.TTLAuth{
		UserID: "user-1", ExportFolder: "march|march - ttl", Email: "a@example.com",
	}); err != nil {
		t.Fatal(err)
	}
	if err := mem.InsertTTLSession(ctx, record.TTLSession{
		UserID: "user-1", SessionID: "sess-1", CreateTime: 1700000000, City: "Lisbon",
	}); err != nil {
		t.Fatal(err)
	}

	body := decodeBody(t, doRequest(t, srv, "GET", "/api/v1/ttl/auth", nil))
	if body["total"].(float64) != 1 {
		t.Errorf("auth total = %v, want 1", body["total"])
	}

	body = decodeBody(t, doRequest(t, srv, "GET", "/api/v1/ttl/sessions", nil))
	sessions := body["sessions"].([]any)
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	if sessions[0].(map[string]any)["city"] != "Lisbon" {
		t.Errorf("city = %v", sessions[0].(map[string]any)["city"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, mem, _ := newTestServer(t)
	seedConversation(t, mem)

	w := doRequest(t, srv, "GET", "/api/v1/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	totals := body["totals"].(map[string]any)
	if totals["total_conversations"].(float64) != 1 {
		t.Errorf("total_conversations = %v", totals["total_conversations"])
	}
	if totals["total_messages"].(float64) != 2 {
		t.Errorf("total_messages = %v", totals["total_messages"])
	}
	counts := body["event_counts"].(map[string]any)
	if counts["message_sent"].(float64) != 2 {
		t.Errorf("message_sent count = %v", counts["message_sent"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(t, srv, "GET", "/nonexistent", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}
