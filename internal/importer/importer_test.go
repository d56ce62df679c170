package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chatvault/chatvault/internal/record"
	"github.com/chatvault/chatvault/internal/store"
)

func newRunner(t *testing.T) (*Runner, *store.Memory, string, string) {
	t.Helper()
	chatlog := t.TempDir()
	htmls := t.TempDir()
	mem := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(mem, nil, logger, chatlog, htmls), mem, chatlog, htmls
}

// conversationsJSON builds a minimal conversations.json with one
// conversation and a linear chain of messages.
func conversationsJSON(convID string, msgIDs ...string) string {
	var nodes []string
	parent := "null"
	for i, id := range msgIDs {
		children := "[]"
		if i+1 < len(msgIDs) {
			children = fmt.Sprintf(`["%s"]`, msgIDs[i+1])
		}
		nodes = append(nodes, fmt.Sprintf(
			`"%s": {"parent": %s, "children": %s, "message": {"author": {"role": "user"}, "content": "msg %d", "create_time": %d}}`,
			id, parent, children, i, 1700000000+i))
		parent = fmt.Sprintf(`"%s"`, id)
	}
	return fmt.Sprintf(`[{"conversation_id": "%s", "title": "t", "create_time": 1700000000, "update_time": 1700000100, "mapping": {%s}}]`,
		convID, strings.Join(nodes, ","))
}

func writeFolder(t *testing.T, chatlog, folder string, files map[string]string) {
	t.Helper()
	dir := filepath.Join(chatlog, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestImportAll_Idempotent(t *testing.T) {
	ctx := context.Background()
	r, mem, chatlog, _ := newRunner(t)
	writeFolder(t, chatlog, "export-a", map[string]string{
		"conversations.json": conversationsJSON("conv-1", "m1", "m2"),
	})

	first, err := r.ImportAll(ctx)
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if first.Processed != 1 || first.Conversations != 1 || first.Messages != 2 {
		t.Fatalf("first run = %+v", first)
	}

	second, err := r.ImportAll(ctx)
	if err != nil {
		t.Fatalf("second ImportAll: %v", err)
	}
	if second.Skipped != 1 || second.Processed != 0 || second.Messages != 0 {
		t.Fatalf("second run = %+v, want all-skip", second)
	}

	st, _ := mem.Stats(ctx)
	if st.Conversations != 1 || st.Messages != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestImportAll_IncrementalGrowth(t *testing.T) {
	ctx := context.Background()
	r, mem, chatlog, _ := newRunner(t)

	writeFolder(t, chatlog, "export-a", map[string]string{
		"conversations.json": conversationsJSON("conv-1", "m1", "m2"),
	})
	if _, err := r.ImportAll(ctx); err != nil {
		t.Fatal(err)
	}

	// A fresh export of the same account: the conversation has grown
	// two new messages.
	writeFolder(t, chatlog, "export-b", map[string]string{
		"conversations.json": conversationsJSON("conv-1", "m1", "m2", "m3", "m4"),
	})
	summary, err := r.ImportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Messages != 2 {
		t.Fatalf("new messages = %d, want 2", summary.Messages)
	}
	if summary.Conversations != 0 {
		t.Fatalf("new conversations = %d, want 0", summary.Conversations)
	}

	msgs, _ := mem.ListMessages(ctx, "conv-1")
	if len(msgs) != 4 {
		t.Fatalf("stored messages = %d, want 4", len(msgs))
	}
}

func TestImportAll_ErrorIsolation(t *testing.T) {
	ctx := context.Background()
	r, _, chatlog, _ := newRunner(t)

	writeFolder(t, chatlog, "folder-1", map[string]string{
		"conversations.json": conversationsJSON("conv-1", "a1"),
	})
	writeFolder(t, chatlog, "folder-2", map[string]string{
		"conversations.json": `[{"conversation_id": "conv-2", "mapping": {truncated`,
	})
	writeFolder(t, chatlog, "folder-3", map[string]string{
		"conversations.json": conversationsJSON("conv-3", "c1"),
	})

	summary, err := r.ImportAll(ctx)
	if err != nil {
		t.Fatalf("ImportAll: %v", err)
	}
	if summary.Processed != 2 || summary.Errors != 1 {
		t.Fatalf("summary = %+v, want processed=2 errors=1", summary)
	}
	if len(summary.ErrorsList) != 1 || !strings.Contains(summary.ErrorsList[0], "folder-2") {
		t.Fatalf("errors_list = %v", summary.ErrorsList)
	}
}

func TestImportAll_SkipsFolderWithoutConversations(t *testing.T) {
	ctx := context.Background()
	r, _, chatlog, _ := newRunner(t)
	writeFolder(t, chatlog, "just-notes", map[string]string{"readme.txt": "hi"})

	summary, err := r.ImportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 1 || summary.Errors != 0 {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestImportAll_FeedbackAndComparisons(t *testing.T) {
	ctx := context.Background()
	r, mem, chatlog, _ := newRunner(t)
	writeFolder(t, chatlog, "export-a", map[string]string{
		"conversations.json":     conversationsJSON("conv-1", "m1"),
		"message_feedback.json":  `[{"id": "fb-1", "conversation_id": "conv-1", "message_id": "m1", "rating": "thumbs_up", "create_time": "2023-06-21T18:45:36Z"}]`,
		"model_comparisons.json": `{"conv-1": {"winner": "model-a"}}`,
		"user.json":              `{"email": "a@b.c", "chatgpt_plus_user": true}`,
	})

	summary, err := r.ImportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Feedback != 1 || summary.Comparisons != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if u, _ := mem.FindUserByFolder(ctx, "export-a"); u == nil || u.Email != "a@b.c" {
		t.Errorf("user = %+v", u)
	}
}

func TestImportAll_TTLPairing(t *testing.T) {
	ctx := context.Background()
	r, mem, chatlog, _ := newRunner(t)

	writeFolder(t, chatlog, "march", map[string]string{
		"conversations.json": conversationsJSON("conv-1", "m1"),
	})
	authJSON := `{
		"user": {"userId": "user-1", "email": "a@b.c"},
		"sessions": [{"sessionId": "sess-1", "createTime": 1709287200, "cfMetadata": {"city": "Lisbon"}}]
	}`
	writeFolder(t, chatlog, "march - ttl/30d/export_data/0000", map[string]string{
		"prod-mc-auth.json":    authJSON,
		"prod-mc-billing.json": `{"userId": "user-1", "plan": "plus"}`,
	})

	summary, err := r.ImportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// The TTL folder rides along with its conversation folder instead
	// of being its own run item.
	if summary.TotalFolders != 1 {
		t.Fatalf("total_folders = %d, want 1", summary.TotalFolders)
	}
	if summary.TTLAuth != 1 || summary.TTLSessions != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	auth, _ := mem.FindTTLAuth(ctx, "user-1", "march|march - ttl")
	if auth == nil {
		t.Fatal("ttl auth not stored under the paired folder id")
	}
	sess, _ := mem.FindTTLSession(ctx, "sess-1")
	if sess == nil || sess.City != "Lisbon" {
		t.Errorf("session = %+v", sess)
	}
	billing, _ := mem.FindTTLBilling(ctx, "user-1", "march|march - ttl")
	if billing == nil {
		t.Error("ttl billing not stored")
	}
}

func TestImportAll_StandaloneTTLFolder(t *testing.T) {
	ctx := context.Background()
	r, mem, chatlog, _ := newRunner(t)
	writeFolder(t, chatlog, "ttl/30d/export_data/0000", map[string]string{
		"prod-mc-auth.json": `{"user": {"userId": "user-9"}, "sessions": []}`,
	})

	summary, err := r.ImportAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.TotalFolders != 1 || summary.TTLAuth != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if auth, _ := mem.FindTTLAuth(ctx, "user-9", "ttl"); auth == nil {
		t.Fatal("standalone ttl auth not stored")
	}
}

const chatgptHTML = `<html><head><title>T</title></head><body>
<a href="https://chatgpt.com/c/0abc123-def4">x</a>
<article data-testid="conversation-turn-1">
<div data-message-id="hm1" data-message-author-role="user">
<div class="whitespace-pre-wrap">hello there</div></div></article>
</body></html>`

func TestImportHTMLDir(t *testing.T) {
	ctx := context.Background()
	r, mem, _, htmls := newRunner(t)
	if err := os.WriteFile(filepath.Join(htmls, "conv.html"), []byte(chatgptHTML), 0o644); err != nil {
		t.Fatal(err)
	}

	summary, err := r.ImportHTMLDir(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.HTMLFilesFound != 1 || summary.ConversationsImported != 1 || summary.MessagesImported != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	conv, _ := mem.FindConversation(ctx, "0abc123-def4")
	if conv == nil || conv.Source != record.SourceHTMLExport {
		t.Fatalf("conversation = %+v", conv)
	}
}

func TestImportHTMLDir_SourcePriority(t *testing.T) {
	ctx := context.Background()
	r, mem, _, htmls := newRunner(t)

	// The conversation already has an authoritative JSON transcript.
	if err := mem.InsertConversation(ctx, record.Conversation{
		ConversationID: "0abc123-def4", Source: record.SourceJSONExport,
	}); err != nil {
		t.Fatal(err)
	}
	if err := mem.InsertMessage(ctx, record.Message{
		ConversationID: "0abc123-def4", MessageID: "j1", Source: record.SourceJSONExport,
	}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(htmls, "conv.html"), []byte(chatgptHTML), 0o644); err != nil {
		t.Fatal(err)
	}

	summary, err := r.ImportHTMLDir(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.ConversationsImported != 0 || summary.MessagesImported != 0 {
		t.Fatalf("summary = %+v, want zero imports", summary)
	}
	if len(summary.Skipped) != 1 || summary.Skipped[0].Reason != "already_has_json" {
		t.Fatalf("skipped = %+v", summary.Skipped)
	}
}

func TestImportHTMLDir_NotChatGPT(t *testing.T) {
	ctx := context.Background()
	r, _, _, htmls := newRunner(t)
	if err := os.WriteFile(filepath.Join(htmls, "random.html"), []byte(`<html><body><p>nope</p></body></html>`), 0o644); err != nil {
		t.Fatal(err)
	}

	summary, err := r.ImportHTMLDir(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if summary.ConversationsImported != 0 || summary.MessagesImported != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.Skipped) != 1 || summary.Skipped[0].Reason != "not_chatgpt" {
		t.Fatalf("skipped = %+v", summary.Skipped)
	}
}

func TestImportHTMLDir_GrokAlreadyExists(t *testing.T) {
	ctx := context.Background()
	r, _, _, htmls := newRunner(t)
	dir := filepath.Join(htmls, "grok")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	page := `<html><body><div class="message">A long enough grok answer.</div></body></html>`
	if err := os.WriteFile(filepath.Join(dir, "q.html"), []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := r.ImportHTMLDir(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.ConversationsImported != 1 {
		t.Fatalf("first = %+v", first)
	}

	second, err := r.ImportHTMLDir(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.ConversationsImported != 0 || len(second.Skipped) != 1 || second.Skipped[0].Reason != "already_exists" {
		t.Fatalf("second = %+v", second)
	}
}

func TestImportFile_Sniffing(t *testing.T) {
	ctx := context.Background()
	r, _, _, _ := newRunner(t)

	res, err := r.ImportFile(ctx, "upload.json", []byte(conversationsJSON("conv-up", "u1")))
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if res.Kind != "conversations" || res.Conversations != 1 || res.Messages != 1 {
		t.Fatalf("result = %+v", res)
	}

	res, err = r.ImportFile(ctx, "data.json", []byte(`[{"id": "fb-9", "message_id": "u1", "rating": "thumbs_up"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != "feedback" || res.Feedback != 1 {
		t.Fatalf("result = %+v", res)
	}

	if _, err := r.ImportFile(ctx, "mystery.bin", []byte("not json at all")); err == nil {
		t.Fatal("expected unrecognized-format error")
	}
}

func TestImportFile_HTMLUpload(t *testing.T) {
	ctx := context.Background()
	r, mem, _, _ := newRunner(t)

	res, err := r.ImportFile(ctx, "conv.html", []byte(chatgptHTML))
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != "html" || res.Conversations != 1 || res.Messages != 1 {
		t.Fatalf("result = %+v", res)
	}
	if conv, _ := mem.FindConversation(ctx, "0abc123-def4"); conv == nil {
		t.Fatal("conversation not stored")
	}
}
