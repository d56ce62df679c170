// Package store defines the persistence boundary of the pipeline. The
// importer, resolver, and timeline projector only ever talk to the
// Store interface; Postgres and the in-memory test double implement it.
package store

import (
	"context"

	"github.com/chatvault/chatvault/internal/record"
)

// PageRequest is a 1-based page selector.
type PageRequest struct {
	Page    int
	PerPage int
}

// PageInfo describes one page of a result set.
type PageInfo struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
}

// ConversationFilter narrows conversation listings.
type ConversationFilter struct {
	Search           string
	SearchInMessages bool
	SortOrder        string // "newest" (default) or "oldest"
	IncludeHidden    bool
}

// CascadeResult reports what a conversation delete removed.
type CascadeResult struct {
	Messages    int `json:"messages"`
	Feedback    int `json:"feedback"`
	Comparisons int `json:"comparisons"`
}

// ImportLog tracks which export folders have been imported.
type ImportLog struct {
	ExportFolder  string  `json:"export_folder"`
	Status        string  `json:"import_status"` // pending, in_progress, completed, error
	Conversations int     `json:"conversations_count"`
	Messages      int     `json:"messages_count"`
	Feedback      int     `json:"feedback_count"`
	Comparisons   int     `json:"comparisons_count"`
	TTLAuth       int     `json:"ttl_auth_count"`
	TTLSessions   int     `json:"ttl_sessions_count"`
	StartedAt     float64 `json:"import_started_at"`
	CompletedAt   float64 `json:"import_completed_at"`
	ErrorLog      string  `json:"error_log,omitempty"`
}

// Stats is the aggregate row-count snapshot.
type Stats struct {
	Conversations int `json:"total_conversations"`
	Messages      int `json:"total_messages"`
	Feedback      int `json:"total_feedback"`
	Comparisons   int `json:"total_comparisons"`
	TTLAuth       int `json:"total_ttl_auth"`
	TTLSessions   int `json:"total_ttl_sessions"`
}

// Store is the record store the pipeline writes to and reads from.
// Find methods return (nil, nil) when the row is absent.
type Store interface {
	FindConversation(ctx context.Context, conversationID string) (*record.Conversation, error)
	InsertConversation(ctx context.Context, c record.Conversation) error
	// UpdateConversation refreshes the mutable metadata fields only
	// (title, update_time, current_node, archived/starred flags).
	UpdateConversation(ctx context.Context, c record.Conversation) error
	ListConversations(ctx context.Context, f ConversationFilter, p PageRequest) ([]record.Conversation, PageInfo, error)
	SetConversationHidden(ctx context.Context, conversationID string, hidden bool) error
	DeleteConversationCascade(ctx context.Context, conversationID string) (CascadeResult, error)

	FindMessage(ctx context.Context, messageID string) (*record.Message, error)
	InsertMessage(ctx context.Context, m record.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]record.Message, error)
	CountMessagesBySource(ctx context.Context, conversationID string, src record.Source) (int, error)
	DeleteMessage(ctx context.Context, conversationID, messageID string, src record.Source) error
	SearchMessages(ctx context.Context, query string, p PageRequest) ([]record.Message, PageInfo, error)
	SetMessageHidden(ctx context.Context, messageID string, hidden bool) error

	FindFeedback(ctx context.Context, feedbackID string) (*record.Feedback, error)
	FindFeedbackByNaturalKey(ctx context.Context, messageID, rating, content string) (*record.Feedback, error)
	InsertFeedback(ctx context.Context, f record.Feedback) error
	ListFeedback(ctx context.Context, conversationID string) ([]record.Feedback, error)

	HasComparison(ctx context.Context, conversationID, payloadHash string) (bool, error)
	InsertComparison(ctx context.Context, c record.ModelComparison) error
	ListComparisons(ctx context.Context, conversationID string) ([]record.ModelComparison, error)

	FindUserByFolder(ctx context.Context, exportFolder string) (*record.User, error)
	InsertUser(ctx context.Context, u record.User) error

	FindTTLAuth(ctx context.Context, userID, exportFolder string) (*record.TTLAuth, error)
	InsertTTLAuth(ctx context.Context, a record.TTLAuth) error
	ListTTLAuth(ctx context.Context, p PageRequest) ([]record.TTLAuth, PageInfo, error)
	FindTTLBilling(ctx context.Context, userID, exportFolder string) (*record.TTLBilling, error)
	InsertTTLBilling(ctx context.Context, b record.TTLBilling) error
	FindTTLSession(ctx context.Context, sessionID string) (*record.TTLSession, error)
	InsertTTLSession(ctx context.Context, s record.TTLSession) error
	ListTTLSessions(ctx context.Context, p PageRequest) ([]record.TTLSession, PageInfo, error)

	FindImportLog(ctx context.Context, exportFolder string) (*ImportLog, error)
	UpsertImportLog(ctx context.Context, l ImportLog) error
	ListImportLogs(ctx context.Context) ([]ImportLog, error)

	// Bulk listers backing the timeline projector. Events are derived
	// on read, so these return full row sets.
	AllConversations(ctx context.Context) ([]record.Conversation, error)
	AllMessages(ctx context.Context) ([]record.Message, error)
	AllFeedback(ctx context.Context) ([]record.Feedback, error)

	Stats(ctx context.Context) (Stats, error)
}

// Paginate clamps a page request and computes page metadata. Page
// count is a ceil divide so a trailing partial page is still a page.
func Paginate(total int, p PageRequest) (offset, limit int, info PageInfo) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PerPage < 1 {
		p.PerPage = 20
	}
	pages := (total + p.PerPage - 1) / p.PerPage
	return (p.Page - 1) * p.PerPage, p.PerPage, PageInfo{
		Page:    p.Page,
		PerPage: p.PerPage,
		Total:   total,
		Pages:   pages,
	}
}
