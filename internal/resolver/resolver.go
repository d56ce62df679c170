// Package resolver decides what happens when a parsed candidate meets
// the store: insert, update, or skip. All dedup and merge rules live
// here so the parsers stay pure and the importer stays mechanical.
package resolver

import (
	"context"
	"fmt"

	"github.com/chatvault/chatvault/internal/record"
	"github.com/chatvault/chatvault/internal/store"
)

// Action is the outcome class of one candidate.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionSkip   Action = "skip"
)

// Skip reasons surfaced to run summaries.
const (
	ReasonAlreadyExists  = "already_exists"
	ReasonAlreadyHasJSON = "already_has_json"
)

// Decision is what the resolver did with one candidate.
type Decision struct {
	Action Action
	Reason string
}

func skip(reason string) Decision { return Decision{Action: ActionSkip, Reason: reason} }

// Resolver applies candidates to a store.
type Resolver struct {
	store store.Store
}

func New(s store.Store) *Resolver {
	return &Resolver{store: s}
}

// UpsertConversation inserts a new conversation or refreshes the
// mutable metadata of an existing one. An HTML candidate is skipped
// outright when the stored conversation already has JSON-sourced
// messages: the JSON export is authoritative and HTML scrapes of the
// same conversation carry different message ids.
func (r *Resolver) UpsertConversation(ctx context.Context, c record.Conversation) (Decision, error) {
	existing, err := r.store.FindConversation(ctx, c.ConversationID)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: find conversation: %v", record.ErrStore, err)
	}
	if existing == nil {
		if err := r.store.InsertConversation(ctx, c); err != nil {
			return Decision{}, fmt.Errorf("%w: insert conversation: %v", record.ErrStore, err)
		}
		return Decision{Action: ActionInsert}, nil
	}

	if c.Source == record.SourceHTMLExport {
		n, err := r.store.CountMessagesBySource(ctx, c.ConversationID, record.SourceJSONExport)
		if err != nil {
			return Decision{}, fmt.Errorf("%w: count messages: %v", record.ErrStore, err)
		}
		if n > 0 {
			return skip(ReasonAlreadyHasJSON), nil
		}
	}

	if err := r.store.UpdateConversation(ctx, c); err != nil {
		return Decision{}, fmt.Errorf("%w: update conversation: %v", record.ErrStore, err)
	}
	return Decision{Action: ActionUpdate}, nil
}

// AddMessage inserts a message unless its id is already stored.
// Messages are immutable once written; re-imports never modify them.
func (r *Resolver) AddMessage(ctx context.Context, m record.Message) (Decision, error) {
	existing, err := r.store.FindMessage(ctx, m.MessageID)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: find message: %v", record.ErrStore, err)
	}
	if existing != nil {
		return skip(ReasonAlreadyExists), nil
	}
	if err := r.store.InsertMessage(ctx, m); err != nil {
		return Decision{}, fmt.Errorf("%w: insert message: %v", record.ErrStore, err)
	}
	return Decision{Action: ActionInsert}, nil
}

// AddFeedback dedups on the vendor feedback id when present, and on
// the (message, rating, content) triple otherwise.
func (r *Resolver) AddFeedback(ctx context.Context, f record.Feedback) (Decision, error) {
	var existing *record.Feedback
	var err error
	if f.FeedbackID != "" {
		existing, err = r.store.FindFeedback(ctx, f.FeedbackID)
	} else {
		existing, err = r.store.FindFeedbackByNaturalKey(ctx, f.MessageID, f.Rating, f.Content)
	}
	if err != nil {
		return Decision{}, fmt.Errorf("%w: find feedback: %v", record.ErrStore, err)
	}
	if existing != nil {
		return skip(ReasonAlreadyExists), nil
	}
	if err := r.store.InsertFeedback(ctx, f); err != nil {
		return Decision{}, fmt.Errorf("%w: insert feedback: %v", record.ErrStore, err)
	}
	return Decision{Action: ActionInsert}, nil
}

// AddComparison dedups on (conversation, payload hash).
func (r *Resolver) AddComparison(ctx context.Context, c record.ModelComparison) (Decision, error) {
	has, err := r.store.HasComparison(ctx, c.ConversationID, c.PayloadHash)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: find comparison: %v", record.ErrStore, err)
	}
	if has {
		return skip(ReasonAlreadyExists), nil
	}
	if err := r.store.InsertComparison(ctx, c); err != nil {
		return Decision{}, fmt.Errorf("%w: insert comparison: %v", record.ErrStore, err)
	}
	return Decision{Action: ActionInsert}, nil
}

// AddUser inserts at most one user row per export folder.
func (r *Resolver) AddUser(ctx context.Context, u record.User) (Decision, error) {
	existing, err := r.store.FindUserByFolder(ctx, u.ExportFolder)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: find user: %v", record.ErrStore, err)
	}
	if existing != nil {
		return skip(ReasonAlreadyExists), nil
	}
	if err := r.store.InsertUser(ctx, u); err != nil {
		return Decision{}, fmt.Errorf("%w: insert user: %v", record.ErrStore, err)
	}
	return Decision{Action: ActionInsert}, nil
}

// AddTTLAuth dedups on (user, export folder).
func (r *Resolver) AddTTLAuth(ctx context.Context, a record.TTLAuth) (Decision, error) {
	existing, err := r.store.FindTTLAuth(ctx, a.UserID, a.ExportFolder)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: find ttl auth: %v", record.ErrStore, err)
	}
	if existing != nil {
		return skip(ReasonAlreadyExists), nil
	}
	if err := r.store.InsertTTLAuth(ctx, a); err != nil {
		return Decision{}, fmt.Errorf("%w: insert ttl auth: %v", record.ErrStore, err)
	}
	return Decision{Action: ActionInsert}, nil
}

// AddTTLBilling dedups on (user, export folder).
func (r *Resolver) AddTTLBilling(ctx context.Context, b record.TTLBilling) (Decision, error) {
	existing, err := r.store.FindTTLBilling(ctx, b.UserID, b.ExportFolder)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: find ttl billing: %v", record.ErrStore, err)
	}
	if existing != nil {
		return skip(ReasonAlreadyExists), nil
	}
	if err := r.store.InsertTTLBilling(ctx, b); err != nil {
		return Decision{}, fmt.Errorf("%w: insert ttl billing: %v", record.ErrStore, err)
	}
	return Decision{Action: ActionInsert}, nil
}

// AddTTLSession dedups on the session id, which is globally unique.
func (r *Resolver) AddTTLSession(ctx context.Context, s record.TTLSession) (Decision, error) {
	existing, err := r.store.FindTTLSession(ctx, s.SessionID)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: find ttl session: %v", record.ErrStore, err)
	}
	if existing != nil {
		return skip(ReasonAlreadyExists), nil
	}
	if err := r.store.InsertTTLSession(ctx, s); err != nil {
		return Decision{}, fmt.Errorf("%w: insert ttl session: %v", record.ErrStore, err)
	}
	return Decision{Action: ActionInsert}, nil
}

// CleanupResult reports an HTML-duplicate sweep.
type CleanupResult struct {
	Removed int `json:"removed"`
	Kept    int `json:"kept"`
}

// CleanupHTMLDuplicates deletes HTML-sourced messages from
// conversations that also hold JSON-sourced ones. That mixed state
// arises when a partial HTML scrape was imported first and the full
// JSON transcript arrived later; the JSON copy wins. HTML messages in
// conversations with no JSON transcript are kept. Running it twice is
// a no-op the second time.
func (r *Resolver) CleanupHTMLDuplicates(ctx context.Context) (CleanupResult, error) {
	msgs, err := r.store.AllMessages(ctx)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("%w: list messages: %v", record.ErrStore, err)
	}

	hasJSON := make(map[string]bool)
	for _, m := range msgs {
		if m.Source == record.SourceJSONExport {
			hasJSON[m.ConversationID] = true
		}
	}

	var res CleanupResult
	for _, m := range msgs {
		if m.Source != record.SourceHTMLExport {
			continue
		}
		if !hasJSON[m.ConversationID] {
			res.Kept++
			continue
		}
		if err := r.store.DeleteMessage(ctx, m.ConversationID, m.MessageID, record.SourceHTMLExport); err != nil {
			return CleanupResult{}, fmt.Errorf("%w: delete message: %v", record.ErrStore, err)
		}
		res.Removed++
	}
	return res, nil
}
