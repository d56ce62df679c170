// Package timeline projects stored conversations, messages, and
// feedback into a globally ordered event stream. Events are derived on
// every read instead of persisted, so they can never drift out of sync
// with the rows they describe.
package timeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/chatvault/chatvault/internal/record"
	"github.com/chatvault/chatvault/internal/store"
)

const previewLen = 500

// Query filters and orders a timeline page. Start and End are epoch
// seconds, inclusive; zero means unbounded. SortOrder is "newest"
// (default) or "oldest".
type Query struct {
	EventType record.EventType
	Start     float64
	End       float64
	Search    string
	SortOrder string
	Page      int
	PerPage   int
}

// Projector derives timeline events from a store.
type Projector struct {
	store store.Store
}

func New(s store.Store) *Projector {
	return &Projector{store: s}
}

// Events returns one page of matching events plus page metadata.
func (p *Projector) Events(ctx context.Context, q Query) ([]record.TimelineEvent, store.PageInfo, error) {
	all, err := p.project(ctx)
	if err != nil {
		return nil, store.PageInfo{}, err
	}

	var matched []record.TimelineEvent
	for _, e := range all {
		if q.EventType != "" && e.EventType != q.EventType {
			continue
		}
		if q.Start != 0 && e.Timestamp < q.Start {
			continue
		}
		if q.End != 0 && e.Timestamp > q.End {
			continue
		}
		if q.Search != "" && !matchesSearch(e, q.Search) {
			continue
		}
		matched = append(matched, e)
	}

	oldest := q.SortOrder == "oldest"
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Timestamp != b.Timestamp {
			if oldest {
				return a.Timestamp < b.Timestamp
			}
			return a.Timestamp > b.Timestamp
		}
		// Stable tiebreak keeps pagination deterministic across calls.
		if a.ConversationID != b.ConversationID {
			return a.ConversationID < b.ConversationID
		}
		return a.MessageID < b.MessageID
	})

	offset, limit, info := store.Paginate(len(matched), store.PageRequest{Page: q.Page, PerPage: q.PerPage})
	if offset >= len(matched) {
		return nil, info, nil
	}
	if offset+limit > len(matched) {
		limit = len(matched) - offset
	}
	return matched[offset : offset+limit], info, nil
}

// Counts tallies all events by type, ignoring filters.
func (p *Projector) Counts(ctx context.Context) (map[record.EventType]int, error) {
	all, err := p.project(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[record.EventType]int)
	for _, e := range all {
		counts[e.EventType]++
	}
	return counts, nil
}

// project derives the full event set. Hidden conversations contribute
// nothing at all; hidden messages are dropped individually. Rows with
// no usable timestamp are dropped since they cannot be ordered.
func (p *Projector) project(ctx context.Context) ([]record.TimelineEvent, error) {
	convs, err := p.store.AllConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %v", record.ErrStore, err)
	}
	msgs, err := p.store.AllMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", record.ErrStore, err)
	}
	fbs, err := p.store.AllFeedback(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list feedback: %v", record.ErrStore, err)
	}

	hidden := make(map[string]bool)
	var events []record.TimelineEvent
	for _, c := range convs {
		if c.IsHidden {
			hidden[c.ConversationID] = true
			continue
		}
		if c.CreateTime == 0 {
			continue
		}
		title := c.Title
		if title == "" {
			title = "Untitled"
		}
		events = append(events, record.TimelineEvent{
			Timestamp:      c.CreateTime,
			EventType:      record.EventConversationCreated,
			ConversationID: c.ConversationID,
			TitlePreview:   title,
			Metadata:       map[string]any{"folder": c.ExportFolder},
		})
	}

	for _, m := range msgs {
		if m.IsHidden || hidden[m.ConversationID] || m.CreateTime == 0 {
			continue
		}
		events = append(events, record.TimelineEvent{
			Timestamp:      m.CreateTime,
			EventType:      record.EventMessageSent,
			ConversationID: m.ConversationID,
			MessageID:      m.MessageID,
			ContentPreview: preview(m.Content),
			Metadata: map[string]any{
				"role":   m.Role,
				"author": m.Author,
				"model":  m.Model,
			},
		})
	}

	for _, f := range fbs {
		if hidden[f.ConversationID] || f.CreateTime == 0 {
			continue
		}
		rating := f.Rating
		if rating == "" {
			rating = "unknown"
		}
		events = append(events, record.TimelineEvent{
			Timestamp:      f.CreateTime,
			EventType:      record.EventFeedbackGiven,
			ConversationID: f.ConversationID,
			MessageID:      f.MessageID,
			ContentPreview: "Rating: " + rating,
			Metadata: map[string]any{
				"user_id": f.UserID,
				"rating":  f.Rating,
			},
		})
	}
	return events, nil
}

func matchesSearch(e record.TimelineEvent, search string) bool {
	search = strings.ToLower(search)
	return strings.Contains(strings.ToLower(e.TitlePreview), search) ||
		strings.Contains(strings.ToLower(e.ContentPreview), search)
}

func preview(content string) string {
	if len(content) > previewLen {
		return content[:previewLen]
	}
	return content
}
