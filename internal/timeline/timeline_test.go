package timeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/chatvault/chatvault/internal/record"
	"github.com/chatvault/chatvault/internal/store"
)

func seedStore(t *testing.T) *store.Memory {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	if err := mem.InsertConversation(ctx, record.Conversation{
		ConversationID: "conv-1", Title: "Alpha", CreateTime: 1000,
	}); err != nil {
		t.Fatal(err)
	}
	if err := mem.InsertMessage(ctx, record.Message{
		ConversationID: "conv-1", MessageID: "m1", Role: "user",
		Content: "first question", CreateTime: 1010,
	}); err != nil {
		t.Fatal(err)
	}
	if err := mem.InsertMessage(ctx, record.Message{
		ConversationID: "conv-1", MessageID: "m2", Role: "assistant",
		Content: "an answer", CreateTime: 1020,
	}); err != nil {
		t.Fatal(err)
	}
	if err := mem.InsertFeedback(ctx, record.Feedback{
		FeedbackID: "fb-1", ConversationID: "conv-1", MessageID: "m2",
		Rating: "thumbs_up", CreateTime: 1030,
	}); err != nil {
		t.Fatal(err)
	}
	return mem
}

func TestEvents_NewestOrder(t *testing.T) {
	ctx := context.Background()
	p := New(seedStore(t))

	events, info, err := p.Events(ctx, Query{})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if info.Total != 4 {
		t.Fatalf("total = %d, want 4", info.Total)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp > events[i-1].Timestamp {
			t.Fatalf("newest order violated at %d: %v after %v", i, events[i].Timestamp, events[i-1].Timestamp)
		}
	}
	if events[0].EventType != record.EventFeedbackGiven {
		t.Errorf("first event = %q", events[0].EventType)
	}
}

func TestEvents_OldestOrder(t *testing.T) {
	ctx := context.Background()
	p := New(seedStore(t))

	events, _, err := p.Events(ctx, Query{SortOrder: "oldest"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(events); i++ {
		if events[i].Timestamp < events[i-1].Timestamp {
			t.Fatalf("oldest order violated at %d", i)
		}
	}
	if events[0].EventType != record.EventConversationCreated {
		t.Errorf("first event = %q", events[0].EventType)
	}
}

func TestEvents_Filters(t *testing.T) {
	ctx := context.Background()
	p := New(seedStore(t))

	events, _, err := p.Events(ctx, Query{EventType: record.EventMessageSent})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("message events = %d, want 2", len(events))
	}

	// Inclusive time range.
	events, _, err = p.Events(ctx, Query{Start: 1010, End: 1020})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("ranged events = %d, want 2", len(events))
	}

	events, _, err = p.Events(ctx, Query{Search: "answer"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].MessageID != "m2" {
		t.Fatalf("search result = %+v", events)
	}
}

func TestEvents_HiddenExcluded(t *testing.T) {
	ctx := context.Background()
	mem := seedStore(t)
	p := New(mem)

	if err := mem.SetMessageHidden(ctx, "m1", true); err != nil {
		t.Fatal(err)
	}
	events, _, err := p.Events(ctx, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3 after hiding a message", len(events))
	}

	// Hiding the conversation removes all of its events.
	if err := mem.SetConversationHidden(ctx, "conv-1", true); err != nil {
		t.Fatal(err)
	}
	events, info, err := p.Events(ctx, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 || info.Total != 0 {
		t.Fatalf("events = %d, want 0 after hiding the conversation", len(events))
	}
}

func TestEvents_DeterministicPagination(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	for i := 0; i < 125; i++ {
		err := mem.InsertConversation(ctx, record.Conversation{
			ConversationID: fmt.Sprintf("conv-%03d", i),
			Title:          fmt.Sprintf("Conversation %d", i),
			CreateTime:     float64(1000 + i),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	p := New(mem)

	page1, info, err := p.Events(ctx, Query{Page: 1, PerPage: 20})
	if err != nil {
		t.Fatal(err)
	}
	if len(page1) != 20 || info.Pages != 7 || info.Total != 125 {
		t.Fatalf("page 1 = %d items, info = %+v", len(page1), info)
	}

	page7, _, err := p.Events(ctx, Query{Page: 7, PerPage: 20})
	if err != nil {
		t.Fatal(err)
	}
	if len(page7) != 5 {
		t.Fatalf("page 7 = %d items, want 5", len(page7))
	}

	// Identical queries return identical pages.
	again, _, err := p.Events(ctx, Query{Page: 1, PerPage: 20})
	if err != nil {
		t.Fatal(err)
	}
	for i := range page1 {
		if page1[i].ConversationID != again[i].ConversationID {
			t.Fatalf("pagination not deterministic at index %d", i)
		}
	}

	// Pages never overlap.
	seen := make(map[string]bool)
	for page := 1; page <= 7; page++ {
		events, _, err := p.Events(ctx, Query{Page: page, PerPage: 20})
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range events {
			if seen[e.ConversationID] {
				t.Fatalf("conversation %s appeared on two pages", e.ConversationID)
			}
			seen[e.ConversationID] = true
		}
	}
	if len(seen) != 125 {
		t.Fatalf("covered %d conversations, want 125", len(seen))
	}
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	p := New(seedStore(t))

	counts, err := p.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := map[record.EventType]int{
		record.EventConversationCreated: 1,
		record.EventMessageSent:         2,
		record.EventFeedbackGiven:       1,
	}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("counts[%s] = %d, want %d", k, counts[k], v)
		}
	}
}
