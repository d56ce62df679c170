package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/chatvault/chatvault/internal/record"
)

// Memory is an in-process Store used by the pipeline tests and by dry
// runs against a scratch database. It mirrors the Postgres semantics,
// including stable ordering, so paginated reads are deterministic.
type Memory struct {
	mu sync.RWMutex

	conversations map[string]record.Conversation
	convOrder     []string
	messages      map[string]record.Message // keyed by message_id
	msgOrder      []string
	feedback      []record.Feedback
	comparisons   []record.ModelComparison
	users         []record.User
	ttlAuth       []record.TTLAuth
	ttlBilling    []record.TTLBilling
	ttlSessions   map[string]record.TTLSession
	sessOrder     []string
	importLogs    map[string]ImportLog
	logOrder      []string
}

// NewMemory initializes an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]record.Conversation),
		messages:      make(map[string]record.Message),
		ttlSessions:   make(map[string]record.TTLSession),
		importLogs:    make(map[string]ImportLog),
	}
}

func (m *Memory) FindConversation(_ context.Context, id string) (*record.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.conversations[id]; ok {
		return &c, nil
	}
	return nil, nil
}

func (m *Memory) InsertConversation(_ context.Context, c record.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.conversations[c.ConversationID]; !exists {
		m.convOrder = append(m.convOrder, c.ConversationID)
	}
	m.conversations[c.ConversationID] = c
	return nil
}

func (m *Memory) UpdateConversation(_ context.Context, c record.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.conversations[c.ConversationID]
	if !ok {
		return nil
	}
	if c.Title != "" {
		cur.Title = c.Title
	}
	if c.UpdateTime > cur.UpdateTime {
		cur.UpdateTime = c.UpdateTime
	}
	if c.CurrentNode != "" {
		cur.CurrentNode = c.CurrentNode
	}
	cur.IsArchived = c.IsArchived
	cur.IsStarred = c.IsStarred
	m.conversations[c.ConversationID] = cur
	return nil
}

func (m *Memory) ListConversations(_ context.Context, f ConversationFilter, p PageRequest) ([]record.Conversation, PageInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []record.Conversation
	for _, id := range m.convOrder {
		c, ok := m.conversations[id]
		if !ok {
			continue
		}
		if c.IsHidden && !f.IncludeHidden {
			continue
		}
		if f.Search != "" && !m.matchesSearch(c, f) {
			continue
		}
		matched = append(matched, c)
	}

	if f.SortOrder == "oldest" {
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].CreateTime != matched[j].CreateTime {
				return matched[i].CreateTime < matched[j].CreateTime
			}
			return matched[i].ConversationID < matched[j].ConversationID
		})
	} else {
		sort.SliceStable(matched, func(i, j int) bool {
			if matched[i].UpdateTime != matched[j].UpdateTime {
				return matched[i].UpdateTime > matched[j].UpdateTime
			}
			return matched[i].ConversationID < matched[j].ConversationID
		})
	}

	offset, limit, info := Paginate(len(matched), p)
	return slicePage(matched, offset, limit), info, nil
}

// matchesSearch is called with the read lock held. Matching is
// case-insensitive to mirror the ILIKE queries on the Postgres side.
func (m *Memory) matchesSearch(c record.Conversation, f ConversationFilter) bool {
	search := strings.ToLower(f.Search)
	if strings.Contains(strings.ToLower(c.Title), search) {
		return true
	}
	if !f.SearchInMessages {
		return false
	}
	for _, id := range m.msgOrder {
		msg := m.messages[id]
		if msg.ConversationID == c.ConversationID && strings.Contains(strings.ToLower(msg.Content), search) {
			return true
		}
	}
	return false
}

func (m *Memory) SetConversationHidden(_ context.Context, id string, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conversations[id]; ok {
		c.IsHidden = hidden
		m.conversations[id] = c
	}
	return nil
}

func (m *Memory) DeleteConversationCascade(_ context.Context, id string) (CascadeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res CascadeResult
	delete(m.conversations, id)
	m.convOrder = removeString(m.convOrder, id)

	var keptMsgs []string
	for _, mid := range m.msgOrder {
		if m.messages[mid].ConversationID == id {
			delete(m.messages, mid)
			res.Messages++
			continue
		}
		keptMsgs = append(keptMsgs, mid)
	}
	m.msgOrder = keptMsgs

	var keptFb []record.Feedback
	for _, fb := range m.feedback {
		if fb.ConversationID == id {
			res.Feedback++
			continue
		}
		keptFb = append(keptFb, fb)
	}
	m.feedback = keptFb

	var keptCmp []record.ModelComparison
	for _, cmp := range m.comparisons {
		if cmp.ConversationID == id {
			res.Comparisons++
			continue
		}
		keptCmp = append(keptCmp, cmp)
	}
	m.comparisons = keptCmp

	return res, nil
}

func (m *Memory) FindMessage(_ context.Context, messageID string) (*record.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if msg, ok := m.messages[messageID]; ok {
		return &msg, nil
	}
	return nil, nil
}

func (m *Memory) InsertMessage(_ context.Context, msg record.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.messages[msg.MessageID]; !exists {
		m.msgOrder = append(m.msgOrder, msg.MessageID)
	}
	m.messages[msg.MessageID] = msg
	return nil
}

func (m *Memory) ListMessages(_ context.Context, conversationID string) ([]record.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []record.Message
	for _, id := range m.msgOrder {
		if msg := m.messages[id]; msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreateTime != out[j].CreateTime {
			return out[i].CreateTime < out[j].CreateTime
		}
		return out[i].MessageID < out[j].MessageID
	})
	return out, nil
}

func (m *Memory) CountMessagesBySource(_ context.Context, conversationID string, src record.Source) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.Source == src {
			n++
		}
	}
	return n, nil
}

func (m *Memory) DeleteMessage(_ context.Context, conversationID, messageID string, src record.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[messageID]
	if !ok || msg.ConversationID != conversationID || msg.Source != src {
		return nil
	}
	delete(m.messages, messageID)
	m.msgOrder = removeString(m.msgOrder, messageID)
	return nil
}

func (m *Memory) SearchMessages(_ context.Context, query string, p PageRequest) ([]record.Message, PageInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []record.Message
	query = strings.ToLower(query)
	for _, id := range m.msgOrder {
		msg := m.messages[id]
		if msg.IsHidden {
			continue
		}
		if strings.Contains(strings.ToLower(msg.Content), query) {
			matched = append(matched, msg)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreateTime != matched[j].CreateTime {
			return matched[i].CreateTime > matched[j].CreateTime
		}
		return matched[i].MessageID < matched[j].MessageID
	})
	offset, limit, info := Paginate(len(matched), p)
	return slicePage(matched, offset, limit), info, nil
}

func (m *Memory) SetMessageHidden(_ context.Context, messageID string, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[messageID]; ok {
		msg.IsHidden = hidden
		m.messages[messageID] = msg
	}
	return nil
}

func (m *Memory) FindFeedback(_ context.Context, feedbackID string) (*record.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, fb := range m.feedback {
		if fb.FeedbackID != "" && fb.FeedbackID == feedbackID {
			out := fb
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) FindFeedbackByNaturalKey(_ context.Context, messageID, rating, content string) (*record.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, fb := range m.feedback {
		if fb.MessageID == messageID && fb.Rating == rating && fb.Content == content {
			out := fb
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) InsertFeedback(_ context.Context, f record.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = append(m.feedback, f)
	return nil
}

func (m *Memory) ListFeedback(_ context.Context, conversationID string) ([]record.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []record.Feedback
	for _, fb := range m.feedback {
		if fb.ConversationID == conversationID {
			out = append(out, fb)
		}
	}
	return out, nil
}

func (m *Memory) HasComparison(_ context.Context, conversationID, payloadHash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.comparisons {
		if c.ConversationID == conversationID && c.PayloadHash == payloadHash {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) InsertComparison(_ context.Context, c record.ModelComparison) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comparisons = append(m.comparisons, c)
	return nil
}

func (m *Memory) ListComparisons(_ context.Context, conversationID string) ([]record.ModelComparison, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []record.ModelComparison
	for _, c := range m.comparisons {
		if c.ConversationID == conversationID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) FindUserByFolder(_ context.Context, exportFolder string) (*record.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.ExportFolder == exportFolder {
			out := u
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) InsertUser(_ context.Context, u record.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, u)
	return nil
}

func (m *Memory) FindTTLAuth(_ context.Context, userID, exportFolder string) (*record.TTLAuth, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.ttlAuth {
		if a.UserID == userID && a.ExportFolder == exportFolder {
			out := a
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) InsertTTLAuth(_ context.Context, a record.TTLAuth) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttlAuth = append(m.ttlAuth, a)
	return nil
}

func (m *Memory) ListTTLAuth(_ context.Context, p PageRequest) ([]record.TTLAuth, PageInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	offset, limit, info := Paginate(len(m.ttlAuth), p)
	return slicePage(m.ttlAuth, offset, limit), info, nil
}

func (m *Memory) FindTTLBilling(_ context.Context, userID, exportFolder string) (*record.TTLBilling, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.ttlBilling {
		if b.UserID == userID && b.ExportFolder == exportFolder {
			out := b
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Memory) InsertTTLBilling(_ context.Context, b record.TTLBilling) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttlBilling = append(m.ttlBilling, b)
	return nil
}

func (m *Memory) FindTTLSession(_ context.Context, sessionID string) (*record.TTLSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.ttlSessions[sessionID]; ok {
		return &s, nil
	}
	return nil, nil
}

func (m *Memory) InsertTTLSession(_ context.Context, s record.TTLSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.ttlSessions[s.SessionID]; !exists {
		m.sessOrder = append(m.sessOrder, s.SessionID)
	}
	m.ttlSessions[s.SessionID] = s
	return nil
}

func (m *Memory) ListTTLSessions(_ context.Context, p PageRequest) ([]record.TTLSession, PageInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]record.TTLSession, 0, len(m.sessOrder))
	for _, id := range m.sessOrder {
		out = append(out, m.ttlSessions[id])
	}
	offset, limit, info := Paginate(len(out), p)
	return slicePage(out, offset, limit), info, nil
}

func (m *Memory) FindImportLog(_ context.Context, exportFolder string) (*ImportLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.importLogs[exportFolder]; ok {
		return &l, nil
	}
	return nil, nil
}

func (m *Memory) UpsertImportLog(_ context.Context, l ImportLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.importLogs[l.ExportFolder]; !exists {
		m.logOrder = append(m.logOrder, l.ExportFolder)
	}
	m.importLogs[l.ExportFolder] = l
	return nil
}

func (m *Memory) ListImportLogs(_ context.Context) ([]ImportLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ImportLog, 0, len(m.logOrder))
	for _, f := range m.logOrder {
		out = append(out, m.importLogs[f])
	}
	return out, nil
}

func (m *Memory) AllConversations(_ context.Context) ([]record.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]record.Conversation, 0, len(m.convOrder))
	for _, id := range m.convOrder {
		if c, ok := m.conversations[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *Memory) AllMessages(_ context.Context) ([]record.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]record.Message, 0, len(m.msgOrder))
	for _, id := range m.msgOrder {
		if msg, ok := m.messages[id]; ok {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *Memory) AllFeedback(_ context.Context) ([]record.Feedback, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]record.Feedback, len(m.feedback))
	copy(out, m.feedback)
	return out, nil
}

func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Conversations: len(m.conversations),
		Messages:      len(m.messages),
		Feedback:      len(m.feedback),
		Comparisons:   len(m.comparisons),
		TTLAuth:       len(m.ttlAuth),
		TTLSessions:   len(m.ttlSessions),
	}, nil
}

func removeString(s []string, v string) []string {
	filtered := s[:0]
	for _, item := range s {
		if item != v {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

func slicePage[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}
