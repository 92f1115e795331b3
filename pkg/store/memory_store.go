package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"meetai/pkg/domain"
)

// MemoryStore keeps everything in-process. It mirrors the cascade and
// conditional-update behavior of GormStore and is used by tests and local runs.
// By default user rows are not required to exist before agents or meetings
// reference them; RequireUsers turns on the user foreign keys.
type MemoryStore struct {
	mu           sync.RWMutex
	requireUsers bool
	users        map[string]domain.User
	sessions     map[string]memorySession // token -> session
	agents       map[string]domain.Agent
	meetings     map[string]domain.Meeting
	chats        map[string]domain.MeetingChat
	messages     map[string][]domain.ChatMessage // chat ID -> messages in insert order
	deliveries   []domain.WebhookDelivery
}

type memorySession struct {
	userID    string
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// RequireUsers makes agent and meeting inserts fail with ErrMissingReference
// when the owning user row is absent, as the Postgres schema does.
func RequireUsers() MemoryOption {
	return func(m *MemoryStore) { m.requireUsers = true }
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		users:    make(map[string]domain.User),
		sessions: make(map[string]memorySession),
		agents:   make(map[string]domain.Agent),
		meetings: make(map[string]domain.Meeting),
		chats:    make(map[string]domain.MeetingChat),
		messages: make(map[string][]domain.ChatMessage),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryStore) missingUserLocked(id string) bool {
	if !m.requireUsers {
		return false
	}
	_, ok := m.users[id]
	return !ok
}

// PutSession registers a session token, standing in for the auth provider.
func (m *MemoryStore) PutSession(token, userID string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = memorySession{userID: userID, expiresAt: expiresAt}
}

// WebhookDeliveries returns a copy of the recorded webhook audit rows.
func (m *MemoryStore) WebhookDeliveries() []domain.WebhookDelivery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.WebhookDelivery(nil), m.deliveries...)
}

func (m *MemoryStore) SaveUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserIDBySession(_ context.Context, token string, now time.Time) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[token]
	if !ok || !now.Before(sess.expiresAt) {
		return "", false, nil
	}
	return sess.userID, true, nil
}

func (m *MemoryStore) CreateAgent(_ context.Context, a domain.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.missingUserLocked(a.UserID) {
		return ErrMissingReference
	}
	a.MeetingCount = 0
	m.agents[a.ID] = a
	return nil
}

func (m *MemoryStore) GetAgent(_ context.Context, id string) (domain.Agent, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return domain.Agent{}, false, nil
	}
	return m.withCountLocked(a), true, nil
}

func (m *MemoryStore) GetOwnedAgent(_ context.Context, ownerID, id string) (domain.Agent, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok || a.UserID != ownerID {
		return domain.Agent{}, false, nil
	}
	return m.withCountLocked(a), true, nil
}

func (m *MemoryStore) withCountLocked(a domain.Agent) domain.Agent {
	var n int64
	for _, mt := range m.meetings {
		if mt.AgentID == a.ID {
			n++
		}
	}
	a.MeetingCount = n
	return a
}

func (m *MemoryStore) ListAgents(_ context.Context, ownerID, search string, page domain.Page) ([]domain.Agent, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(search))
	var matched []domain.Agent
	for _, a := range m.agents {
		if a.UserID != ownerID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(a.Name), needle) {
			continue
		}
		matched = append(matched, m.withCountLocked(a))
	}
	sort.Slice(matched, func(i, j int) bool {
		return newerFirst(matched[i].CreatedAt, matched[j].CreatedAt, matched[i].ID, matched[j].ID)
	})
	return paginate(matched, page), int64(len(matched)), nil
}

func (m *MemoryStore) UpdateAgent(_ context.Context, a domain.Agent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.agents[a.ID]
	if !ok || cur.UserID != a.UserID {
		return false, nil
	}
	cur.Name = a.Name
	cur.Instructions = a.Instructions
	cur.UpdatedAt = time.Now().UTC()
	m.agents[a.ID] = cur
	return true, nil
}

func (m *MemoryStore) DeleteAgent(_ context.Context, ownerID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok || a.UserID != ownerID {
		return false, nil
	}
	delete(m.agents, id)
	for mid, mt := range m.meetings {
		if mt.AgentID == id {
			m.deleteMeetingLocked(mid)
		}
	}
	return true, nil
}

func (m *MemoryStore) CountAgents(_ context.Context, ownerID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, a := range m.agents {
		if a.UserID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateMeeting(_ context.Context, mt domain.Meeting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[mt.AgentID]; !ok || m.missingUserLocked(mt.UserID) {
		return ErrMissingReference
	}
	if mt.Status == "" {
		mt.Status = domain.MeetingUpcoming
	}
	m.meetings[mt.ID] = mt
	return nil
}

func (m *MemoryStore) GetMeeting(_ context.Context, id string) (domain.Meeting, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.meetings[id]
	return mt, ok, nil
}

func (m *MemoryStore) GetOwnedMeeting(_ context.Context, ownerID, id string) (domain.Meeting, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.meetings[id]
	if !ok || mt.UserID != ownerID {
		return domain.Meeting{}, false, nil
	}
	return mt, true, nil
}

func (m *MemoryStore) ListMeetings(_ context.Context, ownerID string, filter domain.MeetingFilter, page domain.Page) ([]domain.Meeting, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(filter.Search))
	var matched []domain.Meeting
	for _, mt := range m.meetings {
		if mt.UserID != ownerID {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(mt.Name), needle) {
			continue
		}
		if filter.Status != "" && mt.Status != filter.Status {
			continue
		}
		if filter.AgentID != "" && mt.AgentID != filter.AgentID {
			continue
		}
		matched = append(matched, mt)
	}
	sort.Slice(matched, func(i, j int) bool {
		return newerFirst(matched[i].CreatedAt, matched[j].CreatedAt, matched[i].ID, matched[j].ID)
	})
	return paginate(matched, page), int64(len(matched)), nil
}

func (m *MemoryStore) UpdateMeeting(_ context.Context, mt domain.Meeting) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.meetings[mt.ID]
	if !ok || cur.UserID != mt.UserID {
		return false, nil
	}
	if _, ok := m.agents[mt.AgentID]; !ok {
		return false, ErrMissingReference
	}
	cur.Name = mt.Name
	cur.AgentID = mt.AgentID
	cur.UpdatedAt = time.Now().UTC()
	m.meetings[mt.ID] = cur
	return true, nil
}

func (m *MemoryStore) DeleteMeeting(_ context.Context, ownerID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.meetings[id]
	if !ok || mt.UserID != ownerID {
		return false, nil
	}
	m.deleteMeetingLocked(id)
	return true, nil
}

func (m *MemoryStore) deleteMeetingLocked(id string) {
	delete(m.meetings, id)
	for cid, c := range m.chats {
		if c.MeetingID == id {
			delete(m.chats, cid)
			delete(m.messages, cid)
		}
	}
}

func (m *MemoryStore) CountMeetings(_ context.Context, ownerID string, since time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, mt := range m.meetings {
		if mt.UserID != ownerID {
			continue
		}
		if !since.IsZero() && mt.CreatedAt.Before(since) {
			continue
		}
		n++
	}
	return n, nil
}

// mutateMeeting applies fn to the meeting when it exists and guard accepts it.
func (m *MemoryStore) mutateMeeting(id string, guard func(domain.Meeting) bool, fn func(*domain.Meeting)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt, ok := m.meetings[id]
	if !ok || (guard != nil && !guard(mt)) {
		return false
	}
	fn(&mt)
	mt.UpdatedAt = time.Now().UTC()
	m.meetings[id] = mt
	return true
}

func (m *MemoryStore) StartMeeting(_ context.Context, id string, at time.Time) (bool, error) {
	return m.mutateMeeting(id,
		func(mt domain.Meeting) bool { return mt.Status == domain.MeetingUpcoming },
		func(mt *domain.Meeting) {
			started := at.UTC()
			mt.Status = domain.MeetingActive
			mt.StartedAt = &started
		}), nil
}

func (m *MemoryStore) EndMeeting(_ context.Context, id string, at time.Time) (bool, error) {
	return m.mutateMeeting(id, nil, func(mt *domain.Meeting) {
		ended := at.UTC()
		mt.Status = domain.MeetingProcessing
		mt.EndedAt = &ended
	}), nil
}

func (m *MemoryStore) CancelMeeting(_ context.Context, ownerID, id string, at time.Time) (bool, error) {
	return m.mutateMeeting(id,
		func(mt domain.Meeting) bool { return mt.UserID == ownerID && mt.Status == domain.MeetingUpcoming },
		func(mt *domain.Meeting) {
			ended := at.UTC()
			mt.Status = domain.MeetingCancelled
			mt.EndedAt = &ended
		}), nil
}

func (m *MemoryStore) CompleteMeeting(_ context.Context, id, summary string) (bool, error) {
	return m.mutateMeeting(id, nil, func(mt *domain.Meeting) {
		mt.Status = domain.MeetingCompleted
		mt.Summary = summary
	}), nil
}

func (m *MemoryStore) SetTranscriptURL(_ context.Context, id, url string) (bool, error) {
	return m.mutateMeeting(id, nil, func(mt *domain.Meeting) { mt.TranscriptURL = url }), nil
}

func (m *MemoryStore) SetRecordingURL(_ context.Context, id, url string) (bool, error) {
	return m.mutateMeeting(id, nil, func(mt *domain.Meeting) { mt.RecordingURL = url }), nil
}

func (m *MemoryStore) GetOrCreateChat(_ context.Context, chat domain.MeetingChat) (domain.MeetingChat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chats {
		if c.MeetingID == chat.MeetingID {
			return c, nil
		}
	}
	if _, ok := m.meetings[chat.MeetingID]; !ok {
		return domain.MeetingChat{}, ErrMissingReference
	}
	m.chats[chat.ID] = chat
	return chat, nil
}

func (m *MemoryStore) GetChat(_ context.Context, id string) (domain.MeetingChat, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[id]
	return c, ok, nil
}

func (m *MemoryStore) GetChatByMeeting(_ context.Context, meetingID string) (domain.MeetingChat, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.chats {
		if c.MeetingID == meetingID {
			return c, true, nil
		}
	}
	return domain.MeetingChat{}, false, nil
}

func (m *MemoryStore) AppendUserMessage(_ context.Context, msg domain.ChatMessage, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[msg.ChatID]
	if !ok {
		return false, nil
	}
	if limit != domain.Unlimited && c.MessageCount >= limit {
		return false, nil
	}
	c.MessageCount++
	c.UpdatedAt = time.Now().UTC()
	m.chats[c.ID] = c
	msg.Role = domain.RoleUser
	msg.AgentID = ""
	m.messages[c.ID] = append(m.messages[c.ID], msg)
	return true, nil
}

func (m *MemoryStore) AppendAgentMessage(_ context.Context, msg domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[msg.ChatID]; !ok {
		return ErrMissingReference
	}
	msg.Role = domain.RoleAgent
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
	return nil
}

func (m *MemoryStore) ListChatMessages(_ context.Context, chatID string, limit int) ([]domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := append([]domain.ChatMessage(nil), m.messages[chatID]...)
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].Role == domain.RoleUser && msgs[j].Role == domain.RoleAgent
	})
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (m *MemoryStore) RecordWebhookDelivery(_ context.Context, d domain.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, d)
	return nil
}

func newerFirst(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID > bID
}

func paginate[T any](items []T, page domain.Page) []T {
	if page.PageSize <= 0 {
		return items
	}
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
