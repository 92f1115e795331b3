package domain

import "time"

type MeetingStatus string

const (
	MeetingUpcoming   MeetingStatus = "upcoming"
	MeetingActive     MeetingStatus = "active"
	MeetingCompleted  MeetingStatus = "completed"
	MeetingProcessing MeetingStatus = "processing"
	MeetingCancelled  MeetingStatus = "cancelled"
)

// Valid reports whether s is one of the known meeting statuses.
func (s MeetingStatus) Valid() bool {
	switch s {
	case MeetingUpcoming, MeetingActive, MeetingCompleted, MeetingProcessing, MeetingCancelled:
		return true
	default:
		return false
	}
}

type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	Image         string    `json:"image,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type Agent struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Name         string    `json:"name"`
	Instructions string    `json:"instructions"`
	MeetingCount int64     `json:"meetingCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Meeting struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	UserID        string        `json:"userId"`
	AgentID       string        `json:"agentId"`
	Status        MeetingStatus `json:"status"`
	StartedAt     *time.Time    `json:"startedAt"`
	EndedAt       *time.Time    `json:"endedAt"`
	TranscriptURL string        `json:"transcriptUrl,omitempty"`
	RecordingURL  string        `json:"recordingUrl,omitempty"`
	Summary       string        `json:"summary,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Duration returns the elapsed call time when both timestamps are known.
func (m Meeting) Duration() (time.Duration, bool) {
	if m.StartedAt == nil || m.EndedAt == nil {
		return 0, false
	}
	d := m.EndedAt.Sub(*m.StartedAt)
	if d < 0 {
		return 0, false
	}
	return d, true
}

type MeetingChat struct {
	ID           string    `json:"id"`
	MeetingID    string    `json:"meetingId"`
	UserID       string    `json:"userId"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleAgent MessageRole = "agent"
)

type ChatMessage struct {
	ID        string      `json:"id"`
	ChatID    string      `json:"chatId"`
	Role      MessageRole `json:"role"`
	AgentID   string      `json:"agentId,omitempty"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}

// MeetingFilter narrows owner-scoped meeting listings.
type MeetingFilter struct {
	Search  string
	Status  MeetingStatus
	AgentID string
}

// Page is a 1-based page request.
type Page struct {
	Page     int
	PageSize int
}

// Offset returns the row offset for the page.
func (p Page) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

type WebhookDelivery struct {
	ID         string    `json:"id"`
	EventType  string    `json:"eventType"`
	MeetingID  string    `json:"meetingId,omitempty"`
	Payload    []byte    `json:"-"`
	Outcome    string    `json:"outcome"`
	ReceivedAt time.Time `json:"receivedAt"`
}
