package store

import (
	"context"
	"errors"
	"time"

	"meetai/pkg/domain"
)

// ErrMissingReference is returned when a write points at a row that does not exist.
var ErrMissingReference = errors.New("referenced row does not exist")

// Store defines persistence for users, agents, meetings and meeting chats.
// Owner-scoped methods take the owner id and never return another user's rows.
type Store interface {
	// users
	SaveUser(ctx context.Context, u domain.User) error
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetUserIDBySession(ctx context.Context, token string, now time.Time) (string, bool, error)

	// agents
	CreateAgent(ctx context.Context, a domain.Agent) error
	GetAgent(ctx context.Context, id string) (domain.Agent, bool, error)
	GetOwnedAgent(ctx context.Context, ownerID, id string) (domain.Agent, bool, error)
	ListAgents(ctx context.Context, ownerID, search string, page domain.Page) ([]domain.Agent, int64, error)
	UpdateAgent(ctx context.Context, a domain.Agent) (bool, error)
	DeleteAgent(ctx context.Context, ownerID, id string) (bool, error)
	CountAgents(ctx context.Context, ownerID string) (int64, error)

	// meetings
	CreateMeeting(ctx context.Context, m domain.Meeting) error
	GetMeeting(ctx context.Context, id string) (domain.Meeting, bool, error)
	GetOwnedMeeting(ctx context.Context, ownerID, id string) (domain.Meeting, bool, error)
	ListMeetings(ctx context.Context, ownerID string, filter domain.MeetingFilter, page domain.Page) ([]domain.Meeting, int64, error)
	UpdateMeeting(ctx context.Context, m domain.Meeting) (bool, error)
	DeleteMeeting(ctx context.Context, ownerID, id string) (bool, error)
	// CountMeetings counts meetings created at or after since; a zero since counts all.
	CountMeetings(ctx context.Context, ownerID string, since time.Time) (int64, error)

	// lifecycle transitions; the bool reports whether a row changed
	StartMeeting(ctx context.Context, id string, at time.Time) (bool, error)
	EndMeeting(ctx context.Context, id string, at time.Time) (bool, error)
	CancelMeeting(ctx context.Context, ownerID, id string, at time.Time) (bool, error)
	CompleteMeeting(ctx context.Context, id, summary string) (bool, error)
	SetTranscriptURL(ctx context.Context, id, url string) (bool, error)
	SetRecordingURL(ctx context.Context, id, url string) (bool, error)

	// chats
	GetOrCreateChat(ctx context.Context, chat domain.MeetingChat) (domain.MeetingChat, error)
	GetChat(ctx context.Context, id string) (domain.MeetingChat, bool, error)
	GetChatByMeeting(ctx context.Context, meetingID string) (domain.MeetingChat, bool, error)
	// AppendUserMessage stores msg and bumps the chat counter only while the
	// counter is below limit (domain.Unlimited disables the guard).
	AppendUserMessage(ctx context.Context, msg domain.ChatMessage, limit int) (bool, error)
	AppendAgentMessage(ctx context.Context, msg domain.ChatMessage) error
	// ListChatMessages returns the newest limit messages in display order.
	ListChatMessages(ctx context.Context, chatID string, limit int) ([]domain.ChatMessage, error)

	// webhook audit
	RecordWebhookDelivery(ctx context.Context, d domain.WebhookDelivery) error
}
