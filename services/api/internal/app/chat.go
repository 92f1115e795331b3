package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meetai/internal/util"
	"meetai/pkg/apperr"
	"meetai/pkg/domain"
	"meetai/pkg/queue"
	"meetai/pkg/store"
)

const (
	maxChatMessageLen = 4000
	chatLimitMessage  = "You have reached the message limit for this chat on your plan"
)

// ChatView is a meeting chat plus the caller's quota within it.
type ChatView struct {
	domain.MeetingChat
	Usage domain.Usage `json:"usage"`
}

// completedMeeting loads an owned meeting and requires it to be completed.
func (a *App) completedMeeting(ctx context.Context, userID, meetingID string) (domain.Meeting, error) {
	m, err := a.ownedMeeting(ctx, userID, meetingID)
	if err != nil {
		return domain.Meeting{}, err
	}
	if m.Status != domain.MeetingCompleted {
		return domain.Meeting{}, ErrMeetingNotFinished
	}
	return m, nil
}

func (a *App) ensureChat(ctx context.Context, m domain.Meeting) (domain.MeetingChat, error) {
	now := a.clock()
	chat, err := a.store.GetOrCreateChat(ctx, domain.MeetingChat{
		ID:        util.NewID(),
		MeetingID: m.ID,
		UserID:    m.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, store.ErrMissingReference) {
			return domain.MeetingChat{}, ErrMeetingNotFound
		}
		return domain.MeetingChat{}, fmt.Errorf("get or create chat: %w", err)
	}
	return chat, nil
}

// GetOrCreateChat opens the chat about a completed meeting.
func (a *App) GetOrCreateChat(ctx context.Context, userID, meetingID string) (ChatView, error) {
	m, err := a.completedMeeting(ctx, userID, meetingID)
	if err != nil {
		return ChatView{}, err
	}
	chat, err := a.ensureChat(ctx, m)
	if err != nil {
		return ChatView{}, err
	}
	usage, err := a.entitle.CheckChatMessageLimit(ctx, userID, chat.ID)
	if err != nil {
		return ChatView{}, err
	}
	return ChatView{MeetingChat: chat, Usage: usage}, nil
}

// ListChatMessages returns every user and agent message of the meeting's
// chat in display order. A chat holds at most the tier's user-message quota
// plus one reply each, so the listing is not paged. A meeting without a chat
// yet has no messages.
func (a *App) ListChatMessages(ctx context.Context, userID, meetingID string) ([]domain.ChatMessage, error) {
	m, err := a.ownedMeeting(ctx, userID, meetingID)
	if err != nil {
		return nil, err
	}
	chat, ok, err := a.store.GetChatByMeeting(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.ChatMessage{}, nil
	}
	msgs, err := a.store.ListChatMessages(ctx, chat.ID, 0)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	return msgs, nil
}

// SendChatMessage reserves one message of the chat quota, stores the user
// message and queues the agent reply. It does not wait for the reply.
func (a *App) SendChatMessage(ctx context.Context, userID, meetingID, content string) (domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.ChatMessage{}, apperr.BadRequest("content is required")
	}
	if len([]rune(content)) > maxChatMessageLen {
		return domain.ChatMessage{}, apperr.BadRequest(fmt.Sprintf("content must be at most %d characters", maxChatMessageLen))
	}
	m, err := a.completedMeeting(ctx, userID, meetingID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	chat, err := a.ensureChat(ctx, m)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	info, err := a.entitle.ResolveTier(ctx, userID)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("resolve tier: %w", err)
	}

	msg := domain.ChatMessage{
		ID:        util.NewID(),
		ChatID:    chat.ID,
		Role:      domain.RoleUser,
		Content:   content,
		CreatedAt: a.clock(),
	}
	limit := info.Limits.ChatMessagesPerChat
	ok, err := a.store.AppendUserMessage(ctx, msg, limit)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("append message: %w", err)
	}
	if !ok {
		a.denied(ctx, userID, "chat_messages", domain.Usage{Current: limit, Limit: limit, Tier: info.Tier})
		return domain.ChatMessage{}, apperr.Forbidden(chatLimitMessage)
	}

	if _, err := a.jobs.Enqueue(ctx, queue.KindChatReply, chat.ID); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("enqueue chat reply: %w", err)
	}
	return msg, nil
}
