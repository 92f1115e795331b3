package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meetai/internal/util"
	"meetai/pkg/apperr"
	"meetai/pkg/domain"
	"meetai/pkg/events"
	"meetai/pkg/storage"
	"meetai/pkg/store"
	"meetai/pkg/videosdk"
)

const maxMeetingNameLen = 200

// MeetingInput is the body of a meeting create or update.
type MeetingInput struct {
	Name    string `json:"name"`
	AgentID string `json:"agentId"`
}

func (in MeetingInput) validate() (MeetingInput, error) {
	name, err := normalizeName(in.Name, maxMeetingNameLen)
	if err != nil {
		return in, apperr.BadRequest(err.Error())
	}
	agentID := strings.TrimSpace(in.AgentID)
	if agentID == "" {
		return in, apperr.BadRequest("agentId is required")
	}
	return MeetingInput{Name: name, AgentID: agentID}, nil
}

// MeetingView is a meeting decorated with its agent, duration and retention
// state.
type MeetingView struct {
	domain.Meeting
	Agent              *domain.Agent `json:"agent,omitempty"`
	Duration           *int64        `json:"duration"`
	ExpiresAt          *time.Time    `json:"expiresAt"`
	DaysUntilExpiry    int           `json:"daysUntilExpiry"`
	ResourcesAvailable bool          `json:"resourcesAvailable"`
}

func (a *App) view(m domain.Meeting, agent *domain.Agent) MeetingView {
	rs := a.retention.StatusOf(m.EndedAt)
	v := MeetingView{
		Meeting:            m,
		Agent:              agent,
		ExpiresAt:          rs.ExpiresAt,
		DaysUntilExpiry:    rs.DaysUntilExpiry,
		ResourcesAvailable: rs.Available,
	}
	if d, ok := m.Duration(); ok {
		secs := int64(d.Seconds())
		v.Duration = &secs
	}
	return v
}

func (a *App) ownedMeeting(ctx context.Context, userID, id string) (domain.Meeting, error) {
	m, ok, err := a.store.GetOwnedMeeting(ctx, userID, id)
	if err != nil {
		return domain.Meeting{}, err
	}
	if !ok {
		return domain.Meeting{}, ErrMeetingNotFound
	}
	return m, nil
}

// CreateMeeting stores an upcoming meeting and opens its video call.
func (a *App) CreateMeeting(ctx context.Context, userID string, in MeetingInput) (MeetingView, error) {
	in, err := in.validate()
	if err != nil {
		return MeetingView{}, err
	}
	agent, ok, err := a.store.GetOwnedAgent(ctx, userID, in.AgentID)
	if err != nil {
		return MeetingView{}, err
	}
	if !ok {
		return MeetingView{}, ErrAgentNotFound
	}
	usage, err := a.entitle.CheckMeetingLimit(ctx, userID)
	if err != nil {
		return MeetingView{}, fmt.Errorf("check meeting limit: %w", err)
	}
	if !usage.Allowed {
		a.denied(ctx, userID, "meetings", usage)
		return MeetingView{}, apperr.Forbidden(meetingLimitMessage)
	}

	now := a.clock()
	m := domain.Meeting{
		ID:        util.NewID(),
		Name:      in.Name,
		UserID:    userID,
		AgentID:   agent.ID,
		Status:    domain.MeetingUpcoming,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateMeeting(ctx, m); err != nil {
		if errors.Is(err, store.ErrMissingReference) {
			return MeetingView{}, ErrAgentNotFound
		}
		return MeetingView{}, fmt.Errorf("create meeting: %w", err)
	}

	if err := a.openCall(ctx, m, agent); err != nil {
		if _, delErr := a.store.DeleteMeeting(ctx, userID, m.ID); delErr != nil {
			util.LoggerFromContext(ctx).Error("rollback meeting failed", "meeting_id", m.ID, "err", delErr)
		}
		return MeetingView{}, apperr.BadGateway("video provider unavailable", err)
	}

	a.publish(ctx, events.MeetingCreated, m)
	return a.view(m, &agent), nil
}

func (a *App) openCall(ctx context.Context, m domain.Meeting, agent domain.Agent) error {
	if err := a.video.CreateCall(ctx, videosdk.CallSpec{
		MeetingID:   m.ID,
		MeetingName: m.Name,
		CreatedByID: m.UserID,
	}); err != nil {
		return fmt.Errorf("create call: %w", err)
	}
	if err := a.video.UpsertUsers(ctx, videosdk.User{ID: agent.ID, Name: agent.Name, Role: "user"}); err != nil {
		return fmt.Errorf("upsert agent user: %w", err)
	}
	return nil
}

// GetMeeting returns one owned meeting with its agent.
func (a *App) GetMeeting(ctx context.Context, userID, id string) (MeetingView, error) {
	m, err := a.ownedMeeting(ctx, userID, id)
	if err != nil {
		return MeetingView{}, err
	}
	return a.view(m, a.lookupAgent(ctx, m.AgentID)), nil
}

func (a *App) lookupAgent(ctx context.Context, id string) *domain.Agent {
	agent, ok, err := a.store.GetAgent(ctx, id)
	if err != nil || !ok {
		return nil
	}
	return &agent
}

// ListMeetings pages through the user's meetings, newest first.
func (a *App) ListMeetings(ctx context.Context, userID string, filter domain.MeetingFilter, page domain.Page) (Paged[MeetingView], error) {
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Status != "" && !filter.Status.Valid() {
		return Paged[MeetingView]{}, apperr.BadRequest("unknown meeting status")
	}
	items, total, err := a.store.ListMeetings(ctx, userID, filter, page)
	if err != nil {
		return Paged[MeetingView]{}, err
	}
	agents := make(map[string]*domain.Agent)
	views := make([]MeetingView, 0, len(items))
	for _, m := range items {
		agent, seen := agents[m.AgentID]
		if !seen {
			agent = a.lookupAgent(ctx, m.AgentID)
			agents[m.AgentID] = agent
		}
		views = append(views, a.view(m, agent))
	}
	return newPaged(views, total, page.PageSize), nil
}

// UpdateMeeting renames the meeting or moves it to another owned agent. It is
// allowed in any status.
func (a *App) UpdateMeeting(ctx context.Context, userID, id string, in MeetingInput) (MeetingView, error) {
	in, err := in.validate()
	if err != nil {
		return MeetingView{}, err
	}
	if _, ok, err := a.store.GetOwnedAgent(ctx, userID, in.AgentID); err != nil {
		return MeetingView{}, err
	} else if !ok {
		return MeetingView{}, ErrAgentNotFound
	}
	ok, err := a.store.UpdateMeeting(ctx, domain.Meeting{ID: id, UserID: userID, Name: in.Name, AgentID: in.AgentID})
	if err != nil {
		if errors.Is(err, store.ErrMissingReference) {
			return MeetingView{}, ErrAgentNotFound
		}
		return MeetingView{}, err
	}
	if !ok {
		return MeetingView{}, ErrMeetingNotFound
	}
	return a.GetMeeting(ctx, userID, id)
}

// DeleteMeeting removes the meeting in any status together with its chat and
// archived artifacts.
func (a *App) DeleteMeeting(ctx context.Context, userID, id string) error {
	ok, err := a.store.DeleteMeeting(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMeetingNotFound
	}
	if a.objects != nil {
		if err := a.objects.DeletePrefix(ctx, storage.MeetingPrefix(id)); err != nil {
			util.LoggerFromContext(ctx).Warn("archive cleanup failed", "meeting_id", id, "err", err)
		}
	}
	return nil
}

// CancelMeeting moves an upcoming meeting to cancelled.
func (a *App) CancelMeeting(ctx context.Context, userID, id string) (MeetingView, error) {
	ok, err := a.store.CancelMeeting(ctx, userID, id, a.clock())
	if err != nil {
		return MeetingView{}, err
	}
	if !ok {
		if _, err := a.ownedMeeting(ctx, userID, id); err != nil {
			return MeetingView{}, err
		}
		return MeetingView{}, ErrNotCancellable
	}
	m, err := a.ownedMeeting(ctx, userID, id)
	if err != nil {
		return MeetingView{}, err
	}
	a.publish(ctx, events.MeetingCancelled, m)
	return a.view(m, a.lookupAgent(ctx, m.AgentID)), nil
}

// CallToken is what the web client needs to join a meeting's call.
type CallToken struct {
	Token     string `json:"token"`
	APIKey    string `json:"apiKey"`
	UserID    string `json:"userId"`
	CallType  string `json:"callType"`
	CallID    string `json:"callId"`
	ExpiresIn int64  `json:"expiresIn"`
}

// GenerateToken registers the caller with the video provider and issues a
// short-lived user token for the meeting's call.
func (a *App) GenerateToken(ctx context.Context, user domain.User, meetingID string) (CallToken, error) {
	m, err := a.ownedMeeting(ctx, user.ID, meetingID)
	if err != nil {
		return CallToken{}, err
	}
	name := strings.TrimSpace(user.Name)
	if name == "" {
		name = user.Email
	}
	if err := a.video.UpsertUsers(ctx, videosdk.User{ID: user.ID, Name: name, Role: "admin", Image: user.Image}); err != nil {
		return CallToken{}, apperr.BadGateway("video provider unavailable", err)
	}
	token, err := a.video.UserToken(user.ID, a.tokenTTL)
	if err != nil {
		return CallToken{}, fmt.Errorf("sign user token: %w", err)
	}
	return CallToken{
		Token:     token,
		APIKey:    a.video.APIKey(),
		UserID:    user.ID,
		CallType:  videosdk.DefaultCallType,
		CallID:    m.ID,
		ExpiresIn: int64(a.tokenTTL.Seconds()),
	}, nil
}

// MeetingExists reports whether a meeting id exists, without ownership.
func (a *App) MeetingExists(ctx context.Context, id string) (bool, error) {
	_, ok, err := a.store.GetMeeting(ctx, id)
	return ok, err
}

func (a *App) publish(ctx context.Context, eventType string, m domain.Meeting) {
	events.PublishBestEffort(ctx, a.events, util.LoggerFromContext(ctx), events.MeetingEvent{
		Type:      eventType,
		MeetingID: m.ID,
		UserID:    m.UserID,
		AgentID:   m.AgentID,
		Status:    string(m.Status),
		At:        a.clock(),
	})
}
