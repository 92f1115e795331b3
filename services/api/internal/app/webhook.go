package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"meetai/internal/util"
	"meetai/pkg/apperr"
	"meetai/pkg/domain"
	"meetai/pkg/events"
	"meetai/pkg/queue"
	"meetai/pkg/videosdk"
)

// Webhook outcomes recorded per delivery.
const (
	OutcomeHandled        = "handled"
	OutcomeAlreadyHandled = "already_handled"
	OutcomeIgnored        = "ignored"
)

// WebhookResult describes how one delivery was handled.
type WebhookResult struct {
	Event     string `json:"event"`
	MeetingID string `json:"meetingId,omitempty"`
	Outcome   string `json:"outcome"`
}

// HandleWebhook verifies, decodes and applies one video provider delivery.
// Deliveries are not deduplicated; only the start transition is guarded.
func (a *App) HandleWebhook(ctx context.Context, body []byte, signature, apiKey string) (WebhookResult, error) {
	logger := util.LoggerFromContext(ctx).With("component", "webhook")
	if err := a.video.VerifyWebhook(body, signature, apiKey); err != nil {
		a.metrics.WebhookEvent("unverified", "unauthorized")
		logger.Warn("webhook rejected", "err", err)
		if errors.Is(err, videosdk.ErrMissingSignature) {
			return WebhookResult{}, apperr.Unauthorized("missing signature or api key")
		}
		return WebhookResult{}, apperr.Unauthorized("invalid signature")
	}

	ev, err := videosdk.ParseEvent(body)
	if err != nil {
		a.metrics.WebhookEvent("malformed", "bad_request")
		if errors.Is(err, videosdk.ErrMissingType) {
			return WebhookResult{}, apperr.BadRequest("missing event type")
		}
		return WebhookResult{}, apperr.Wrap(apperr.CodeBadRequest, "invalid JSON", err)
	}

	res, err := a.dispatch(ctx, logger, ev)
	res.Event = ev.EventType()
	outcome := res.Outcome
	if err != nil {
		outcome = strings.ToLower(string(apperr.CodeOf(err)))
		logger.Warn("webhook failed", "event", res.Event, "meeting_id", res.MeetingID, "err", err)
	} else {
		logger.Info("webhook applied", "event", res.Event, "meeting_id", res.MeetingID, "outcome", outcome)
	}
	a.metrics.WebhookEvent(res.Event, outcome)
	a.recordDelivery(ctx, logger, res, body, outcome)
	return res, err
}

func (a *App) recordDelivery(ctx context.Context, logger *slog.Logger, res WebhookResult, body []byte, outcome string) {
	err := a.store.RecordWebhookDelivery(ctx, domain.WebhookDelivery{
		ID:         util.NewID(),
		EventType:  res.Event,
		MeetingID:  res.MeetingID,
		Payload:    body,
		Outcome:    outcome,
		ReceivedAt: a.clock(),
	})
	if err != nil {
		logger.Warn("record webhook delivery failed", "event", res.Event, "err", err)
	}
}

func (a *App) dispatch(ctx context.Context, logger *slog.Logger, ev videosdk.Event) (WebhookResult, error) {
	switch e := ev.(type) {
	case videosdk.CallSessionStarted:
		return a.onSessionStarted(ctx, e.MeetingID())
	case videosdk.CallSessionParticipantLeft:
		return a.onParticipantLeft(ctx, e.MeetingID())
	case videosdk.CallSessionEnded:
		return a.onSessionEnded(ctx, e.MeetingID())
	case videosdk.CallTranscriptionReady:
		return a.onTranscriptionReady(ctx, e.MeetingID(), e.Transcription.URL)
	case videosdk.CallRecordingReady:
		return a.onRecordingReady(ctx, e.MeetingID(), e.Recording.URL)
	case videosdk.UnknownEvent:
		logger.Info("webhook event ignored", "event", e.Type)
		return WebhookResult{Outcome: OutcomeIgnored}, nil
	default:
		return WebhookResult{}, fmt.Errorf("unhandled event %T", ev)
	}
}

func requireMeetingID(id string) error {
	if id == "" {
		return apperr.BadRequest("missing meetingId")
	}
	return nil
}

func (a *App) onSessionStarted(ctx context.Context, meetingID string) (WebhookResult, error) {
	res := WebhookResult{MeetingID: meetingID}
	if err := requireMeetingID(meetingID); err != nil {
		return res, err
	}
	started, err := a.store.StartMeeting(ctx, meetingID, a.clock())
	if err != nil {
		return res, fmt.Errorf("start meeting: %w", err)
	}
	m, ok, err := a.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return res, err
	}
	if !ok {
		return res, ErrMeetingNotFound
	}
	if !started {
		res.Outcome = OutcomeAlreadyHandled
		return res, nil
	}
	if _, ok, err := a.store.GetAgent(ctx, m.AgentID); err != nil {
		return res, err
	} else if !ok {
		return res, ErrAgentNotFound
	}
	a.publish(ctx, events.MeetingStarted, m)
	res.Outcome = OutcomeHandled
	return res, nil
}

func (a *App) onParticipantLeft(ctx context.Context, meetingID string) (WebhookResult, error) {
	res := WebhookResult{MeetingID: meetingID}
	if err := requireMeetingID(meetingID); err != nil {
		return res, err
	}
	if err := a.video.EndCall(ctx, videosdk.DefaultCallType, meetingID); err != nil {
		return res, apperr.BadGateway("end call failed", err)
	}
	res.Outcome = OutcomeHandled
	return res, nil
}

func (a *App) onSessionEnded(ctx context.Context, meetingID string) (WebhookResult, error) {
	res := WebhookResult{MeetingID: meetingID}
	if err := requireMeetingID(meetingID); err != nil {
		return res, err
	}
	ok, err := a.store.EndMeeting(ctx, meetingID, a.clock())
	if err != nil {
		return res, fmt.Errorf("end meeting: %w", err)
	}
	if !ok {
		return res, ErrMeetingNotFound
	}
	if m, found, err := a.store.GetMeeting(ctx, meetingID); err == nil && found {
		a.publish(ctx, events.MeetingEnded, m)
	}
	res.Outcome = OutcomeHandled
	return res, nil
}

func (a *App) onTranscriptionReady(ctx context.Context, meetingID, url string) (WebhookResult, error) {
	res := WebhookResult{MeetingID: meetingID}
	if err := requireMeetingID(meetingID); err != nil {
		return res, err
	}
	if strings.TrimSpace(url) == "" {
		return res, apperr.BadRequest("missing transcription url")
	}
	ok, err := a.store.SetTranscriptURL(ctx, meetingID, url)
	if err != nil {
		return res, fmt.Errorf("set transcript url: %w", err)
	}
	if !ok {
		return res, ErrMeetingNotFound
	}
	if _, err := a.jobs.Enqueue(ctx, queue.KindSummarizeMeeting, meetingID); err != nil {
		return res, fmt.Errorf("enqueue summary: %w", err)
	}
	res.Outcome = OutcomeHandled
	return res, nil
}

func (a *App) onRecordingReady(ctx context.Context, meetingID, url string) (WebhookResult, error) {
	res := WebhookResult{MeetingID: meetingID}
	if err := requireMeetingID(meetingID); err != nil {
		return res, err
	}
	if strings.TrimSpace(url) == "" {
		return res, apperr.BadRequest("missing recording url")
	}
	ok, err := a.store.SetRecordingURL(ctx, meetingID, url)
	if err != nil {
		return res, fmt.Errorf("set recording url: %w", err)
	}
	if !ok {
		return res, ErrMeetingNotFound
	}
	res.Outcome = OutcomeHandled
	return res, nil
}
