package app

import (
	"context"
	"fmt"
	"testing"

	"meetai/pkg/apperr"
	"meetai/pkg/domain"
	"meetai/pkg/events"
	"meetai/pkg/queue"
	"meetai/pkg/videosdk"
)

func (f *fixture) deliver(t *testing.T, body string) (WebhookResult, error) {
	t.Helper()
	b := []byte(body)
	return f.app.HandleWebhook(context.Background(), b, videosdk.Sign(b, "secret"), "key")
}

func sessionStarted(meetingID string) string {
	return fmt.Sprintf(`{"type":"call.session_started","call_cid":"default:%s","call":{"id":%q,"custom":{"meetingId":%q}}}`, meetingID, meetingID, meetingID)
}

func TestWebhookSessionStartedIsIdempotent(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	a := f.agent(t, "u1")
	m := f.meeting(t, "u1", a.ID, domain.MeetingUpcoming)

	res, err := f.deliver(t, sessionStarted(m.ID))
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if res.Outcome != OutcomeHandled || res.MeetingID != m.ID || res.Event != videosdk.TypeSessionStarted {
		t.Fatalf("unexpected result: %+v", res)
	}
	got, _, _ := f.store.GetMeeting(context.Background(), m.ID)
	if got.Status != domain.MeetingActive || got.StartedAt == nil || !got.StartedAt.Equal(testNow) {
		t.Fatalf("meeting not started: %+v", got)
	}

	res, err = f.deliver(t, sessionStarted(m.ID))
	if err != nil || res.Outcome != OutcomeAlreadyHandled {
		t.Fatalf("duplicate delivery = %+v, %v", res, err)
	}
	if types := f.events.Types(); len(types) != 1 || types[0] != events.MeetingStarted {
		t.Fatalf("started should publish once: %v", types)
	}
	deliveries := f.store.WebhookDeliveries()
	if len(deliveries) != 2 || deliveries[1].Outcome != OutcomeAlreadyHandled {
		t.Fatalf("unexpected deliveries: %+v", deliveries)
	}
}

func TestWebhookSessionStartedUnknownMeeting(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	_, err := f.deliver(t, sessionStarted("missing"))
	wantCode(t, err, apperr.CodeNotFound)

	_, err = f.deliver(t, `{"type":"call.session_started","call":{"custom":{}}}`)
	wantCode(t, err, apperr.CodeBadRequest)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	body := []byte(sessionStarted("m1"))

	_, err := f.app.HandleWebhook(context.Background(), body, "", "key")
	wantCode(t, err, apperr.CodeUnauthorized)
	_, err = f.app.HandleWebhook(context.Background(), body, videosdk.Sign(body, "wrong"), "key")
	wantCode(t, err, apperr.CodeUnauthorized)
	_, err = f.app.HandleWebhook(context.Background(), body, videosdk.Sign(body, "secret"), "other-key")
	wantCode(t, err, apperr.CodeUnauthorized)

	if n := len(f.store.WebhookDeliveries()); n != 0 {
		t.Fatalf("unverified deliveries must not be recorded, got %d", n)
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	_, err := f.deliver(t, `{not json`)
	wantCode(t, err, apperr.CodeBadRequest)
	_, err = f.deliver(t, `{"call_cid":"default:m1"}`)
	wantCode(t, err, apperr.CodeBadRequest)
}

func TestWebhookSessionEndedMovesToProcessing(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	a := f.agent(t, "u1")
	m := f.meeting(t, "u1", a.ID, domain.MeetingActive)

	body := fmt.Sprintf(`{"type":"call.session_ended","call":{"custom":{"meetingId":%q}}}`, m.ID)
	res, err := f.deliver(t, body)
	if err != nil || res.Outcome != OutcomeHandled {
		t.Fatalf("ended = %+v, %v", res, err)
	}
	got, _, _ := f.store.GetMeeting(context.Background(), m.ID)
	if got.Status != domain.MeetingProcessing || got.EndedAt == nil || !got.EndedAt.Equal(testNow) {
		t.Fatalf("unexpected meeting: %+v", got)
	}
	if types := f.events.Types(); len(types) != 1 || types[0] != events.MeetingEnded {
		t.Fatalf("events = %v", types)
	}

	_, err = f.deliver(t, `{"type":"call.session_ended","call":{"custom":{"meetingId":"missing"}}}`)
	wantCode(t, err, apperr.CodeNotFound)
}

func TestWebhookParticipantLeftEndsCall(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	res, err := f.deliver(t, `{"type":"call.session_participant_left","call_cid":"default:m1"}`)
	if err != nil || res.Outcome != OutcomeHandled {
		t.Fatalf("participant left = %+v, %v", res, err)
	}
	if paths := f.video.seen(); len(paths) != 1 || paths[0] != "/api/v2/video/call/default/m1/mark_ended" {
		t.Fatalf("unexpected video calls: %v", paths)
	}

	f.video.setFail(true)
	_, err = f.deliver(t, `{"type":"call.session_participant_left","call_cid":"default:m1"}`)
	wantCode(t, err, apperr.CodeBadGateway)
}

func TestWebhookTranscriptionReadyQueuesSummary(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	a := f.agent(t, "u1")
	m := f.meeting(t, "u1", a.ID, domain.MeetingProcessing)

	body := fmt.Sprintf(`{"type":"call.transcription_ready","call_cid":"default:%s","call_transcription":{"url":"https://cdn.example/t.jsonl"}}`, m.ID)
	if _, err := f.deliver(t, body); err != nil {
		t.Fatalf("transcription ready: %v", err)
	}
	got, _, _ := f.store.GetMeeting(context.Background(), m.ID)
	if got.TranscriptURL != "https://cdn.example/t.jsonl" {
		t.Fatalf("transcript url = %q", got.TranscriptURL)
	}
	if jobs := f.jobs.all(); len(jobs) != 1 || jobs[0] != (enqueued{queue.KindSummarizeMeeting, m.ID}) {
		t.Fatalf("jobs = %v", jobs)
	}

	_, err := f.deliver(t, fmt.Sprintf(`{"type":"call.transcription_ready","call_cid":"default:%s","call_transcription":{}}`, m.ID))
	wantCode(t, err, apperr.CodeBadRequest)
}

func TestWebhookRecordingReadyStoresURL(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	a := f.agent(t, "u1")
	m := f.meeting(t, "u1", a.ID, domain.MeetingProcessing)

	body := fmt.Sprintf(`{"type":"call.recording_ready","call_cid":"default:%s","call_recording":{"url":"https://cdn.example/r.mp4"}}`, m.ID)
	if _, err := f.deliver(t, body); err != nil {
		t.Fatalf("recording ready: %v", err)
	}
	got, _, _ := f.store.GetMeeting(context.Background(), m.ID)
	if got.RecordingURL != "https://cdn.example/r.mp4" {
		t.Fatalf("recording url = %q", got.RecordingURL)
	}
	if len(f.jobs.all()) != 0 {
		t.Fatalf("recordings do not queue work")
	}
}

func TestWebhookUnknownEventIgnored(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	res, err := f.deliver(t, `{"type":"call.member_added","call_cid":"default:m1"}`)
	if err != nil || res.Outcome != OutcomeIgnored || res.Event != "call.member_added" {
		t.Fatalf("unknown event = %+v, %v", res, err)
	}
	if d := f.store.WebhookDeliveries(); len(d) != 1 || d[0].Outcome != OutcomeIgnored {
		t.Fatalf("deliveries = %+v", d)
	}
}
