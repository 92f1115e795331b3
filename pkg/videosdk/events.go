package videosdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Webhook event type tags.
const (
	TypeSessionStarted         = "call.session_started"
	TypeSessionParticipantLeft = "call.session_participant_left"
	TypeSessionEnded           = "call.session_ended"
	TypeTranscriptionReady     = "call.transcription_ready"
	TypeRecordingReady         = "call.recording_ready"
)

var (
	ErrMalformedEvent = errors.New("malformed webhook payload")
	ErrMissingType    = errors.New("webhook payload has no type")
)

// Event is one decoded webhook delivery. Concrete types are the Call* structs
// and UnknownEvent.
type Event interface {
	EventType() string
}

// Call is the call object embedded in session events.
type Call struct {
	CID    string         `json:"cid"`
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Custom map[string]any `json:"custom"`
}

// MeetingID returns call.custom.meetingId, or "" when absent.
func (c Call) MeetingID() string {
	v, ok := c.Custom["meetingId"].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

type CallSessionStarted struct {
	CallCID   string    `json:"call_cid"`
	SessionID string    `json:"session_id"`
	Call      Call      `json:"call"`
	CreatedAt time.Time `json:"created_at"`
}

func (CallSessionStarted) EventType() string { return TypeSessionStarted }
func (e CallSessionStarted) MeetingID() string { return e.Call.MeetingID() }

type Participant struct {
	UserSessionID string `json:"user_session_id"`
	Role          string `json:"role"`
	User          struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
}

type CallSessionParticipantLeft struct {
	CallCID     string      `json:"call_cid"`
	SessionID   string      `json:"session_id"`
	Participant Participant `json:"participant"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (CallSessionParticipantLeft) EventType() string { return TypeSessionParticipantLeft }
func (e CallSessionParticipantLeft) MeetingID() string { return IDFromCID(e.CallCID) }

type CallSessionEnded struct {
	CallCID   string    `json:"call_cid"`
	SessionID string    `json:"session_id"`
	Call      Call      `json:"call"`
	CreatedAt time.Time `json:"created_at"`
}

func (CallSessionEnded) EventType() string { return TypeSessionEnded }
func (e CallSessionEnded) MeetingID() string { return e.Call.MeetingID() }

// Artifact describes a finished transcription or recording file.
type Artifact struct {
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type CallTranscriptionReady struct {
	CallCID       string    `json:"call_cid"`
	Transcription Artifact  `json:"call_transcription"`
	CreatedAt     time.Time `json:"created_at"`
}

func (CallTranscriptionReady) EventType() string { return TypeTranscriptionReady }
func (e CallTranscriptionReady) MeetingID() string { return IDFromCID(e.CallCID) }

type CallRecordingReady struct {
	CallCID   string    `json:"call_cid"`
	Recording Artifact  `json:"call_recording"`
	CreatedAt time.Time `json:"created_at"`
}

func (CallRecordingReady) EventType() string { return TypeRecordingReady }
func (e CallRecordingReady) MeetingID() string { return IDFromCID(e.CallCID) }

// UnknownEvent carries any event type the backend does not act on.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) EventType() string { return e.Type }

// IDFromCID extracts the id half of a "type:id" call cid.
func IDFromCID(cid string) string {
	_, id, ok := strings.Cut(cid, ":")
	if !ok {
		return ""
	}
	return strings.TrimSpace(id)
}

// ParseEvent decodes a webhook body into its concrete event.
func ParseEvent(body []byte) (Event, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(envelope.Type) == "" {
		return nil, ErrMissingType
	}
	switch envelope.Type {
	case TypeSessionStarted:
		return decodeEvent[CallSessionStarted](body)
	case TypeSessionParticipantLeft:
		return decodeEvent[CallSessionParticipantLeft](body)
	case TypeSessionEnded:
		return decodeEvent[CallSessionEnded](body)
	case TypeTranscriptionReady:
		return decodeEvent[CallTranscriptionReady](body)
	case TypeRecordingReady:
		return decodeEvent[CallRecordingReady](body)
	default:
		return UnknownEvent{Type: envelope.Type, Raw: append(json.RawMessage(nil), body...)}, nil
	}
}

func decodeEvent[T Event](body []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return ev, nil
}
