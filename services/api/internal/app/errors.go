package app

import "meetai/pkg/apperr"

var (
	ErrAgentNotFound      = apperr.NotFound("agent not found")
	ErrMeetingNotFound    = apperr.NotFound("meeting not found")
	ErrRecordingMissing   = apperr.NotFound("recording not available")
	ErrTranscriptMissing  = apperr.NotFound("transcript not available")
	ErrMeetingNotFinished = apperr.BadRequest("chat is only available for completed meetings")
	ErrNotCancellable     = apperr.BadRequest("only upcoming meetings can be cancelled")
	ErrResourcesExpired   = apperr.Gone("meeting resources have expired")
)
