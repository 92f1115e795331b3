package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"

	"meetai/internal/util"
	"meetai/pkg/apperr"
	"meetai/pkg/domain"
	"meetai/pkg/storage"
)

// Artifact names a downloadable meeting file.
type Artifact string

const (
	ArtifactRecording  Artifact = "recording"
	ArtifactTranscript Artifact = "transcript"
)

// Download is an open artifact stream. Callers must close Body.
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Filename      string
}

// OpenDownload streams a recording or transcript of an owned meeting while
// its retention window is open. Transcripts come from the archive when one
// was made, otherwise from the provider URL.
func (a *App) OpenDownload(ctx context.Context, userID, meetingID string, kind Artifact) (Download, error) {
	m, err := a.ownedMeeting(ctx, userID, meetingID)
	if err != nil {
		return Download{}, err
	}
	var (
		url        string
		fallbackCT string
		extension  string
		missingErr error
	)
	switch kind {
	case ArtifactRecording:
		url, fallbackCT, extension, missingErr = m.RecordingURL, "video/mp4", "mp4", ErrRecordingMissing
	case ArtifactTranscript:
		url, fallbackCT, extension, missingErr = m.TranscriptURL, "application/x-ndjson", "jsonl", ErrTranscriptMissing
	default:
		return Download{}, apperr.BadRequest("unknown artifact")
	}
	if strings.TrimSpace(url) == "" {
		return Download{}, missingErr
	}
	if !a.retention.IsAvailable(m.EndedAt) {
		return Download{}, ErrResourcesExpired
	}
	filename := DownloadFilename(m, string(kind), extension)

	if kind == ArtifactTranscript && a.objects != nil {
		obj, err := a.objects.Get(ctx, storage.TranscriptKey(m.ID))
		switch {
		case err == nil:
			ct := obj.ContentType
			if ct == "" {
				ct = fallbackCT
			}
			return Download{Body: obj.Body, ContentType: ct, ContentLength: obj.Size, Filename: filename}, nil
		case !errors.Is(err, storage.ErrNotFound):
			util.LoggerFromContext(ctx).Warn("transcript archive read failed", "meeting_id", m.ID, "err", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Download{}, apperr.BadGateway("invalid artifact url", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Download{}, apperr.BadGateway(fmt.Sprintf("failed to fetch %s", kind), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return Download{}, apperr.BadGateway(fmt.Sprintf("failed to fetch %s", kind), fmt.Errorf("upstream status %d", resp.StatusCode))
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = fallbackCT
	}
	return Download{Body: resp.Body, ContentType: ct, ContentLength: resp.ContentLength, Filename: filename}, nil
}

// DownloadFilename builds "<slug>-<YYYY-MM-DD>-<kind>.<ext>" dated by the
// meeting start, or creation when it never started.
func DownloadFilename(m domain.Meeting, kind, ext string) string {
	date := m.CreatedAt
	if m.StartedAt != nil {
		date = *m.StartedAt
	}
	return fmt.Sprintf("%s-%s-%s.%s", slugify(m.Name), date.UTC().Format("2006-01-02"), kind, ext)
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimRight(b.String(), "-")
	if slug == "" {
		return "meeting"
	}
	return slug
}
