package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meetai/pkg/apperr"
	"meetai/pkg/domain"
	"meetai/pkg/retention"
	"meetai/pkg/storage"
)

func (f *fixture) withArtifacts(t *testing.T, m domain.Meeting, baseURL string) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.store.SetRecordingURL(ctx, m.ID, baseURL+"/recording.mp4"); err != nil {
		t.Fatalf("set recording: %v", err)
	}
	if _, err := f.store.SetTranscriptURL(ctx, m.ID, baseURL+"/transcript.jsonl"); err != nil {
		t.Fatalf("set transcript: %v", err)
	}
}

func newArtifactServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/recording.mp4":
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = w.Write([]byte("VIDEO"))
		case "/transcript.jsonl":
			_, _ = w.Write([]byte(`{"speaker_id":"u1","text":"hello"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func readAll(t *testing.T, d Download) string {
	t.Helper()
	defer d.Body.Close()
	b, err := io.ReadAll(d.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(b)
}

func TestOpenDownloadStreamsRecording(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	a := f.agent(t, "u1")
	m := f.meeting(t, "u1", a.ID, domain.MeetingCompleted)
	f.withArtifacts(t, m, newArtifactServer(t).URL)

	d, err := f.app.OpenDownload(context.Background(), "u1", m.ID, ArtifactRecording)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if body := readAll(t, d); body != "VIDEO" {
		t.Fatalf("body = %q", body)
	}
	if d.ContentType != "video/mp4" || d.Filename != "weekly-sync-2026-06-15-recording.mp4" {
		t.Fatalf("unexpected download: %+v", d)
	}
}

func TestOpenDownloadPrefersArchivedTranscript(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	a := f.agent(t, "u1")
	m := f.meeting(t, "u1", a.ID, domain.MeetingCompleted)
	f.withArtifacts(t, m, newArtifactServer(t).URL)
	ctx := context.Background()

	d, err := f.app.OpenDownload(ctx, "u1", m.ID, ArtifactTranscript)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if body := readAll(t, d); !strings.Contains(body, "hello") || d.ContentType == "" {
		t.Fatalf("upstream transcript = %q (%s)", body, d.ContentType)
	}

	archived := `{"speaker_id":"u1","text":"archived"}`
	_ = f.objects.Put(ctx, storage.TranscriptKey(m.ID), strings.NewReader(archived), int64(len(archived)), "application/x-ndjson")
	d, err = f.app.OpenDownload(ctx, "u1", m.ID, ArtifactTranscript)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if body := readAll(t, d); body != archived || d.ContentLength != int64(len(archived)) {
		t.Fatalf("archived transcript = %q", body)
	}
	if !strings.HasSuffix(d.Filename, "-transcript.jsonl") {
		t.Fatalf("filename = %q", d.Filename)
	}
}

func TestOpenDownloadErrors(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	a := f.agent(t, "u1")
	m := f.meeting(t, "u1", a.ID, domain.MeetingCompleted)
	ctx := context.Background()

	_, err := f.app.OpenDownload(ctx, "u1", m.ID, ArtifactRecording)
	wantCode(t, err, apperr.CodeNotFound)
	_, err = f.app.OpenDownload(ctx, "u2", m.ID, ArtifactRecording)
	wantCode(t, err, apperr.CodeNotFound)
	_, err = f.app.OpenDownload(ctx, "u1", m.ID, Artifact("slides"))
	wantCode(t, err, apperr.CodeBadRequest)

	srv := newArtifactServer(t)
	if _, err := f.store.SetRecordingURL(ctx, m.ID, srv.URL+"/gone.mp4"); err != nil {
		t.Fatalf("set recording: %v", err)
	}
	_, err = f.app.OpenDownload(ctx, "u1", m.ID, ArtifactRecording)
	wantCode(t, err, apperr.CodeBadGateway)
}

func TestOpenDownloadAfterRetentionIsGone(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	a := f.agent(t, "u1")
	m := f.meeting(t, "u1", a.ID, domain.MeetingCompleted)
	f.withArtifacts(t, m, newArtifactServer(t).URL)

	f.app.now = func() time.Time { return testNow.Add(15 * 24 * time.Hour) }
	f.app.retention = retention.New(0, f.app.now)
	_, err := f.app.OpenDownload(context.Background(), "u1", m.ID, ArtifactRecording)
	wantCode(t, err, apperr.CodeGone)
}

func TestDownloadFilename(t *testing.T) {
	created := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	started := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	cases := []struct {
		m    domain.Meeting
		want string
	}{
		{domain.Meeting{Name: "Q1 Planning: Roadmap!", CreatedAt: created}, "q1-planning-roadmap-2026-03-01-recording.mp4"},
		{domain.Meeting{Name: "Q1 Planning", CreatedAt: created, StartedAt: &started}, "q1-planning-2026-03-02-recording.mp4"},
		{domain.Meeting{Name: "日本語", CreatedAt: created}, "meeting-2026-03-01-recording.mp4"},
	}
	for _, tc := range cases {
		if got := DownloadFilename(tc.m, "recording", "mp4"); got != tc.want {
			t.Errorf("DownloadFilename(%q) = %q, want %q", tc.m.Name, got, tc.want)
		}
	}
}

func TestArtifactClientHasNoBodyDeadline(t *testing.T) {
	f := newFixture(t, domain.TierFree)
	if f.app.httpClient.Timeout != 0 {
		t.Fatalf("artifact client must not bound the whole transfer, got %v", f.app.httpClient.Timeout)
	}
	transport, ok := f.app.httpClient.Transport.(*http.Transport)
	if !ok || transport.ResponseHeaderTimeout != 30*time.Second {
		t.Fatalf("expected a header timeout on the transport, got %+v", f.app.httpClient.Transport)
	}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "video/webm")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"part1-", "part2-", "part3"} {
			_, _ = w.Write([]byte(chunk))
			flusher.Flush()
			time.Sleep(20 * time.Millisecond)
		}
	}))
	t.Cleanup(upstream.Close)

	a := f.agent(t, "u1")
	m := f.meeting(t, "u1", a.ID, domain.MeetingCompleted)
	if _, err := f.store.SetRecordingURL(context.Background(), m.ID, upstream.URL+"/rec"); err != nil {
		t.Fatalf("set recording: %v", err)
	}
	d, err := f.app.OpenDownload(context.Background(), "u1", m.ID, ArtifactRecording)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := readAll(t, d); got != "part1-part2-part3" {
		t.Fatalf("body = %q", got)
	}
}
