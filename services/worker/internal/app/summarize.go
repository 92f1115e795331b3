package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"meetai/internal/util"
	"meetai/pkg/ai"
	"meetai/pkg/domain"
	"meetai/pkg/events"
	"meetai/pkg/storage"
	"meetai/pkg/videosdk"
)

const summarizerPrompt = `You are an expert summarizer. You write readable, concise, simple content.
You are given the transcript of a meeting and you need to summarize it.

Use the following markdown structure for every output:

### Overview
A detailed, engaging summary of the session. Focus on major features, user
workflows and any key takeaways. Write in a narrative style using full sentences.

### Notes
Key content broken into thematic sections. Each section has a short title and
bullet points for the main points, actions or demos discussed.`

// SummarizeMeeting turns a processing meeting's transcript into its summary
// and completes it. Meetings that are gone or no longer processing are
// skipped without error.
func (a *App) SummarizeMeeting(ctx context.Context, meetingID string) error {
	logger := util.LoggerFromContext(ctx).With("meeting_id", meetingID)
	m, ok, err := a.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("load meeting: %w", err)
	}
	if !ok {
		logger.Warn("summarize skipped, meeting deleted")
		return nil
	}
	if m.Status != domain.MeetingProcessing {
		logger.Info("summarize skipped", "status", m.Status)
		return nil
	}
	if strings.TrimSpace(m.TranscriptURL) == "" {
		logger.Warn("summarize skipped, no transcript url")
		return nil
	}

	raw, err := a.fetchTranscript(ctx, m.TranscriptURL)
	if err != nil {
		return err
	}
	a.archiveTranscript(ctx, m.ID, raw)

	items, err := videosdk.ParseTranscript(raw)
	if err != nil {
		return fmt.Errorf("parse transcript: %w", err)
	}
	names, err := a.speakerNames(ctx, videosdk.SpeakerIDs(items))
	if err != nil {
		return err
	}
	text := videosdk.FormatTranscript(items, names)

	summary := "No conversation was captured for this meeting."
	if strings.TrimSpace(text) != "" {
		summary, err = a.generate(ctx, "summary", ai.Prompt(summarizerPrompt, "Summarize the following transcript:\n\n"+text))
		if err != nil {
			return err
		}
		if strings.TrimSpace(summary) == "" {
			return errors.New("generate summary: empty response")
		}
	}

	changed, err := a.store.CompleteMeeting(ctx, m.ID, summary)
	if err != nil {
		return fmt.Errorf("complete meeting: %w", err)
	}
	if !changed {
		logger.Info("meeting left processing while summarizing")
		return nil
	}
	events.PublishBestEffort(ctx, a.events, logger, events.MeetingEvent{
		Type:      events.MeetingCompleted,
		MeetingID: m.ID,
		UserID:    m.UserID,
		AgentID:   m.AgentID,
		Status:    string(domain.MeetingCompleted),
		At:        a.clock(),
	})
	logger.Info("meeting summarized", "speakers", len(names), "lines", len(items))
	return nil
}

func (a *App) fetchTranscript(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transcript request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch transcript: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch transcript: upstream status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, a.maxTranscript+1))
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	if int64(len(data)) > a.maxTranscript {
		return nil, fmt.Errorf("transcript exceeds %d bytes", a.maxTranscript)
	}
	return data, nil
}

// archiveTranscript keeps a copy that outlives the provider's signed URL.
func (a *App) archiveTranscript(ctx context.Context, meetingID string, raw []byte) {
	if a.objects == nil {
		return
	}
	err := a.objects.Put(ctx, storage.TranscriptKey(meetingID), bytes.NewReader(raw), int64(len(raw)), "application/x-ndjson")
	if err != nil {
		util.LoggerFromContext(ctx).Warn("transcript archive failed", "meeting_id", meetingID, "err", err)
	}
}

// speakerNames maps speaker ids to display names. A speaker is either a user
// or an agent; ids matching neither stay unmapped.
func (a *App) speakerNames(ctx context.Context, ids []string) (map[string]string, error) {
	var mu sync.Mutex
	names := make(map[string]string, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.speakerLookups)
	for _, id := range ids {
		g.Go(func() error {
			name, err := a.speakerName(gctx, id)
			if err != nil {
				return err
			}
			if name != "" {
				mu.Lock()
				names[id] = name
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return names, nil
}

func (a *App) speakerName(ctx context.Context, id string) (string, error) {
	user, ok, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("lookup speaker %s: %w", id, err)
	}
	if ok {
		return user.Name, nil
	}
	agent, ok, err := a.store.GetAgent(ctx, id)
	if err != nil {
		return "", fmt.Errorf("lookup speaker %s: %w", id, err)
	}
	if ok {
		return agent.Name, nil
	}
	return "", nil
}
