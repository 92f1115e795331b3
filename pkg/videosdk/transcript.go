package videosdk

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// TranscriptItem is one line of a transcript JSONL file.
type TranscriptItem struct {
	SpeakerID string `json:"speaker_id"`
	Type      string `json:"type"`
	Text      string `json:"text"`
	StartTS   int64  `json:"start_ts"`
	StopTS    int64  `json:"stop_ts"`
}

// ParseTranscript decodes JSONL, skipping blank lines.
func ParseTranscript(data []byte) ([]TranscriptItem, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var items []TranscriptItem
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var item TranscriptItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("transcript line %d: %w", line, err)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	return items, nil
}

// SpeakerIDs returns distinct speaker ids in first-seen order.
func SpeakerIDs(items []TranscriptItem) []string {
	seen := make(map[string]struct{}, len(items))
	var ids []string
	for _, it := range items {
		if it.SpeakerID == "" {
			continue
		}
		if _, ok := seen[it.SpeakerID]; ok {
			continue
		}
		seen[it.SpeakerID] = struct{}{}
		ids = append(ids, it.SpeakerID)
	}
	return ids
}

// FormatTranscript renders items as "Name: text" lines using names for
// speaker lookup; unknown speakers are labelled "Unknown".
func FormatTranscript(items []TranscriptItem, names map[string]string) string {
	var b strings.Builder
	for _, it := range items {
		text := strings.TrimSpace(it.Text)
		if text == "" {
			continue
		}
		name := names[it.SpeakerID]
		if name == "" {
			name = "Unknown"
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return b.String()
}
