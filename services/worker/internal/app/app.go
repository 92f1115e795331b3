package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"meetai/internal/metrics"
	"meetai/internal/util"
	"meetai/pkg/ai"
	"meetai/pkg/domain"
	"meetai/pkg/events"
	"meetai/pkg/queue"
	"meetai/pkg/storage"
)

// Store is the persistence the worker needs.
type Store interface {
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetAgent(ctx context.Context, id string) (domain.Agent, bool, error)
	GetMeeting(ctx context.Context, id string) (domain.Meeting, bool, error)
	CompleteMeeting(ctx context.Context, id, summary string) (bool, error)
	GetChat(ctx context.Context, id string) (domain.MeetingChat, bool, error)
	AppendAgentMessage(ctx context.Context, msg domain.ChatMessage) error
	ListChatMessages(ctx context.Context, chatID string, limit int) ([]domain.ChatMessage, error)
}

// Config holds runtime dependencies for the worker.
type Config struct {
	Store              Store
	Generator          ai.Generator
	Objects            storage.ObjectStore
	Events             events.Publisher
	Metrics            *metrics.Metrics
	HTTPClient         *http.Client
	ChatHistory        int
	TranscriptMaxBytes int64
	SpeakerLookups     int
	Now                func() time.Time
}

// App runs the background jobs queued by the API.
type App struct {
	store          Store
	generator      ai.Generator
	objects        storage.ObjectStore
	events         events.Publisher
	metrics        *metrics.Metrics
	httpClient     *http.Client
	chatHistory    int
	maxTranscript  int64
	speakerLookups int
	now            func() time.Time
}

// New validates cfg and builds the worker.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator required")
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.Nop{}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	chatHistory := cfg.ChatHistory
	if chatHistory <= 0 {
		chatHistory = 20
	}
	maxTranscript := cfg.TranscriptMaxBytes
	if maxTranscript <= 0 {
		maxTranscript = 32 << 20
	}
	lookups := cfg.SpeakerLookups
	if lookups <= 0 {
		lookups = 8
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &App{
		store:          cfg.Store,
		generator:      cfg.Generator,
		objects:        cfg.Objects,
		events:         publisher,
		metrics:        cfg.Metrics,
		httpClient:     httpClient,
		chatHistory:    chatHistory,
		maxTranscript:  maxTranscript,
		speakerLookups: lookups,
		now:            now,
	}, nil
}

func (a *App) clock() time.Time {
	return a.now().UTC()
}

// Handle dispatches a queued job by kind. It matches queue.Handler.
func (a *App) Handle(ctx context.Context, job queue.Job) error {
	switch job.Kind {
	case queue.KindSummarizeMeeting:
		return a.SummarizeMeeting(ctx, job.RefID)
	case queue.KindChatReply:
		return a.ReplyToChat(ctx, job.RefID)
	default:
		util.LoggerFromContext(ctx).Warn("dropping job of unknown kind", "kind", job.Kind)
		return nil
	}
}

// generate calls the LLM and records its latency under purpose.
func (a *App) generate(ctx context.Context, purpose string, req ai.Request) (string, error) {
	start := time.Now()
	out, err := a.generator.Generate(ctx, req)
	a.metrics.ObserveLLM(purpose, err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", purpose, err)
	}
	return out, nil
}
