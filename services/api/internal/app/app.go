package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"meetai/internal/metrics"
	"meetai/pkg/billing"
	"meetai/pkg/domain"
	"meetai/pkg/entitlement"
	"meetai/pkg/events"
	"meetai/pkg/queue"
	"meetai/pkg/retention"
	"meetai/pkg/storage"
	"meetai/pkg/store"
	"meetai/pkg/videosdk"
)

// VideoProvider is the slice of the video SDK the API drives.
type VideoProvider interface {
	APIKey() string
	VerifyWebhook(body []byte, signature, apiKey string) error
	CreateCall(ctx context.Context, spec videosdk.CallSpec) error
	EndCall(ctx context.Context, callType, callID string) error
	UpsertUsers(ctx context.Context, users ...videosdk.User) error
	UserToken(userID string, ttl time.Duration) (string, error)
}

// JobEnqueuer hands long-running work to the worker.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, kind, refID string) (queue.Job, error)
}

// Config holds runtime dependencies for the application core.
type Config struct {
	Store         store.Store
	Video         VideoProvider
	Billing       billing.Provider
	Jobs          JobEnqueuer
	Events        events.Publisher
	Objects       storage.ObjectStore
	Metrics       *metrics.Metrics
	HTTPClient    *http.Client
	Evaluator     *entitlement.Evaluator
	ProductTiers  map[string]domain.Tier
	RetentionDays int
	TokenTTL      time.Duration
	Now           func() time.Time
}

// App implements the meeting backend's procedures. Every method that takes a
// userID scopes reads and writes to rows owned by that user.
type App struct {
	store      store.Store
	video      VideoProvider
	billing    billing.Provider
	jobs       JobEnqueuer
	events     events.Publisher
	objects    storage.ObjectStore
	metrics    *metrics.Metrics
	httpClient *http.Client
	retention  retention.Window
	entitle    *entitlement.Evaluator
	tiers      map[string]domain.Tier
	tokenTTL   time.Duration
	now        func() time.Time
}

// New validates cfg and builds the application.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, errors.New("store required")
	}
	if cfg.Video == nil {
		return nil, errors.New("video provider required")
	}
	if cfg.Jobs == nil {
		return nil, errors.New("job queue required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = entitlement.NewEvaluator(cfg.Billing, cfg.Store,
			entitlement.WithClock(now),
			entitlement.WithProductTiers(cfg.ProductTiers))
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.Nop{}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newArtifactClient()
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &App{
		store:      cfg.Store,
		video:      cfg.Video,
		billing:    cfg.Billing,
		jobs:       cfg.Jobs,
		events:     publisher,
		objects:    cfg.Objects,
		metrics:    cfg.Metrics,
		httpClient: httpClient,
		retention:  retention.New(cfg.RetentionDays, now),
		entitle:    evaluator,
		tiers:      cfg.ProductTiers,
		tokenTTL:   tokenTTL,
		now:        now,
	}, nil
}

// newArtifactClient fetches recordings and transcripts from the provider.
// Only connecting and waiting for headers are bounded; the body streams for
// as long as the caller's request context lives.
func newArtifactClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 30 * time.Second
	return &http.Client{Transport: transport}
}

func (a *App) clock() time.Time {
	return a.now().UTC()
}

// Page bounds.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Paged is one page of a listing.
type Paged[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func newPaged[T any](items []T, total int64, pageSize int) Paged[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if pageSize > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Paged[T]{Items: items, Total: total, TotalPages: pages}
}

func normalizeName(name string, max int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("name is required")
	}
	if len([]rune(name)) > max {
		return "", fmt.Errorf("name must be at most %d characters", max)
	}
	return name, nil
}
