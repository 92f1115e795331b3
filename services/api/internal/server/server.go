package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"meetai/internal/metrics"
	"meetai/internal/ratelimit"
	"meetai/internal/usertoken"
	"meetai/internal/util"
	"meetai/pkg/apperr"
	"meetai/pkg/domain"
	"meetai/services/api/internal/app"
)

const defaultMaxWebhookBytes = 1 << 20

// UserDirectory resolves callers from the auth provider's tables and
// registers users first seen through a verified JWT.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (domain.User, bool, error)
	GetUserIDBySession(ctx context.Context, token string, now time.Time) (string, bool, error)
	SaveUser(ctx context.Context, u domain.User) error
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                       *app.App
	Users                     UserDirectory
	TokenVerifier             *usertoken.Verifier
	Metrics                   *metrics.Metrics
	Ready                     func(context.Context) error
	RedisAddr                 string
	RedisPassword             string
	WebhookRateLimitPerMinute int
	ChatRateLimitPerMinute    int
	MaxWebhookBytes           int64
	SessionCookieName         string
	SessionCookieSecret       string
	CORSAllowedOrigins        []string
	TrustedProxies            *util.TrustedProxies
}

// Server exposes the meetai HTTP API.
type Server struct {
	app             *app.App
	users           UserDirectory
	tokenVerifier   *usertoken.Verifier
	metrics         *metrics.Metrics
	ready           func(context.Context) error
	mux             *http.ServeMux
	maxWebhookBytes int64
	cookieName      string
	cookieSecret    []byte
	corsOrigins     []string
	trustedProxies  *util.TrustedProxies
	webhookLimiter  *ratelimit.FixedWindowLimiter
	chatLimiter     *ratelimit.FixedWindowLimiter
	now             func() time.Time
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server: app is required")
	}
	if cfg.Users == nil {
		return nil, errors.New("server: user directory is required")
	}
	webhookLimit := cfg.WebhookRateLimitPerMinute
	if webhookLimit <= 0 {
		webhookLimit = 600
	}
	chatLimit := cfg.ChatRateLimitPerMinute
	if chatLimit <= 0 {
		chatLimit = 30
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "meetai:api:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	webhookLimiter, err := newLimiter("webhook", webhookLimit)
	if err != nil {
		return nil, err
	}
	chatLimiter, err := newLimiter("chat", chatLimit)
	if err != nil {
		return nil, err
	}
	maxWebhook := cfg.MaxWebhookBytes
	if maxWebhook <= 0 {
		maxWebhook = defaultMaxWebhookBytes
	}
	cookie := strings.TrimSpace(cfg.SessionCookieName)
	if cookie == "" {
		cookie = "meetai.session_token"
	}
	s := &Server{
		app:             cfg.App,
		users:           cfg.Users,
		tokenVerifier:   cfg.TokenVerifier,
		metrics:         cfg.Metrics,
		ready:           cfg.Ready,
		mux:             http.NewServeMux(),
		maxWebhookBytes: maxWebhook,
		cookieName:      cookie,
		cookieSecret:    []byte(cfg.SessionCookieSecret),
		corsOrigins:     cfg.CORSAllowedOrigins,
		trustedProxies:  cfg.TrustedProxies,
		webhookLimiter:  webhookLimiter,
		chatLimiter:     chatLimiter,
		now:             time.Now,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("api", util.WithSecurityHeaders(s.trustedProxies, util.WithCORS(s.corsOrigins, s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/metrics", s.metrics.Handler())

	s.mux.Handle("/api/webhook", s.instrument("webhook", http.HandlerFunc(s.handleWebhook)))

	s.mux.Handle("/api/agents", s.instrument("agents", s.authenticated(s.handleAgents)))
	s.mux.Handle("/api/agents/", s.instrument("agent", s.authenticated(s.handleAgentByID)))
	s.mux.Handle("/api/meetings", s.instrument("meetings", s.authenticated(s.handleMeetings)))
	s.mux.Handle("/api/meetings/", s.instrument("meeting", s.authenticated(s.handleMeetingByID)))

	s.mux.Handle("/api/premium/usage", s.instrument("premium", s.authenticated(s.handleUsage)))
	s.mux.Handle("/api/premium/subscription", s.instrument("premium", s.authenticated(s.handleSubscription)))
	s.mux.Handle("/api/premium/products", s.instrument("premium", s.authenticated(s.handleProducts)))

	s.mux.Handle("/api/public/", s.instrument("public", http.HandlerFunc(s.handlePublic)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			util.LoggerFromContext(r.Context()).Warn("health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &util.StatusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		status := rec.Status
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(route, status, time.Since(start))
	})
}

// /api/public/meetings/{id}/exists and /api/public/agents/{id}/exists
func (s *Server) handlePublic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/public/"), "/")
	if len(parts) != 3 || parts[1] == "" || parts[2] != "exists" {
		http.NotFound(w, r)
		return
	}
	var (
		exists bool
		err    error
	)
	switch parts[0] {
	case "meetings":
		exists, err = s.app.MeetingExists(r.Context(), parts[1])
	case "agents":
		exists, err = s.app.AgentExists(r.Context(), parts[1])
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Upgrade bool   `json:"upgrade,omitempty"`
}

var statusByCode = map[apperr.Code]int{
	apperr.CodeUnauthorized: http.StatusUnauthorized,
	apperr.CodeForbidden:    http.StatusForbidden,
	apperr.CodeNotFound:     http.StatusNotFound,
	apperr.CodeBadRequest:   http.StatusBadRequest,
	apperr.CodeGone:         http.StatusGone,
	apperr.CodeBadGateway:   http.StatusBadGateway,
}

// writeAppError maps the apperr taxonomy onto HTTP. Unclassified errors are
// logged and reported as a bare 500.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok {
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: string(apperr.CodeInternal)})
		return
	}
	status, known := statusByCode[e.Code]
	if !known {
		status = http.StatusInternalServerError
	}
	if e.Code == apperr.CodeBadGateway && e.Err != nil {
		util.LoggerFromContext(r.Context()).Warn("upstream failure", "path", r.URL.Path, "err", e.Err)
	}
	writeJSON(w, status, errorResponse{Error: e.Message, Code: string(e.Code), Upgrade: e.Upgrade})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, key, msg string) bool {
	decision := limiter.Allow(r.Context(), key)
	if decision.Allowed {
		return true
	}
	retry := int(decision.RetryAfter.Round(time.Second) / time.Second)
	if retry < 1 {
		retry = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	s.audit(r, "api.ratelimit", "fail", "key", key)
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trustedProxies)
}
