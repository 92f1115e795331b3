package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"meetai/pkg/domain"
	"meetai/services/api/internal/app"
)

const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// parsePage reads page and pageSize: page >= 1 (default 1), pageSize 1..100
// (default 10).
func parsePage(r *http.Request) (domain.Page, error) {
	q := r.URL.Query()
	page := domain.Page{Page: 1, PageSize: app.DefaultPageSize}
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return page, errors.New("page must be a positive integer")
		}
		page.Page = n
	}
	if raw := strings.TrimSpace(q.Get("pageSize")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > app.MaxPageSize {
			return page, fmt.Errorf("pageSize must be between 1 and %d", app.MaxPageSize)
		}
		page.PageSize = n
	}
	return page, nil
}

// /api/agents
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		page, err := parsePage(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		list, err := s.app.ListAgents(r.Context(), user.ID, r.URL.Query().Get("search"), page)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var in app.AgentInput
		if !decodeJSON(w, r, &in) {
			return
		}
		agent, err := s.app.CreateAgent(r.Context(), user.ID, in)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, agent)
	default:
		methodNotAllowed(w)
	}
}

// /api/agents/{id}
func (s *Server) handleAgentByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/agents/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		agent, err := s.app.GetAgent(r.Context(), user.ID, id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, agent)
	case http.MethodPatch:
		var in app.AgentInput
		if !decodeJSON(w, r, &in) {
			return
		}
		agent, err := s.app.UpdateAgent(r.Context(), user.ID, id, in)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, agent)
	case http.MethodDelete:
		if err := s.app.DeleteAgent(r.Context(), user.ID, id); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

// /api/meetings
func (s *Server) handleMeetings(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		page, err := parsePage(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q := r.URL.Query()
		filter := domain.MeetingFilter{
			Search:  q.Get("search"),
			Status:  domain.MeetingStatus(strings.TrimSpace(q.Get("status"))),
			AgentID: strings.TrimSpace(q.Get("agentId")),
		}
		list, err := s.app.ListMeetings(r.Context(), user.ID, filter, page)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case http.MethodPost:
		var in app.MeetingInput
		if !decodeJSON(w, r, &in) {
			return
		}
		meeting, err := s.app.CreateMeeting(r.Context(), user.ID, in)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, meeting)
	default:
		methodNotAllowed(w)
	}
}

// /api/meetings/{id}[/cancel|/token|/chat|/chat/messages|/{artifact}/download]
func (s *Server) handleMeetingByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/meetings/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "cancel":
			s.handleCancelMeeting(w, r, user, id)
		case "token":
			s.handleMeetingToken(w, r, user, id)
		case "chat":
			s.handleChat(w, r, user, id)
		case "chat/messages":
			s.handleChatMessages(w, r, user, id)
		case "recording/download":
			s.handleDownload(w, r, user, id, app.ArtifactRecording)
		case "transcript/download":
			s.handleDownload(w, r, user, id, app.ArtifactTranscript)
		default:
			http.NotFound(w, r)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		meeting, err := s.app.GetMeeting(r.Context(), user.ID, id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, meeting)
	case http.MethodPatch:
		var in app.MeetingInput
		if !decodeJSON(w, r, &in) {
			return
		}
		meeting, err := s.app.UpdateMeeting(r.Context(), user.ID, id, in)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, meeting)
	case http.MethodDelete:
		if err := s.app.DeleteMeeting(r.Context(), user.ID, id); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCancelMeeting(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	meeting, err := s.app.CancelMeeting(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, meeting)
}

func (s *Server) handleMeetingToken(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, err := s.app.GenerateToken(r.Context(), user, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	chat, err := s.app.GetOrCreateChat(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

type chatMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	switch r.Method {
	case http.MethodGet:
		msgs, err := s.app.ListChatMessages(r.Context(), user.ID, id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": msgs})
	case http.MethodPost:
		if !s.allowRate(w, r, s.chatLimiter, "user:"+user.ID, "too many messages, slow down") {
			return
		}
		var req chatMessageRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := s.app.SendChatMessage(r.Context(), user.ID, id, req.Content)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, msg)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	sum, err := s.app.Usage(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	info, err := s.app.Subscription(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	plans, err := s.app.Products(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": plans})
}
