package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"meetai/internal/util"
	"meetai/pkg/domain"
	"meetai/services/api/internal/app"
)

// handleWebhook is the video provider's delivery endpoint. It is not
// user-authenticated; the body signature is checked by the app.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.webhookLimiter, "ip:"+s.clientIP(r), "too many webhook deliveries") {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxWebhookBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	res, err := s.app.HandleWebhook(r.Context(), body, r.Header.Get("X-Signature"), r.Header.Get("X-Api-Key"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleDownload streams a meeting artifact as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, user domain.User, id string, kind app.Artifact) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	d, err := s.app.OpenDownload(r.Context(), user.ID, id, kind)
	if err != nil {
		rec := &util.StatusRecorder{ResponseWriter: w}
		writeAppError(rec, r, err)
		s.metrics.Download(string(kind), rec.Status)
		return
	}
	defer d.Body.Close()
	// Recordings can outlast the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		util.LoggerFromContext(r.Context()).Debug("write deadline not cleared", "err", err)
	}

	h := w.Header()
	h.Set("Content-Type", d.ContentType)
	h.Set("Content-Disposition", `attachment; filename="`+d.Filename+`"`)
	h.Set("Cache-Control", "private, no-store")
	if d.ContentLength > 0 {
		h.Set("Content-Length", strconv.FormatInt(d.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, d.Body)
	if err != nil {
		util.LoggerFromContext(r.Context()).Warn("download interrupted", "meeting_id", id, "artifact", kind, "bytes", n, "err", err)
	}
	s.metrics.Download(string(kind), http.StatusOK)
}
