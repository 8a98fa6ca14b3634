package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ashureev/wms-askbot/internal/conversation"
	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/ashureev/wms-askbot/internal/identity"
	"github.com/go-chi/chi/v5"
)

// maxTurnBody caps a chat request body.
const maxTurnBody = 64 << 10

// TurnRequest is the body of POST /api/chat and of WebSocket message frames.
type TurnRequest struct {
	Action  string `json:"action"`
	Message string `json:"message"`
}

// Input converts the request to an engine input.
func (t TurnRequest) Input() conversation.Input {
	return conversation.Input{Action: conversation.ParseAction(t.Action), Text: t.Message}
}

// SessionView is the client-facing view of a session.
type SessionView struct {
	State      domain.State             `json:"state"`
	Messages   []domain.Message         `json:"messages"`
	PendingSQL string                   `json:"pending_sql,omitempty"`
	Downloads  map[domain.Format]string `json:"downloads,omitempty"`
}

// ReplyView is the client-facing view of one turn's outcome.
type ReplyView struct {
	Messages []domain.Message `json:"messages"`
	Notice   string           `json:"notice,omitempty"`
	Outcome  string           `json:"outcome"`
	IssueID  string           `json:"issue_id,omitempty"`
}

// TurnResponse is returned from POST /api/chat.
type TurnResponse struct {
	Session SessionView `json:"session"`
	Reply   ReplyView   `json:"reply"`
}

// NewSessionView builds the client view. Artifact paths are replaced by their
// download URLs.
func NewSessionView(s domain.Session) SessionView {
	v := SessionView{State: s.State, Messages: s.Messages, PendingSQL: s.PendingSQL}
	if v.Messages == nil {
		v.Messages = []domain.Message{}
	}
	for format := range s.LatestFiles {
		if v.Downloads == nil {
			v.Downloads = make(map[domain.Format]string)
		}
		v.Downloads[format] = conversation.DownloadPath + string(format)
	}
	return v
}

// NewReplyView builds the client view of a reply.
func NewReplyView(r conversation.Reply) ReplyView {
	v := ReplyView{Messages: r.Messages, Notice: r.Notice, Outcome: string(r.Outcome), IssueID: r.IssueID}
	if v.Messages == nil {
		v.Messages = []domain.Message{}
	}
	return v
}

// ChatHandler serves the chat API and artifact downloads.
type ChatHandler struct {
	svc     *conversation.Service
	limiter *RateLimiter
	logger  *slog.Logger
}

// NewChatHandler creates a ChatHandler. A nil limiter disables throttling.
func NewChatHandler(svc *conversation.Service, limiter *RateLimiter, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{svc: svc, limiter: limiter, logger: logger}
}

// RegisterRoutes mounts the chat and download endpoints.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/chat", h.Get)
	r.Post("/api/chat", h.Post)
	r.Get(conversation.DownloadPath+"{format}", h.Download)
}

// Get returns the caller's current session.
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess := h.svc.Current(identity.ConversationKey(r.Context()))
	JSON(w, http.StatusOK, NewSessionView(sess))
}

// Post applies one turn. The turn runs to completion even if the client
// goes away; only the configured query and model timeouts bound it.
func (h *ChatHandler) Post(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(rateLimitKey(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req TurnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTurnBody)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key := identity.ConversationKey(r.Context())
	sess, reply := h.svc.Turn(context.WithoutCancel(r.Context()), key, req.Input())

	h.logger.Info("Chat turn",
		"anon_id", identity.AnonIDFromContext(r.Context()),
		"tab_id", identity.TabIDFromContext(r.Context()),
		"ip", identity.IPFromRequest(r),
		"outcome", string(reply.Outcome),
		"state", string(sess.State))

	JSON(w, http.StatusOK, TurnResponse{
		Session: NewSessionView(sess),
		Reply:   NewReplyView(reply),
	})
}

// Download streams the caller's latest artifact in the requested format.
func (h *ChatHandler) Download(w http.ResponseWriter, r *http.Request) {
	format, ok := domain.ParseFormat(chi.URLParam(r, "format"))
	if !ok {
		Error(w, http.StatusNotFound, "File not available.")
		return
	}

	sess := h.svc.Current(identity.ConversationKey(r.Context()))
	path, ok := sess.LatestFiles[format]
	if !ok {
		Error(w, http.StatusNotFound, "File not available.")
		return
	}
	if _, err := os.Stat(path); err != nil {
		h.logger.Warn("Artifact missing on disk", "path", path, "error", err)
		Error(w, http.StatusNotFound, "File not available.")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}
