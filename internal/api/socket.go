package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/wms-askbot/internal/conversation"
	"github.com/ashureev/wms-askbot/internal/identity"
	"github.com/coder/websocket"
)

// socketFrame is the envelope for every WebSocket message in both directions.
type socketFrame struct {
	Type    string       `json:"type"`
	Action  string       `json:"action,omitempty"`
	Message string       `json:"message,omitempty"`
	Session *SessionView `json:"session,omitempty"`
	Reply   *ReplyView   `json:"reply,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// ChatSocket carries chat turns over a WebSocket. Each "turn" frame is handled
// exactly like POST /api/chat.
type ChatSocket struct {
	svc           *conversation.Service
	limiter       *RateLimiter
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewChatSocket creates a WebSocket chat handler. A nil limiter disables
// throttling.
func NewChatSocket(svc *conversation.Service, limiter *RateLimiter, allowedOrigin string, isDev bool, logger *slog.Logger) *ChatSocket {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatSocket{svc: svc, limiter: limiter, allowedOrigin: allowedOrigin, isDev: isDev, logger: logger}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *ChatSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := identity.ConversationKey(r.Context())
	h.logger.Info("WebSocket connection request", "tab_id", identity.TabIDFromContext(r.Context()), "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	view := NewSessionView(h.svc.Current(key))
	if err := h.writeJSON(ctx, ws, socketFrame{Type: "session", Session: &view}); err != nil {
		h.logger.Debug("Failed to send initial session", "error", err)
		return
	}

	h.readLoop(ctx, ws, key, rateLimitKey(r))
	h.logger.Info("Chat socket ended", "tab_id", identity.TabIDFromContext(r.Context()))
}

func (h *ChatSocket) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *ChatSocket) readLoop(ctx context.Context, ws *websocket.Conn, key, limitKey string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client")
			} else {
				h.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var frame socketFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			if err := h.writeJSON(ctx, ws, socketFrame{Type: "error", Error: "invalid frame"}); err != nil {
				return
			}
			continue
		}

		var out socketFrame
		switch frame.Type {
		case "turn":
			if !h.limiter.Allow(limitKey) {
				out = socketFrame{Type: "error", Error: "rate limit exceeded"}
				break
			}
			// A turn that has started finishes even if the socket drops.
			req := TurnRequest{Action: frame.Action, Message: frame.Message}
			sess, reply := h.svc.Turn(context.WithoutCancel(ctx), key, req.Input())
			view, rv := NewSessionView(sess), NewReplyView(reply)
			out = socketFrame{Type: "reply", Session: &view, Reply: &rv}
		case "ping":
			out = socketFrame{Type: "pong"}
		default:
			out = socketFrame{Type: "error", Error: "unknown frame type"}
		}

		if err := h.writeJSON(ctx, ws, out); err != nil {
			h.logger.Debug("Failed to write frame", "type", out.Type, "error", err)
			return
		}
	}
}

func (h *ChatSocket) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}
