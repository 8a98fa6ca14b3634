//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/wms-askbot/internal/conversation"
	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/ashureev/wms-askbot/internal/escalation"
	"github.com/ashureev/wms-askbot/internal/export"
	"github.com/ashureev/wms-askbot/internal/identity"
	"github.com/ashureev/wms-askbot/internal/session"
	"github.com/ashureev/wms-askbot/internal/store"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestChatSocketTurns(t *testing.T) {
	engine := conversation.NewEngine(conversation.Deps{
		Synthesizer: stubSynth{sql: "SELECT 1"},
		Packager:    stubPackager{result: &export.Result{}},
		Escalator:   escalation.NewWorkflow(store.NewMemoryIssues(), nil),
	})
	svc := conversation.NewService(engine, session.NewStore(time.Minute))

	r := chi.NewRouter()
	r.Use(identity.Middleware(true))
	r.Get("/ws/chat", NewChatSocket(svc, nil, "*", true, nil).ServeHTTP)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() socketFrame {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var f socketFrame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	}
	write := func(f socketFrame) {
		data, err := json.Marshal(f)
		require.NoError(t, err)
		require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
	}

	first := read()
	require.Equal(t, "session", first.Type)
	require.Equal(t, conversation.Greeting, first.Session.Messages[0].Content)

	write(socketFrame{Type: "turn", Action: "message", Message: "show me open orders"})
	reply := read()
	require.Equal(t, "reply", reply.Type)
	require.Equal(t, domain.StateConfirm, reply.Session.State)
	require.Equal(t, string(conversation.OutcomePending), reply.Reply.Outcome)

	write(socketFrame{Type: "ping"})
	require.Equal(t, "pong", read().Type)

	write(socketFrame{Type: "bogus"})
	require.Equal(t, "error", read().Type)

	write(socketFrame{Type: "turn", Action: "message", Message: "no"})
	reply = read()
	require.Equal(t, domain.StateCollect, reply.Session.State)
	require.Equal(t, string(conversation.OutcomeDeclined), reply.Reply.Outcome)
}
