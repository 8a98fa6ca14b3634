package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/wms-askbot/internal/conversation"
	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/ashureev/wms-askbot/internal/escalation"
	"github.com/ashureev/wms-askbot/internal/export"
	"github.com/ashureev/wms-askbot/internal/session"
	"github.com/ashureev/wms-askbot/internal/store"
	"github.com/stretchr/testify/require"
)

type stubSynth struct{}

func (stubSynth) Synthesize(context.Context, string) (string, error) {
	return "SELECT * FROM order_header", nil
}

type stubPackager struct{}

func (stubPackager) Package(context.Context, string) (*export.Result, error) {
	return &export.Result{}, nil
}

func TestRunChat(t *testing.T) {
	repo := store.NewMemoryIssues()
	engine := conversation.NewEngine(conversation.Deps{
		Synthesizer: stubSynth{},
		Packager:    stubPackager{},
		Escalator:   escalation.NewWorkflow(repo, nil),
	})
	svc := conversation.NewService(engine, session.NewStore(time.Minute))

	in := strings.NewReader("show me open orders\nyes\nclose chat\nnever read\n")
	var out bytes.Buffer
	require.NoError(t, RunChat(context.Background(), svc, "cli-test", in, &out))

	text := out.String()
	require.Contains(t, text, conversation.Greeting)
	require.Contains(t, text, conversation.ConfirmPrompt)
	require.Contains(t, text, "No data found, but failed to send email. Issue ID: ")
	require.Contains(t, text, conversation.ClosedNotice)

	open, err := repo.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, "show me open orders", open[0].Question)
}

func TestPrintIssues(t *testing.T) {
	var buf bytes.Buffer
	PrintIssues(&buf, nil)
	require.Equal(t, "No open issues.\n", buf.String())

	buf.Reset()
	PrintIssues(&buf, []*domain.Issue{{
		ID:         "1a2b3c4d",
		Question:   "where is sku ABC-1",
		TableLabel: "sku",
		Details:    "No rows returned",
		Status:     domain.IssueStatusOpen,
		CreatedAt:  time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}})
	out := buf.String()
	require.Contains(t, out, "1a2b3c4d")
	require.Contains(t, out, "where is sku ABC-1")
	require.Contains(t, out, "2025-05-01T09:00:00Z")
}
