package conversation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/ashureev/wms-askbot/internal/escalation"
	"github.com/ashureev/wms-askbot/internal/export"
	"github.com/stretchr/testify/require"
)

const openOrdersSQL = "SELECT * FROM order_header WHERE status='OPEN' LIMIT 1000"

type fakeSynth struct {
	sql   string
	err   error
	calls []string
}

func (f *fakeSynth) Synthesize(_ context.Context, q string) (string, error) {
	f.calls = append(f.calls, q)
	return f.sql, f.err
}

type fakePackager struct {
	result *export.Result
	err    error
	panics bool
	calls  []string
}

func (f *fakePackager) Package(_ context.Context, sql string) (*export.Result, error) {
	f.calls = append(f.calls, sql)
	if f.panics {
		panic("driver exploded")
	}
	return f.result, f.err
}

type fakeEscalator struct {
	receipt escalation.Receipt
	err     error
	reqs    []escalation.Request
}

func (f *fakeEscalator) Escalate(_ context.Context, req escalation.Request) (escalation.Receipt, error) {
	f.reqs = append(f.reqs, req)
	return f.receipt, f.err
}

type harness struct {
	synth *fakeSynth
	pkg   *fakePackager
	esc   *fakeEscalator
	eng   *Engine
}

func newHarness() *harness {
	h := &harness{
		synth: &fakeSynth{sql: openOrdersSQL},
		pkg: &fakePackager{result: &export.Result{
			Columns:  []string{"order_id"},
			RowCount: 2,
			Files: map[domain.Format]string{
				domain.FormatCSV:   "/tmp/results_x.csv",
				domain.FormatExcel: "/tmp/results_x.xlsx",
			},
			Preview: "| order_id |\n| 1 |\n| 2 |\n",
		}},
		esc: &fakeEscalator{receipt: escalation.Receipt{IssueID: "1a2b3c4d", ConversationToken: "aabbccddeeff", Delivered: true}},
	}
	h.eng = NewEngine(Deps{Synthesizer: h.synth, Packager: h.pkg, Escalator: h.esc})
	return h
}

func (h *harness) step(t *testing.T, s domain.Session, text string) (domain.Session, Reply) {
	t.Helper()
	next, reply := h.eng.Step(context.Background(), s, Input{Action: ActionMessage, Text: text})
	require.True(t, next.Valid(), "invalid session after %q: %+v", text, next)
	return next, reply
}

func lastContent(s domain.Session) string {
	return s.Messages[len(s.Messages)-1].Content
}

func TestNewSession(t *testing.T) {
	s := NewSession()
	require.Equal(t, domain.StateCollect, s.State)
	require.Len(t, s.Messages, 1)
	require.Equal(t, domain.RoleAssistant, s.Messages[0].Role)
	require.Equal(t, Greeting, s.Messages[0].Content)
	require.True(t, s.Valid())
}

func TestQuestionMovesToConfirm(t *testing.T) {
	h := newHarness()

	s, reply := h.step(t, NewSession(), "show me open orders")
	require.Equal(t, OutcomePending, reply.Outcome)
	require.Equal(t, domain.StateConfirm, s.State)
	require.Equal(t, openOrdersSQL, s.PendingSQL)
	require.Equal(t, "show me open orders", s.PendingQuestion)
	require.Equal(t, []string{"show me open orders"}, h.synth.calls)
	require.Empty(t, h.pkg.calls)

	require.Equal(t, domain.Message{Role: domain.RoleUser, Content: "show me open orders"}, s.Messages[1])
	require.Contains(t, lastContent(s), ConfirmPrompt)
	require.NotContains(t, lastContent(s), openOrdersSQL)
}

func TestConfirmPromptCanShowSQL(t *testing.T) {
	h := newHarness()
	h.eng = NewEngine(Deps{Synthesizer: h.synth, Packager: h.pkg, Escalator: h.esc, ShowSQL: true})

	s, _ := h.step(t, NewSession(), "show me open orders")
	require.Contains(t, lastContent(s), openOrdersSQL)
	require.Contains(t, lastContent(s), ConfirmPrompt)
}

func TestEmptyResultEscalates(t *testing.T) {
	h := newHarness()
	h.pkg.result = &export.Result{Columns: []string{"sku"}}

	s, _ := h.step(t, NewSession(), "where is sku ABC-1")
	s, reply := h.step(t, s, "yes")

	require.Equal(t, OutcomeEscalated, reply.Outcome)
	require.Equal(t, "1a2b3c4d", reply.IssueID)
	require.Equal(t, domain.StateCollect, s.State)
	require.Empty(t, s.PendingSQL)
	require.Nil(t, s.LatestFiles)
	require.Equal(t, "No data found. Issue **1a2b3c4d** escalated upstream.", lastContent(s))

	require.Len(t, h.esc.reqs, 1)
	req := h.esc.reqs[0]
	require.Equal(t, "where is sku ABC-1", req.Question)
	require.Equal(t, openOrdersSQL, req.SQL)
	require.Equal(t, NoRowsDetails, req.Details)
	require.Equal(t, "sku", req.TableLabel)
}

func TestEmptyResultUndeliveredStillReportsIssue(t *testing.T) {
	h := newHarness()
	h.pkg.result = &export.Result{}
	h.esc.receipt.Delivered = false

	s, _ := h.step(t, NewSession(), "show me open orders")
	s, reply := h.step(t, s, "Y")

	require.Equal(t, OutcomeEscalated, reply.Outcome)
	require.Equal(t, "No data found, but failed to send email. Issue ID: 1a2b3c4d", lastContent(s))
}

func TestDeclineDiscardsPending(t *testing.T) {
	h := newHarness()

	s, _ := h.step(t, NewSession(), "show me open orders")
	s, reply := h.step(t, s, "no")

	require.Equal(t, OutcomeDeclined, reply.Outcome)
	require.Equal(t, domain.StateCollect, s.State)
	require.Empty(t, s.PendingSQL)
	require.Empty(t, h.pkg.calls)
	require.Equal(t, DeclinedReply, lastContent(s))
}

func TestResultsProduceThreeMessages(t *testing.T) {
	h := newHarness()

	s, _ := h.step(t, NewSession(), "show me open orders")
	before := len(s.Messages)
	s, reply := h.step(t, s, "yes")

	require.Equal(t, OutcomeResults, reply.Outcome)
	require.Equal(t, []string{openOrdersSQL}, h.pkg.calls)
	require.Equal(t, domain.StateCollect, s.State)
	require.Equal(t, h.pkg.result.Files, s.LatestFiles)

	require.Len(t, reply.Messages, 3)
	require.Len(t, s.Messages, before+1+3)
	require.Contains(t, reply.Messages[0].Content, ResultsHeader)
	require.Contains(t, reply.Messages[0].Content, "| order_id |")
	require.Contains(t, reply.Messages[1].Content, "/download/csv")
	require.Contains(t, reply.Messages[1].Content, "/download/excel")
	require.Equal(t, FollowUpReply, reply.Messages[2].Content)
}

func TestClosePhraseResetsFromAnyState(t *testing.T) {
	h := newHarness()

	confirming, _ := h.step(t, NewSession(), "show me open orders")
	withFiles, _ := h.step(t, confirming, "yes")
	require.NotNil(t, withFiles.LatestFiles)

	for _, start := range []domain.Session{NewSession(), confirming, withFiles} {
		for _, phrase := range []string{"close chat", "CLOSE", " bye ", "Exit", "stop", "end"} {
			s, reply := h.step(t, start, phrase)
			require.Equal(t, OutcomeClosed, reply.Outcome)
			require.Equal(t, ClosedNotice, reply.Notice)
			require.Equal(t, NewSession(), s)
		}
	}
}

func TestUnsafeQueryIsRejected(t *testing.T) {
	h := newHarness()
	h.synth.sql = "DROP TABLE orders;"

	s, reply := h.step(t, NewSession(), "delete all orders")
	require.Equal(t, OutcomeRejected, reply.Outcome)
	require.Equal(t, domain.StateCollect, s.State)
	require.Empty(t, s.PendingSQL)
	require.Empty(t, h.pkg.calls)
	require.Equal(t, UnsafeReply, lastContent(s))
}

func TestResetShortCircuits(t *testing.T) {
	h := newHarness()
	confirming, _ := h.step(t, NewSession(), "show me open orders")

	s, reply := h.eng.Step(context.Background(), confirming, Input{Action: ActionReset, Text: "yes"})
	require.Equal(t, OutcomeReset, reply.Outcome)
	require.Equal(t, NewSession(), s)
	require.Empty(t, h.pkg.calls)
}

func TestEmptyInputLeavesSessionUntouched(t *testing.T) {
	h := newHarness()
	confirming, _ := h.step(t, NewSession(), "show me open orders")

	s, reply := h.step(t, confirming, "   ")
	require.Equal(t, OutcomeEmpty, reply.Outcome)
	require.Equal(t, EmptyNotice, reply.Notice)
	require.Equal(t, confirming, s)
}

func TestStepDoesNotMutateInput(t *testing.T) {
	h := newHarness()
	start := NewSession()
	start.Messages = append(make([]domain.Message, 0, 8), start.Messages...)

	_, _ = h.step(t, start, "show me open orders")
	require.Len(t, start.Messages, 1)
	require.Equal(t, domain.StateCollect, start.State)
	require.Empty(t, start.PendingSQL)
}

func TestFailuresReturnToCollect(t *testing.T) {
	t.Run("synthesis", func(t *testing.T) {
		h := newHarness()
		h.synth.err = errors.New("rate limited")

		s, reply := h.step(t, NewSession(), "show me open orders")
		require.Equal(t, OutcomeFailed, reply.Outcome)
		require.Equal(t, FailureSynthesis, reply.Failure)
		require.Equal(t, domain.StateCollect, s.State)
		require.Equal(t, "show me open orders", s.Messages[1].Content)
		require.Equal(t, failureReplies[FailureSynthesis], lastContent(s))
	})

	t.Run("data access", func(t *testing.T) {
		h := newHarness()
		h.pkg.err = errors.New("connection reset")

		s, _ := h.step(t, NewSession(), "show me open orders")
		s, reply := h.step(t, s, "yes")
		require.Equal(t, FailureDataAccess, reply.Failure)
		require.Equal(t, domain.StateCollect, s.State)
		require.Empty(t, s.PendingSQL)
	})

	t.Run("escalation", func(t *testing.T) {
		h := newHarness()
		h.pkg.result = &export.Result{}
		h.esc.err = errors.New("disk full")

		s, _ := h.step(t, NewSession(), "show me open orders")
		s, reply := h.step(t, s, "yes")
		require.Equal(t, FailureEscalation, reply.Failure)
		require.Equal(t, domain.StateCollect, s.State)
	})

	t.Run("panic", func(t *testing.T) {
		h := newHarness()
		h.pkg.panics = true

		s, _ := h.step(t, NewSession(), "show me open orders")
		s, reply := h.step(t, s, "yes")
		require.Equal(t, FailureInternal, reply.Failure)
		require.Equal(t, domain.StateCollect, s.State)
		require.Equal(t, "yes", s.Messages[len(s.Messages)-2].Content)
	})
}

func TestPendingInvariantAcrossRandomTurns(t *testing.T) {
	inputs := []Input{
		{Action: ActionMessage, Text: "show me open orders"},
		{Action: ActionMessage, Text: "yes"},
		{Action: ActionMessage, Text: "no"},
		{Action: ActionMessage, Text: ""},
		{Action: ActionMessage, Text: "close chat"},
		{Action: ActionReset},
		{Action: ActionMessage, Text: "drop everything"},
	}

	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 50; run++ {
		h := newHarness()
		s := NewSession()
		for turn := 0; turn < 30; turn++ {
			in := inputs[rng.Intn(len(inputs))]
			switch rng.Intn(4) {
			case 0:
				h.synth.sql = "DELETE FROM order_header"
			case 1:
				h.synth.err = errors.New("flaky")
			default:
				h.synth.sql, h.synth.err = openOrdersSQL, nil
			}
			h.pkg.result.RowCount = rng.Intn(2)

			s, _ = h.eng.Step(context.Background(), s, in)
			require.True(t, s.Valid(), fmt.Sprintf("run %d turn %d: %+v", run, turn, s))
			require.Equal(t, s.PendingSQL != "", s.State == domain.StateConfirm)
		}
	}
}

func TestIsClosePhraseAndAffirmative(t *testing.T) {
	require.True(t, IsClosePhrase("Close Chat"))
	require.False(t, IsClosePhrase("close the order"))
	require.True(t, IsAffirmative(" YES "))
	require.True(t, IsAffirmative("y"))
	require.False(t, IsAffirmative("yeah"))
	require.Equal(t, ActionReset, ParseAction("Reset"))
	require.Equal(t, ActionMessage, ParseAction(""))
}

func TestRender(t *testing.T) {
	out := Render([]domain.Message{
		{Role: domain.RoleAssistant, Content: Greeting},
		{Role: domain.RoleUser, Content: "hello"},
	})
	require.Equal(t, "Bot: "+Greeting+"\n\nYou: hello\n", out)
}
