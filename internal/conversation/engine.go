// Package conversation implements the two-state dialogue that turns a
// question into a confirmed, vetted query and routes its outcome.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/ashureev/wms-askbot/internal/escalation"
	"github.com/ashureev/wms-askbot/internal/export"
	"github.com/ashureev/wms-askbot/internal/metrics"
	"github.com/ashureev/wms-askbot/internal/safety"
	"github.com/ashureev/wms-askbot/internal/tablehint"
)

// Fixed assistant texts.
const (
	Greeting      = "Hi, I'm your AI Support Bot. Ask me anything about orders, SKUs, locations, or inventory."
	ClosedNotice  = "Chat session closed. You can start a new request anytime."
	EmptyNotice   = "Please enter a message."
	UnsafeReply   = "I couldn't generate a safe SQL for that. Please rephrase."
	ConfirmPrompt = "Do you want me to run it? (Yes/No)"
	DeclinedReply = "Okay, not running that query. Ask me another question."
	ResultsHeader = "Here are the results:"
	FollowUpReply = "Would you like to make another request or type 'close chat' to end?"
	NoRowsDetails = "No rows returned"
)

// DownloadPath prefixes the per-format artifact download links.
const DownloadPath = "/download/"

// Action discriminates a turn.
type Action string

const (
	ActionMessage Action = "message"
	ActionReset   Action = "reset"
)

// ParseAction maps a wire value to an Action; anything unknown is a message.
func ParseAction(s string) Action {
	if Action(strings.ToLower(strings.TrimSpace(s))) == ActionReset {
		return ActionReset
	}
	return ActionMessage
}

// Input is everything a turn receives from the user.
type Input struct {
	Action Action
	Text   string
}

// Outcome classifies how a turn ended.
type Outcome string

const (
	OutcomeReset     Outcome = "reset"
	OutcomeClosed    Outcome = "closed"
	OutcomeEmpty     Outcome = "empty_input"
	OutcomeRejected  Outcome = "rejected"
	OutcomePending   Outcome = "pending"
	OutcomeDeclined  Outcome = "declined"
	OutcomeResults   Outcome = "results"
	OutcomeEscalated Outcome = "escalated"
	OutcomeFailed    Outcome = "failed"
)

// FailureKind classifies a failed turn.
type FailureKind string

const (
	FailureSynthesis  FailureKind = "synthesis"
	FailureDataAccess FailureKind = "data_access"
	FailureEscalation FailureKind = "escalation"
	FailureInternal   FailureKind = "internal"
)

var failureReplies = map[FailureKind]string{
	FailureSynthesis:  "Error: I couldn't generate a query right now. Please try again.",
	FailureDataAccess: "Error: the query could not be run. Please try again or rephrase.",
	FailureEscalation: "Error: no data was found and the issue could not be recorded. Please try again.",
	FailureInternal:   "Error: something went wrong handling that message. Please try again.",
}

// Reply describes what a turn produced.
type Reply struct {
	// Messages are the assistant messages appended to the transcript.
	Messages []domain.Message
	// Notice is a transient status line that is not part of the transcript.
	Notice  string
	Outcome Outcome
	// IssueID is set when the turn escalated.
	IssueID string
	// Failure is set when Outcome is OutcomeFailed.
	Failure FailureKind
}

// Synthesizer produces a candidate statement for a question.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string) (string, error)
}

// Packager runs an approved statement and packages its results.
type Packager interface {
	Package(ctx context.Context, sql string) (*export.Result, error)
}

// Escalator records and forwards an unanswered question.
type Escalator interface {
	Escalate(ctx context.Context, req escalation.Request) (escalation.Receipt, error)
}

// Deps are the engine's collaborators.
type Deps struct {
	Synthesizer Synthesizer
	Packager    Packager
	Escalator   Escalator
	Logger      *slog.Logger
	// ShowSQL includes the pending statement in the confirmation prompt.
	ShowSQL bool
}

// Engine advances sessions one turn at a time. It holds no per-session state
// and is safe for concurrent use across sessions.
type Engine struct {
	deps   Deps
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{deps: deps, logger: logger}
}

// NewSession returns a session holding only the greeting.
func NewSession() domain.Session {
	s := domain.Session{State: domain.StateCollect}
	s.Append(domain.RoleAssistant, Greeting)
	return s
}

var closePhrases = map[string]bool{
	"close": true, "end": true, "stop": true, "bye": true, "exit": true, "close chat": true,
}

// IsClosePhrase reports whether text asks to end the chat.
func IsClosePhrase(text string) bool {
	return closePhrases[strings.ToLower(strings.TrimSpace(text))]
}

// IsAffirmative reports whether text confirms a pending query.
func IsAffirmative(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y":
		return true
	}
	return false
}

// Step applies one turn to sess and returns the new session. The input
// session is never mutated. The returned session is always valid, and after
// any failure it is in the collect state.
func (e *Engine) Step(ctx context.Context, sess domain.Session, in Input) (next domain.Session, reply Reply) {
	if in.Action == ActionReset {
		return e.finish(NewSession(), Reply{Outcome: OutcomeReset})
	}

	text := strings.TrimSpace(in.Text)
	if IsClosePhrase(text) {
		return e.finish(NewSession(), Reply{Notice: ClosedNotice, Outcome: OutcomeClosed})
	}
	if text == "" {
		return e.finish(sess, Reply{Notice: EmptyNotice, Outcome: OutcomeEmpty})
	}

	next = sess.Clone()
	if !next.Valid() {
		e.logger.Warn("Repairing inconsistent session", "state", next.State)
		next.ClearPending()
	}
	next.Append(domain.RoleUser, text)

	defer func() {
		if r := recover(); r != nil {
			next, reply = e.fail(next, FailureInternal, fmt.Errorf("panic: %v", r))
		}
	}()

	switch next.State {
	case domain.StateConfirm:
		next, reply = e.confirm(ctx, next, text)
	default:
		next, reply = e.collect(ctx, next, text)
	}
	return next, reply
}

func (e *Engine) collect(ctx context.Context, sess domain.Session, question string) (domain.Session, Reply) {
	sql, err := e.deps.Synthesizer.Synthesize(ctx, question)
	if err != nil {
		return e.fail(sess, FailureSynthesis, err)
	}
	if !safety.IsSafe(sql) {
		metrics.GateRejectionsTotal.Inc()
		e.logger.Info("Generated query rejected by safety gate", "sql", sql)
		return e.say(sess, Reply{Outcome: OutcomeRejected}, UnsafeReply)
	}

	sess.State = domain.StateConfirm
	sess.PendingSQL = sql
	sess.PendingQuestion = question

	prompt := "I found a query for that. " + ConfirmPrompt
	if e.deps.ShowSQL {
		prompt = fmt.Sprintf("I found a query for that:\n```sql\n%s\n```\n%s", sql, ConfirmPrompt)
	}
	return e.say(sess, Reply{Outcome: OutcomePending}, prompt)
}

func (e *Engine) confirm(ctx context.Context, sess domain.Session, answer string) (domain.Session, Reply) {
	if !IsAffirmative(answer) {
		sess.ClearPending()
		return e.say(sess, Reply{Outcome: OutcomeDeclined}, DeclinedReply)
	}

	sql, question := sess.PendingSQL, sess.PendingQuestion
	result, err := e.deps.Packager.Package(ctx, sql)
	if err != nil {
		return e.fail(sess, FailureDataAccess, err)
	}
	sess.ClearPending()

	if result.Empty() {
		receipt, err := e.deps.Escalator.Escalate(ctx, escalation.Request{
			Question:   question,
			SQL:        sql,
			TableLabel: tablehint.Detect(question),
			Details:    NoRowsDetails,
		})
		if err != nil {
			return e.fail(sess, FailureEscalation, err)
		}
		msg := fmt.Sprintf("No data found. Issue **%s** escalated upstream.", receipt.IssueID)
		if !receipt.Delivered {
			msg = fmt.Sprintf("No data found, but failed to send email. Issue ID: %s", receipt.IssueID)
		}
		return e.say(sess, Reply{Outcome: OutcomeEscalated, IssueID: receipt.IssueID}, msg)
	}

	sess.LatestFiles = result.Files
	return e.say(sess, Reply{Outcome: OutcomeResults},
		ResultsHeader+"\n```\n"+result.Preview+"```",
		DownloadLinks(),
		FollowUpReply,
	)
}

// DownloadLinks renders the artifact links as markdown.
func DownloadLinks() string {
	return fmt.Sprintf("[Download CSV](%s%s) | [Download Excel](%s%s)",
		DownloadPath, domain.FormatCSV, DownloadPath, domain.FormatExcel)
}

func (e *Engine) say(sess domain.Session, reply Reply, texts ...string) (domain.Session, Reply) {
	for _, t := range texts {
		sess.Append(domain.RoleAssistant, t)
		reply.Messages = append(reply.Messages, domain.Message{Role: domain.RoleAssistant, Content: t})
	}
	return e.finish(sess, reply)
}

func (e *Engine) fail(sess domain.Session, kind FailureKind, err error) (domain.Session, Reply) {
	e.logger.Error("Turn failed", "failure", string(kind), "error", err)
	sess.ClearPending()
	return e.say(sess, Reply{Outcome: OutcomeFailed, Failure: kind}, failureReplies[kind])
}

func (e *Engine) finish(sess domain.Session, reply Reply) (domain.Session, Reply) {
	metrics.TurnsTotal.WithLabelValues(string(reply.Outcome)).Inc()
	return sess, reply
}

// Render formats a transcript as plain text, one speaker-tagged block per
// message.
func Render(messages []domain.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		speaker := "Bot"
		if m.Role == domain.RoleUser {
			speaker = "You"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, m.Content)
	}
	return b.String()
}
