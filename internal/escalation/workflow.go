// Package escalation records "no data found" issues and notifies an upstream
// contact about them.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/ashureev/wms-askbot/internal/metrics"
	"github.com/ashureev/wms-askbot/internal/store"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	issueIDLength = 8
	tokenLength   = 12

	// maxIDAttempts bounds regeneration when a freshly minted issue id is taken.
	maxIDAttempts = 5
)

// Notifier delivers an escalation message to a human channel.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, subject, body string) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, subject, body string) error {
	return f(ctx, subject, body)
}

// Request describes what could not be answered.
type Request struct {
	Question   string
	SQL        string
	TableLabel string
	Details    string
}

// Receipt is the outcome of an escalation. The issue is recorded even when
// Delivered is false.
type Receipt struct {
	IssueID           string
	ConversationToken string
	Delivered         bool
}

// Workflow records issues first and notifies best-effort.
type Workflow struct {
	repo     store.IssueRepository
	notifier Notifier
	newHex   func() string
	clock    clockwork.Clock
	logger   *slog.Logger
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithIDSource overrides the hex source used for issue ids and conversation
// tokens. Each call must return at least 12 hex characters.
func WithIDSource(fn func() string) Option {
	return func(w *Workflow) { w.newHex = fn }
}

// WithClock sets the clock used for issue timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(w *Workflow) { w.clock = clock }
}

// WithLogger sets the workflow logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

// NewWorkflow creates an escalation workflow. A nil notifier records issues
// without delivering anything.
func NewWorkflow(repo store.IssueRepository, notifier Notifier, opts ...Option) *Workflow {
	w := &Workflow{
		repo:     repo,
		notifier: notifier,
		newHex:   randomHex,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func randomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Subject builds the notification subject line.
func Subject(tableLabel, issueID string) string {
	return fmt.Sprintf("[AI Chatbot] Missing Data Escalation - %s (%s)", tableLabel, issueID)
}

// Body builds the notification body.
func Body(token string, req Request) string {
	return fmt.Sprintf("Conversation token: %s\nUser Question: %s\nSQL: %s\nDetails: %s",
		token, req.Question, req.SQL, req.Details)
}

// Escalate records a new open issue and attempts to notify upstream.
// An error means nothing was recorded; notification failures only clear
// Receipt.Delivered.
func (w *Workflow) Escalate(ctx context.Context, req Request) (Receipt, error) {
	issue, err := w.record(ctx, req)
	if err != nil {
		return Receipt{}, err
	}

	receipt := Receipt{
		IssueID:           issue.ID,
		ConversationToken: w.newHex()[:tokenLength],
	}

	if w.notifier != nil {
		err := w.notifier.Notify(ctx,
			Subject(req.TableLabel, issue.ID),
			Body(receipt.ConversationToken, req))
		if err != nil {
			w.logger.Warn("Escalation notification failed",
				"issue_id", issue.ID,
				"error", err)
		} else {
			receipt.Delivered = true
		}
	}

	metrics.EscalationsTotal.WithLabelValues(strconv.FormatBool(receipt.Delivered)).Inc()
	w.logger.Info("Issue escalated",
		"issue_id", receipt.IssueID,
		"conversation_token", receipt.ConversationToken,
		"table", req.TableLabel,
		"delivered", receipt.Delivered)
	return receipt, nil
}

func (w *Workflow) record(ctx context.Context, req Request) (*domain.Issue, error) {
	for i := 0; i < maxIDAttempts; i++ {
		issue := &domain.Issue{
			ID:         w.newHex()[:issueIDLength],
			Question:   req.Question,
			SQL:        req.SQL,
			TableLabel: req.TableLabel,
			Details:    req.Details,
			Status:     domain.IssueStatusOpen,
			CreatedAt:  w.clock.Now().UTC(),
		}
		err := w.repo.Create(ctx, issue)
		if err == nil {
			return issue, nil
		}
		if !errors.Is(err, store.ErrIssueExists) {
			return nil, fmt.Errorf("record issue: %w", err)
		}
		w.logger.Debug("Issue id collision, regenerating", "issue_id", issue.ID)
	}
	return nil, fmt.Errorf("record issue: %w after %d attempts", store.ErrIssueExists, maxIDAttempts)
}
