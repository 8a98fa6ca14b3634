package escalation

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/ashureev/wms-askbot/internal/metrics"
)

// DefaultSMTPHost is used when no host is configured.
const DefaultSMTPHost = "smtp.gmail.com"

var (
	// ErrMailNotConfigured means credentials or recipients are missing.
	ErrMailNotConfigured = errors.New("mail delivery not configured")
	// ErrAllAttemptsFailed means every planned attempt hit a connection failure.
	ErrAllAttemptsFailed = errors.New("all mail attempts failed")
)

// Mode is how a connection is secured.
type Mode string

const (
	// ModeImplicitTLS encrypts from the first byte.
	ModeImplicitTLS Mode = "ssl"
	// ModeStartTLS connects in plain text and upgrades.
	ModeStartTLS Mode = "starttls"
)

// Attempt is one transport configuration to try.
type Attempt struct {
	Mode Mode
	Host string
	Port int
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s://%s:%d", a.Mode, a.Host, a.Port)
}

// MailConfig holds SMTP settings. Port zero and a nil UseSSL mean unset.
type MailConfig struct {
	Host       string
	Port       int
	UseSSL     *bool
	User       string
	Password   string
	Recipients []string
	Timeout    time.Duration
}

// Configured reports whether mail can be sent at all.
func (c MailConfig) Configured() bool {
	return c.User != "" && c.Password != "" && len(c.Recipients) > 0
}

// PlanAttempts returns the ordered transport list. Setting a port or the SSL
// flag pins exactly one attempt; otherwise implicit TLS on 465 is tried before
// STARTTLS on 587.
func PlanAttempts(cfg MailConfig) []Attempt {
	host := cfg.Host
	if host == "" {
		host = DefaultSMTPHost
	}

	if cfg.Port != 0 || cfg.UseSSL != nil {
		mode := ModeStartTLS
		if cfg.UseSSL != nil && *cfg.UseSSL {
			mode = ModeImplicitTLS
		}
		port := cfg.Port
		if port == 0 {
			port = 587
			if mode == ModeImplicitTLS {
				port = 465
			}
		}
		return []Attempt{{Mode: mode, Host: host, Port: port}}
	}

	return []Attempt{
		{Mode: ModeImplicitTLS, Host: host, Port: 465},
		{Mode: ModeStartTLS, Host: host, Port: 587},
	}
}

// Message is an outbound plain-text mail.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// SendFunc performs a single delivery attempt.
type SendFunc func(ctx context.Context, attempt Attempt, msg Message) error

// AttemptResult records how one attempt went.
type AttemptResult struct {
	Attempt Attempt
	Err     error
}

// Delivery summarizes a send.
type Delivery struct {
	Delivered bool
	Attempts  []AttemptResult
}

// Mailer sends escalations over SMTP, falling back through the planned
// attempts on connection-level failures.
type Mailer struct {
	cfg      MailConfig
	attempts []Attempt
	send     SendFunc
	logger   *slog.Logger
}

// NewMailer creates a mailer. A nil send uses SMTPSender.
func NewMailer(cfg MailConfig, send SendFunc, logger *slog.Logger) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 25 * time.Second
	}
	if send == nil {
		send = SMTPSender{User: cfg.User, Password: cfg.Password, Timeout: cfg.Timeout}.Send
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		cfg:      cfg,
		attempts: PlanAttempts(cfg),
		send:     send,
		logger:   logger,
	}
}

// Attempts returns the planned transport list.
func (m *Mailer) Attempts() []Attempt {
	return append([]Attempt(nil), m.attempts...)
}

// Notify implements Notifier.
func (m *Mailer) Notify(ctx context.Context, subject, body string) error {
	_, err := m.Deliver(ctx, subject, body)
	return err
}

// Deliver tries each planned attempt in order until one succeeds. A failure
// that is not connection-level stops the sequence.
func (m *Mailer) Deliver(ctx context.Context, subject, body string) (Delivery, error) {
	if !m.cfg.Configured() {
		return Delivery{}, ErrMailNotConfigured
	}

	msg := Message{
		From:    m.cfg.User,
		To:      m.cfg.Recipients,
		Subject: subject,
		Body:    body,
	}

	var d Delivery
	var errs []error
	for _, attempt := range m.attempts {
		attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
		err := m.send(attemptCtx, attempt, msg)
		cancel()

		d.Attempts = append(d.Attempts, AttemptResult{Attempt: attempt, Err: err})
		if err == nil {
			metrics.MailAttemptsTotal.WithLabelValues(string(attempt.Mode), "ok").Inc()
			d.Delivered = true
			m.logger.Info("Escalation mail sent",
				"attempt", attempt.String(),
				"recipients", len(msg.To))
			return d, nil
		}

		metrics.MailAttemptsTotal.WithLabelValues(string(attempt.Mode), "error").Inc()
		m.logger.Warn("Mail attempt failed",
			"attempt", attempt.String(),
			"error", err)
		if !isConnectionError(err) {
			return d, fmt.Errorf("send via %s: %w", attempt, err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", attempt, err))
	}
	return d, fmt.Errorf("%w: %w", ErrAllAttemptsFailed, errors.Join(errs...))
}

// isConnectionError reports whether err is a timeout, refusal or disconnect.
func isConnectionError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var headerErr tls.RecordHeaderError
	return errors.As(err, &headerErr)
}
