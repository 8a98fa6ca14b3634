// Package app wires the assistant's components from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/wms-askbot/internal/config"
	"github.com/ashureev/wms-askbot/internal/conversation"
	"github.com/ashureev/wms-askbot/internal/datasource"
	"github.com/ashureev/wms-askbot/internal/escalation"
	"github.com/ashureev/wms-askbot/internal/export"
	"github.com/ashureev/wms-askbot/internal/session"
	"github.com/ashureev/wms-askbot/internal/store"
	"github.com/ashureev/wms-askbot/internal/synth"
	"github.com/jonboulle/clockwork"
)

// App holds the long-lived components.
type App struct {
	Warehouse *datasource.SQL
	Issues    store.IssueRepository
	Sessions  *session.Store
	Packager  *export.Packager
	Janitor   *export.Janitor
	Engine    *conversation.Engine
	Chat      *conversation.Service

	started bool
}

// OpenIssues opens the configured issue repository.
func OpenIssues(cfg config.IssueStoreConfig) (store.IssueRepository, error) {
	if cfg.Backend == "sqlite" {
		repo, err := store.NewSQLiteIssues(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open issue database: %w", err)
		}
		return repo, nil
	}
	return store.NewMemoryIssues(), nil
}

// Notifier builds the escalation notifier: SMTP, plus Slack when configured.
func Notifier(cfg *config.Config, logger *slog.Logger) escalation.Notifier {
	mailer := escalation.NewMailer(escalation.MailConfig{
		Host:       cfg.Mail.Host,
		Port:       cfg.Mail.Port,
		UseSSL:     cfg.Mail.UseSSL,
		User:       cfg.Mail.User,
		Password:   cfg.Mail.Password,
		Recipients: cfg.Mail.Recipients,
		Timeout:    cfg.Mail.Timeout,
	}, nil, logger)

	if cfg.Slack.WebhookURL == "" {
		return mailer
	}
	return escalation.Multi(mailer, escalation.NewSlackNotifier(cfg.Slack.WebhookURL))
}

// New connects to the warehouse and the issue store and builds the engine.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	warehouse, err := datasource.Open(cfg.DB.Driver, cfg.DB.URI, cfg.DB.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("open warehouse: %w", err)
	}
	if err := warehouse.Ping(ctx); err != nil {
		_ = warehouse.Close()
		return nil, fmt.Errorf("ping warehouse: %w", err)
	}

	issues, err := OpenIssues(cfg.Issues)
	if err != nil {
		_ = warehouse.Close()
		return nil, err
	}

	packager, err := export.NewPackager(warehouse, cfg.Artifacts.Dir, logger)
	if err != nil {
		_ = warehouse.Close()
		_ = issues.Close()
		return nil, err
	}

	llm := synth.NewAnthropicClient(synth.AnthropicConfig{
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		MaxTokens: int64(cfg.LLM.MaxTokens),
		Timeout:   cfg.LLM.Timeout,
		Logger:    logger,
	})

	workflow := escalation.NewWorkflow(issues, Notifier(cfg, logger), escalation.WithLogger(logger))
	engine := conversation.NewEngine(conversation.Deps{
		Synthesizer: synth.New(llm, logger),
		Packager:    packager,
		Escalator:   workflow,
		Logger:      logger,
		ShowSQL:     cfg.ShowSQL,
	})
	sessions := session.NewStore(cfg.SessionTTL)

	return &App{
		Warehouse: warehouse,
		Issues:    issues,
		Sessions:  sessions,
		Packager:  packager,
		Janitor: export.NewJanitor(cfg.Artifacts.Dir, cfg.Artifacts.Retention,
			cfg.Artifacts.SweepInterval, clockwork.NewRealClock(), logger),
		Engine: engine,
		Chat:   conversation.NewService(engine, sessions),
	}, nil
}

// Start launches background workers until ctx ends.
func (a *App) Start(ctx context.Context) {
	a.Sessions.Start()
	a.Janitor.Start(ctx)
	a.started = true
}

// Close releases all resources.
func (a *App) Close() error {
	if a.started {
		a.Sessions.Stop()
	}
	issuesErr := a.Issues.Close()
	if err := a.Warehouse.Close(); err != nil {
		return fmt.Errorf("close warehouse: %w", err)
	}
	if issuesErr != nil {
		return fmt.Errorf("close issues: %w", issuesErr)
	}
	return nil
}
