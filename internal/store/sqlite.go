package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/ashureev/wms-askbot/internal/shared"
	"github.com/cenkalti/backoff/v5"
	_ "modernc.org/sqlite"
)

// SQLiteIssues implements IssueRepository using SQLite.
type SQLiteIssues struct {
	db *sql.DB
	mu sync.Mutex // serializes writes to avoid SQLITE_BUSY
}

// NewSQLiteIssues creates a new SQLite-backed issue repository.
func NewSQLiteIssues(dbPath string) (*SQLiteIssues, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteIssues{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteIssues) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS issues (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		sql_text TEXT NOT NULL,
		table_label TEXT NOT NULL,
		details TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Create inserts issue. Busy errors are retried with exponential backoff;
// a primary key conflict returns ErrIssueExists.
func (s *SQLiteIssues) Create(ctx context.Context, issue *domain.Issue) error {
	if err := retryOnBusy(ctx, issue.ID, func() error {
		return s.createOnce(ctx, issue)
	}); err != nil {
		if errors.Is(err, ErrIssueExists) {
			return err
		}
		return fmt.Errorf("insert issue %s: %w", issue.ID, err)
	}
	return nil
}

const (
	insertMaxTries        = 3
	insertInitialInterval = 50 * time.Millisecond
)

// retryOnBusy runs op until it succeeds, fails with a non-busy error, or
// insertMaxTries is reached.
func retryOnBusy(ctx context.Context, issueID string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = insertInitialInterval
	b.RandomizationFactor = 0

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := op()
		switch {
		case err == nil:
			return struct{}{}, nil
		case shared.IsSQLiteConstraintError(err):
			return struct{}{}, backoff.Permanent(ErrIssueExists)
		case !shared.IsSQLiteConflictError(err):
			return struct{}{}, backoff.Permanent(err)
		}
		slog.Debug("Issue insert hit a locked database, retrying",
			"issue_id", issueID,
			"attempt", attempt)
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(insertMaxTries))
	return err
}

func (s *SQLiteIssues) createOnce(ctx context.Context, issue *domain.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	INSERT INTO issues (id, question, sql_text, table_label, details, status, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		issue.ID, issue.Question, issue.SQL, issue.TableLabel,
		issue.Details, string(issue.Status), issue.CreatedAt.UnixNano(),
	)
	return err
}

// Get retrieves an issue by id.
func (s *SQLiteIssues) Get(ctx context.Context, id string) (*domain.Issue, error) {
	query := `
		SELECT id, question, sql_text, table_label, details, status, created_at
		FROM issues WHERE id = ?`

	issue, err := scanIssue(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan issue row: %w", err)
	}
	return issue, nil
}

// ListOpen returns open issues ordered by creation time.
func (s *SQLiteIssues) ListOpen(ctx context.Context) ([]*domain.Issue, error) {
	query := `
		SELECT id, question, sql_text, table_label, details, status, created_at
		FROM issues WHERE status = ? ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, string(domain.IssueStatusOpen))
	if err != nil {
		return nil, fmt.Errorf("query open issues: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close open issues rows", "error", closeErr)
		}
	}()

	var issues []*domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan open issue row: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open issues: %w", err)
	}
	return issues, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*domain.Issue, error) {
	var issue domain.Issue
	var status string
	var createdAt int64
	if err := row.Scan(
		&issue.ID, &issue.Question, &issue.SQL, &issue.TableLabel,
		&issue.Details, &status, &createdAt,
	); err != nil {
		return nil, err
	}
	issue.Status = domain.IssueStatus(status)
	issue.CreatedAt = time.Unix(0, createdAt).UTC()
	return &issue, nil
}

// Ping verifies database connectivity.
func (s *SQLiteIssues) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteIssues) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
