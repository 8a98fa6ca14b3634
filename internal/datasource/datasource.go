// Package datasource executes vetted read-only statements against the
// configured warehouse database.
package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/wms-askbot/internal/metrics"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// ResultSet is a fully materialized query result. Rows keep column order.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Empty reports whether the result has no rows.
func (r *ResultSet) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// Querier runs one statement and returns its rows.
type Querier interface {
	Query(ctx context.Context, query string) (*ResultSet, error)
}

// SQL is a database/sql backed Querier.
type SQL struct {
	db      *sql.DB
	timeout time.Duration
}

// Open connects to the warehouse. driver is "postgres", "pgx" or "sqlite";
// an empty driver is inferred from the DSN scheme.
func Open(driver, dsn string, timeout time.Duration) (*SQL, error) {
	name, err := driverName(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", name, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return New(db, timeout), nil
}

// New wraps an existing handle. timeout <= 0 disables the per-query deadline.
func New(db *sql.DB, timeout time.Duration) *SQL {
	return &SQL{db: db, timeout: timeout}
}

func driverName(driver, dsn string) (string, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx":
		return "pgx", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "":
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}

	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", nil
	case strings.HasPrefix(dsn, "file:"), strings.HasSuffix(dsn, ".db"), dsn == ":memory:":
		return "sqlite", nil
	}
	return "", fmt.Errorf("cannot infer database driver from DB_URI; set DB_DRIVER")
}

// Query executes query and materializes every row. []byte values are
// converted to strings so exports see text, not byte slices.
func (s *SQL) Query(ctx context.Context, query string) (rs *ResultSet, err error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() { metrics.ObserveQuery(start, err) }()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close rows: %w", closeErr)
		}
	}()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return result, nil
}

// Ping verifies database connectivity.
func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying pool.
func (s *SQL) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
