// Package store provides issue persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/wms-askbot/internal/domain"
)

// ErrIssueExists is returned by Create when the id is already taken.
var ErrIssueExists = errors.New("issue id already exists")

// IssueRepository defines the interface for persisting escalation issues.
// Implementations must be safe for concurrent use.
type IssueRepository interface {
	// Create inserts a new issue. It never overwrites: an existing id yields
	// ErrIssueExists.
	Create(ctx context.Context, issue *domain.Issue) error

	// Get retrieves an issue by id. It returns nil, nil when not found.
	Get(ctx context.Context, id string) (*domain.Issue, error)

	// ListOpen returns all open issues, oldest first.
	ListOpen(ctx context.Context) ([]*domain.Issue, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
