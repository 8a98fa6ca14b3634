package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ashureev/wms-askbot/internal/domain"
)

// MemoryIssues is a process-local IssueRepository. Issues are lost on restart.
type MemoryIssues struct {
	mu     sync.RWMutex
	issues map[string]*domain.Issue
}

// NewMemoryIssues creates an empty in-memory repository.
func NewMemoryIssues() *MemoryIssues {
	return &MemoryIssues{issues: make(map[string]*domain.Issue)}
}

// Create inserts issue unless its id is taken.
func (m *MemoryIssues) Create(_ context.Context, issue *domain.Issue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.issues[issue.ID]; exists {
		return ErrIssueExists
	}
	c := *issue
	m.issues[issue.ID] = &c
	return nil
}

// Get retrieves an issue by id.
func (m *MemoryIssues) Get(_ context.Context, id string) (*domain.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	issue, ok := m.issues[id]
	if !ok {
		return nil, nil
	}
	c := *issue
	return &c, nil
}

// ListOpen returns open issues ordered by creation time.
func (m *MemoryIssues) ListOpen(_ context.Context) ([]*domain.Issue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Issue
	for _, issue := range m.issues {
		if issue.IsOpen() {
			c := *issue
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Ping always succeeds.
func (m *MemoryIssues) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryIssues) Close() error { return nil }
