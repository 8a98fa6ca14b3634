package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/stretchr/testify/require"
)

func repositories(t *testing.T) map[string]IssueRepository {
	t.Helper()

	sqlite, err := NewSQLiteIssues(filepath.Join(t.TempDir(), "data", "issues.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]IssueRepository{
		"memory": NewMemoryIssues(),
		"sqlite": sqlite,
	}
}

func newIssue(id string, at time.Time) *domain.Issue {
	return &domain.Issue{
		ID:         id,
		Question:   "where is order 42",
		SQL:        "SELECT * FROM order_header WHERE id = 42",
		TableLabel: "order_header",
		Details:    "No rows returned",
		Status:     domain.IssueStatusOpen,
		CreatedAt:  at,
	}
}

func TestCreateAndGet(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

			require.NoError(t, repo.Create(ctx, newIssue("a1b2c3d4", at)))

			got, err := repo.Get(ctx, "a1b2c3d4")
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, "where is order 42", got.Question)
			require.Equal(t, "order_header", got.TableLabel)
			require.True(t, got.IsOpen())
			require.True(t, at.Equal(got.CreatedAt))

			missing, err := repo.Get(ctx, "ffffffff")
			require.NoError(t, err)
			require.Nil(t, missing)
		})
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := newIssue("deadbeef", time.Now())
			require.NoError(t, repo.Create(ctx, first))

			second := newIssue("deadbeef", time.Now())
			second.Question = "overwrite attempt"
			require.ErrorIs(t, repo.Create(ctx, second), ErrIssueExists)

			got, err := repo.Get(ctx, "deadbeef")
			require.NoError(t, err)
			require.Equal(t, "where is order 42", got.Question)
		})
	}
}

func TestListOpenOrdersByCreation(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

			require.NoError(t, repo.Create(ctx, newIssue("00000003", base.Add(2*time.Minute))))
			require.NoError(t, repo.Create(ctx, newIssue("00000001", base)))
			closed := newIssue("00000002", base.Add(time.Minute))
			closed.Status = "closed"
			require.NoError(t, repo.Create(ctx, closed))

			open, err := repo.ListOpen(ctx)
			require.NoError(t, err)
			require.Len(t, open, 2)
			require.Equal(t, "00000001", open[0].ID)
			require.Equal(t, "00000003", open[1].ID)
		})
	}
}

func TestConcurrentCreate(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const n = 20

			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs <- repo.Create(ctx, newIssue(fmt.Sprintf("%08x", i), time.Now()))
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			open, err := repo.ListOpen(ctx)
			require.NoError(t, err)
			require.Len(t, open, n)
		})
	}
}

func TestMemoryIssuesReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryIssues()
	issue := newIssue("cafebabe", time.Now())
	require.NoError(t, repo.Create(ctx, issue))

	issue.Question = "mutated after create"
	got, err := repo.Get(ctx, "cafebabe")
	require.NoError(t, err)
	require.Equal(t, "where is order 42", got.Question)

	got.Question = "mutated after get"
	again, err := repo.Get(ctx, "cafebabe")
	require.NoError(t, err)
	require.Equal(t, "where is order 42", again.Question)
}
