package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ashureev/wms-askbot/internal/app"
	"github.com/ashureev/wms-askbot/internal/config"
	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

type IssuesCmd struct{}

func NewIssuesCmd() *IssuesCmd {
	return &IssuesCmd{}
}

func (c *IssuesCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issues",
		Short: "List open escalation issues from the issue database",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := cmd.Flags().GetString("db")
			if err != nil {
				return fmt.Errorf("failed to get db flag: %w", err)
			}

			repo, err := app.OpenIssues(config.IssueStoreConfig{Backend: "sqlite", DBPath: dbPath})
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			issues, err := repo.ListOpen(ctx)
			if err != nil {
				return fmt.Errorf("failed to list issues: %w", err)
			}

			PrintIssues(cmd.OutOrStdout(), issues)
			return nil
		},
	}

	defaultPath := os.Getenv("ISSUE_DB_PATH")
	if defaultPath == "" {
		defaultPath = "./data/issues.db"
	}
	cmd.Flags().String("db", defaultPath, "Path to the SQLite issue database")

	return cmd
}

// PrintIssues renders issues as a table.
func PrintIssues(w io.Writer, issues []*domain.Issue) {
	if len(issues) == 0 {
		fmt.Fprintln(w, "No open issues.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Table", "Question", "Details", "Created"})
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, issue := range issues {
		table.Append([]string{
			issue.ID,
			issue.TableLabel,
			issue.Question,
			issue.Details,
			issue.CreatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
}
