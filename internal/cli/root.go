// Package cli implements the askbot command-line tool.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ashureev/wms-askbot/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

func Run() ExitCode {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "askbot",
		Short: "Ask warehouse questions in plain language.",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cmd.Help()
			if err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")

	rootCmd.AddCommand(
		NewChatCmd().Command(),
		NewIssuesCmd().Command(),
	)

	if err := rootCmd.Execute(); err != nil {
		return exitCodeError
	}

	return exitCodeSuccess
}

func newLogger(verbose bool) *slog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logging.New(os.Stderr, "text", level)
}
