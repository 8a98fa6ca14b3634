package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/wms-askbot/internal/app"
	"github.com/ashureev/wms-askbot/internal/config"
	"github.com/ashureev/wms-askbot/internal/conversation"
	"github.com/ashureev/wms-askbot/internal/domain"
	"github.com/ashureev/wms-askbot/internal/identity"
	"github.com/spf13/cobra"
)

type ChatCmd struct{}

func NewChatCmd() *ChatCmd {
	return &ChatCmd{}
}

func (c *ChatCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
			if err != nil {
				return fmt.Errorf("failed to get verbose flag: %w", err)
			}
			log := newLogger(verbose)

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := a.Close(); closeErr != nil {
					log.Error("Failed to close application", "error", closeErr)
				}
			}()

			anonID, err := identity.NewAnonID()
			if err != nil {
				return err
			}
			key := identity.ConversationKey(identity.WithIdentity(ctx, anonID, "cli"))

			return RunChat(ctx, a.Chat, key, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	return cmd
}

// RunChat reads one turn per line from in until EOF, a close phrase, or ctx
// ends.
func RunChat(ctx context.Context, svc *conversation.Service, key string, in io.Reader, out io.Writer) error {
	sess := svc.Current(key)
	printMessages(out, sess.Messages)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		_, reply := svc.Turn(ctx, key, conversation.Input{Action: conversation.ActionMessage, Text: scanner.Text()})
		if reply.Notice != "" {
			fmt.Fprintln(out, reply.Notice)
		}
		printMessages(out, reply.Messages)

		if reply.Outcome == conversation.OutcomeClosed {
			return nil
		}
	}
}

func printMessages(out io.Writer, msgs []domain.Message) {
	var bot []domain.Message
	for _, m := range msgs {
		if m.Role == domain.RoleAssistant {
			bot = append(bot, m)
		}
	}
	if len(bot) > 0 {
		fmt.Fprint(out, conversation.Render(bot))
	}
}
