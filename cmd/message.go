package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newMessageCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Send and read messages",
	}

	cmd.AddCommand(
		newMessageSendCmd(app),
		newMessageBulkCmd(app),
		newMessageConversationsCmd(app),
		newMessageHistoryCmd(app),
		newMessageTypingCmd(app),
		newMessageReadCmd(app),
	)

	return cmd
}

func newMessageSendCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <profile-id> <text...>",
		Short: "Send one message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseProfileID(args[0])
			if err != nil {
				return err
			}
			text := strings.Join(args[1:], " ")
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				if err := client.SendMessage(ctx, target, text); err != nil {
					return err
				}
				return writeResult(cmd, map[string]any{"sent": true, "target": target}, func() error {
					return writeLine(cmd, "message sent to %d", target)
				})
			})
		},
	}
}

type bulkFlags struct {
	targetsFile string
	concurrency int
	deadline    time.Duration
}

func (f *bulkFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.targetsFile, "targets-file", "", "YAML file listing batch targets")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Calls in flight at once (defaults to bulk.concurrency)")
	cmd.Flags().DurationVar(&f.deadline, "deadline", 0, "Deadline for the whole batch (defaults to bulk.deadline)")
}

func newMessageBulkCmd(app *app) *cobra.Command {
	var (
		flags bulkFlags
		text  string
	)

	cmd := &cobra.Command{
		Use:   "bulk [profile-id...]",
		Short: "Send the same message to many profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			recipients := make([]domain.ProfileID, 0, len(args))
			for _, arg := range args {
				id, err := parseProfileID(arg)
				if err != nil {
					return err
				}
				recipients = append(recipients, id)
			}
			if flags.targetsFile != "" {
				targets, err := loadTargetsFile(flags.targetsFile)
				if err != nil {
					return err
				}
				for _, id := range targets.Recipients {
					recipients = append(recipients, domain.ProfileID(id))
				}
				if text == "" {
					text = targets.Message
				}
			}
			if len(recipients) == 0 {
				return fmt.Errorf("no recipients given")
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("--text is required")
			}

			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				progress := newBatchProgress(cmd.ErrOrStderr(), len(recipients), "Sending", jsonFlag(cmd))
				result, err := client.BulkSendMessages(ctx, recipients, text, application.BulkOptions{
					Concurrency: flags.concurrency,
					Deadline:    flags.deadline,
					OnResult:    progress.observe,
				})
				progress.finish()
				if err != nil {
					return err
				}

				if err := writeBatchOutput(cmd, app, "Bulk message", application.BulkReport{Result: result}); err != nil {
					return err
				}
				return batchError(result)
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&text, "text", "", "Message text (overrides the targets file message)")

	return cmd
}

func newMessageConversationsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				conversations, err := client.GetConversations(ctx)
				if err != nil {
					return err
				}
				return writeResult(cmd, conversations, func() error {
					for _, conversation := range conversations {
						if err := writeLine(cmd, "%s\t%s\tunread=%d\t%s", conversation.ConversationID, valueOrDash(conversation.Name),
							conversation.UnreadCount, formatTimestamp(conversation.LastActivityTimestamp)); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}

func newMessageHistoryCmd(app *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Show messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				messages, err := client.GetMessages(ctx, args[0], limit)
				if err != nil {
					return err
				}
				return writeResult(cmd, messages, func() error {
					for _, message := range messages {
						text := "(unsent)"
						if !message.Unsent && message.Text != nil {
							text = sanitizeForTerminal(*message.Text)
						}
						if err := writeLine(cmd, "%s\t%d\t%s", formatTimestamp(message.Timestamp), message.SenderID, text); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", application.DefaultMessageLimit, "Maximum number of messages")

	return cmd
}

func newMessageTypingCmd(app *app) *cobra.Command {
	var stop bool

	cmd := &cobra.Command{
		Use:   "typing <profile-id>",
		Short: "Send a typing indicator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseProfileID(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				return client.SendTypingIndicator(ctx, target, !stop)
			})
		},
	}

	cmd.Flags().BoolVar(&stop, "stop", false, "Clear the typing indicator instead")

	return cmd
}

func newMessageReadCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <conversation-id> <message-id>",
		Short: "Mark a conversation read up to a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				return client.SendReadReceipt(ctx, args[0], args[1])
			})
		},
	}
}

// formatTimestamp renders platform timestamps, which are unix milliseconds.
func formatTimestamp(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
