package cmd

import (
	"context"

	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newTapCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tap",
		Short: "Send and list taps",
	}

	cmd.AddCommand(
		newTapSendCmd(app),
		newTapListCmd(app, "sent", "List taps the account sent", (*application.Client).GetSentTaps),
		newTapListCmd(app, "received", "List taps the account received", (*application.Client).GetReceivedTaps),
	)

	return cmd
}

func newTapSendCmd(app *app) *cobra.Command {
	var tapType int

	cmd := &cobra.Command{
		Use:   "send <profile-id>",
		Short: "Tap a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseProfileID(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				if err := client.SendTap(ctx, target, domain.TapType(tapType)); err != nil {
					return err
				}
				return writeResult(cmd, map[string]any{"sent": true, "target": target}, func() error {
					return writeLine(cmd, "tapped %d", target)
				})
			})
		},
	}

	cmd.Flags().IntVar(&tapType, "type", int(domain.TapFlame), "Tap type")

	return cmd
}

func newTapListCmd(app *app, use, short string, list func(*application.Client, context.Context) ([]domain.TapInteraction, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				taps, err := list(client, ctx)
				if err != nil {
					return err
				}
				return writeResult(cmd, taps, func() error {
					for _, tap := range taps {
						name := "-"
						if tap.DisplayName != nil {
							name = valueOrDash(*tap.DisplayName)
						}
						if err := writeLine(cmd, "%d\t%s\t%s\ttype=%d\t%s", tap.ProfileID, name,
							optionalDistance(tap.Distance), tap.TapType, formatTimestamp(tap.Timestamp)); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}

func newFavoriteCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorite",
		Short: "Manage favorite profiles",
	}

	cmd.AddCommand(
		newFavoriteChangeCmd(app, "add", "Add a profile to favorites", (*application.Client).AddToFavorites),
		newFavoriteChangeCmd(app, "remove", "Remove a profile from favorites", (*application.Client).RemoveFromFavorites),
	)

	return cmd
}

func newFavoriteChangeCmd(app *app, use, short string, change func(*application.Client, context.Context, domain.ProfileID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <profile-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseProfileID(args[0])
			if err != nil {
				return err
			}
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				return change(client, ctx, target)
			})
		},
	}
}
