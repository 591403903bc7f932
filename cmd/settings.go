package cmd

import (
	"context"
	"time"

	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newSettingsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change account settings",
	}

	cmd.AddCommand(
		newSettingsShowCmd(app),
		newSettingsUpdateCmd(app),
	)

	return cmd
}

func newSettingsShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show account settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				settings, err := client.GetUserSettings(ctx)
				if err != nil {
					return err
				}
				return writeResult(cmd, settings, func() error {
					rows := []struct {
						key   string
						value any
					}{
						{"incognito", settings.Incognito},
						{"hide distance", settings.HideDistance},
						{"hide online status", settings.HideOnlineStatus},
						{"push notifications", settings.PushNotifications},
						{"unit system", valueOrDash(settings.UnitSystem)},
						{"discoverable radius", settings.DiscoverableRadius},
					}
					for _, row := range rows {
						if err := writeLine(cmd, "%s: %v", row.key, row.value); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}

func newSettingsUpdateCmd(app *app) *cobra.Command {
	var (
		incognito          bool
		hideDistance       bool
		hideOnlineStatus   bool
		pushNotifications  bool
		unitSystem         string
		discoverableRadius int
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change settings; only the flags given are sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var update domain.SettingsUpdate
			flags := cmd.Flags()
			if flags.Changed("incognito") {
				update.Incognito = &incognito
			}
			if flags.Changed("hide-distance") {
				update.HideDistance = &hideDistance
			}
			if flags.Changed("hide-online-status") {
				update.HideOnlineStatus = &hideOnlineStatus
			}
			if flags.Changed("push-notifications") {
				update.PushNotifications = &pushNotifications
			}
			if flags.Changed("unit-system") {
				update.UnitSystem = &unitSystem
			}
			if flags.Changed("discoverable-radius") {
				update.DiscoverableRadius = &discoverableRadius
			}
			if err := update.Validate(); err != nil {
				return err
			}

			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				if err := client.UpdateUserSettings(ctx, update); err != nil {
					return err
				}
				return writeLine(cmd, "settings updated")
			})
		},
	}

	cmd.Flags().BoolVar(&incognito, "incognito", false, "Hide the profile from the nearby grid")
	cmd.Flags().BoolVar(&hideDistance, "hide-distance", false, "Hide distance from other profiles")
	cmd.Flags().BoolVar(&hideOnlineStatus, "hide-online-status", false, "Hide online status")
	cmd.Flags().BoolVar(&pushNotifications, "push-notifications", false, "Enable push notifications")
	cmd.Flags().StringVar(&unitSystem, "unit-system", "", "metric or imperial")
	cmd.Flags().IntVar(&discoverableRadius, "discoverable-radius", 0, "Radius in meters within which the profile is shown")

	return cmd
}

func newRewardedCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rewarded",
		Short: "Show rewarded chat allowance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				chats, err := client.GetRewardedChats(ctx)
				if err != nil {
					return err
				}
				return writeResult(cmd, chats, func() error {
					resets := "-"
					if !chats.ResetsAt.IsZero() {
						resets = chats.ResetsAt.UTC().Format(time.RFC3339)
					}
					return writeLine(cmd, "rewarded chats: %d available, %d used, resets %s", chats.Available, chats.Used, resets)
				})
			})
		},
	}
}
