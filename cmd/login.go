package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/spf13/cobra"
)

type sessionResult struct {
	Account  domain.AccountID `json:"account"`
	LoggedIn bool             `json:"logged_in"`
	Message  string           `json:"message"`
}

func newLoginCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in with the account's stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				var (
					ok      bool
					message string
				)
				login := func(ctx context.Context) error {
					ok, message = client.LoginStored(ctx)
					return nil
				}
				if err := runInteractive(cmd, "Logging in...", login); err != nil {
					return err
				}

				id := client.Account().ID
				if !ok {
					return fmt.Errorf("login %s: %s", id, message)
				}
				return writeResult(cmd, sessionResult{Account: id, LoggedIn: ok, Message: message}, func() error {
					return writeLine(cmd, "%s: %s", id, message)
				})
			})
		},
	}
}

func newLogoutCmd(app *app) *cobra.Command {
	var forget bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "End the account's session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				id := client.Account().ID
				message := "logged out"
				if !client.Logout(ctx) {
					message = "no active session"
				}
				if forget {
					if err := client.ForgetSession(ctx); err != nil {
						return fmt.Errorf("forget session %s: %w", id, err)
					}
					message += ", stored session forgotten"
				}
				return writeResult(cmd, sessionResult{Account: id, Message: message}, func() error {
					return writeLine(cmd, "%s: %s", id, message)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&forget, "forget", false, "Also drop the stored session, including a recorded ban")

	return cmd
}

func newRefreshCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the account's session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				if err := runInteractive(cmd, "Refreshing session...", client.RefreshAuthToken); err != nil {
					return err
				}

				ok, message := client.CheckLoginStatus()
				id := client.Account().ID
				return writeResult(cmd, sessionResult{Account: id, LoggedIn: ok, Message: message}, func() error {
					return writeLine(cmd, "%s: %s", id, message)
				})
			})
		},
	}
}

func newShadowBanCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shadowban",
		Short: "Check whether the account is hidden from the nearby grid at its own location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				var hidden bool
				detect := func(ctx context.Context) error {
					var err error
					hidden, err = client.DetectShadowBan(ctx)
					return err
				}
				if err := runInteractive(cmd, "Checking the nearby grid...", detect); err != nil {
					return err
				}

				id := client.Account().ID
				return writeResult(cmd, map[string]any{"account": id, "shadow_banned": hidden}, func() error {
					if hidden {
						return writeLine(cmd, "%s: own profile is missing from the nearby grid (likely shadow-banned)", id)
					}
					return writeLine(cmd, "%s: own profile is visible in the nearby grid", id)
				})
			})
		},
	}
}

// runInteractive shows a spinner on stderr while work runs, unless output is JSON.
func runInteractive(cmd *cobra.Command, label string, work func(context.Context) error) error {
	if jsonFlag(cmd) {
		return work(cmd.Context())
	}
	return runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), label, work)
}
