package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	cmd.AddCommand(
		newAccountAddCmd(app),
		newAccountListCmd(app),
		newAccountRemoveCmd(app),
	)

	return cmd
}

func newAccountAddCmd(app *app) *cobra.Command {
	var (
		name          string
		username      string
		thirdPartyID  string
		passwordStdin bool
		proxies       []string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an account or update an existing one",
		Long:  "Add an account or update an existing one. --account picks the ID; empty or 0 assigns the next number. The password is kept in the secret store.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			id, err := resolveNewAccountID(ctx, app.accounts, accountFlag(cmd))
			if err != nil {
				return err
			}

			password := ""
			if passwordStdin {
				if password, err = readSecretLine(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("read password: %w", err)
				}
			}

			account, err := app.accounts.AddAccount(ctx, application.AddAccountCommand{
				ID:               id,
				Name:             name,
				Username:         username,
				ThirdPartyUserID: thirdPartyID,
				Password:         password,
				Proxies:          proxies,
			})
			if err != nil {
				return err
			}

			return writeResult(cmd, redactAccount(account), func() error {
				return writeLine(cmd, "saved account %s (%s)", account.ID, sanitizeForTerminal(account.Username))
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name for the account")
	cmd.Flags().StringVar(&username, "username", "", "Platform username (required for new accounts)")
	cmd.Flags().StringVar(&thirdPartyID, "third-party-id", "", "Third-party user ID for accounts without a password")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the account password from stdin")
	cmd.Flags().StringSliceVar(&proxies, "proxy", nil, "Egress proxy URL (repeatable)")

	return cmd
}

func newAccountListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := app.accounts.List(cmd.Context())
			if err != nil {
				return err
			}

			if jsonFlag(cmd) {
				redacted := make([]domain.Account, len(accounts))
				for i, account := range accounts {
					redacted[i] = redactAccount(account)
				}
				return writeJSON(cmd, redacted)
			}

			for _, account := range accounts {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\tproxies=%d\n",
					account.ID, sanitizeForTerminal(account.DisplayName()), valueOrDash(account.Username), len(account.Proxies))
			}

			return nil
		},
	}
}

func newAccountRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Remove an account and its stored password and session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := strings.TrimSpace(accountFlag(cmd))
			if id == "" {
				return fmt.Errorf("--account is required")
			}
			if err := app.accounts.RemoveAccount(cmd.Context(), domain.AccountID(id)); err != nil {
				return err
			}
			return writeLine(cmd, "removed account %s", id)
		},
	}
}

func redactAccount(account domain.Account) domain.Account {
	account.Proxies = redactAddresses(account.Proxies)
	return account
}

func readSecretLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	secret := strings.TrimRight(line, "\r\n")
	if secret == "" {
		return "", fmt.Errorf("empty input")
	}
	return secret, nil
}
