package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/spf13/cobra"
)

func accountFlag(cmd *cobra.Command) string {
	value, _ := cmd.Flags().GetString(flagAccount)
	return value
}

func jsonFlag(cmd *cobra.Command) bool {
	value, _ := cmd.Flags().GetBool(flagJSON)
	return value
}

// withClient runs fn against the selected account and saves that account's state afterwards.
func withClient(cmd *cobra.Command, app *app, fn func(context.Context, *application.Client) error) (err error) {
	ctx := cmd.Context()
	client, err := app.client(ctx, accountFlag(cmd))
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, app.close(ctx))
	}()

	return fn(ctx, client)
}

func writeJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func writeLine(cmd *cobra.Command, format string, args ...any) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
	return err
}

// writeResult prints value as JSON or through text, depending on --json.
func writeResult(cmd *cobra.Command, value any, text func() error) error {
	if jsonFlag(cmd) {
		return writeJSON(cmd, value)
	}
	return text()
}

func parseProfileID(raw string) (domain.ProfileID, error) {
	var id int64
	if _, err := fmt.Sscan(strings.TrimSpace(raw), &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid profile id %q", raw)
	}
	return domain.ProfileID(id), nil
}

func sanitizeForTerminal(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}

func valueOrDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return sanitizeForTerminal(value)
}
