package cmd

import (
	"errors"
	"fmt"

	statusadapter "github.com/bnema/nearby-cli/internal/adapters/render/status"
	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session, proxy and connection status",
		Long:  "Show session, proxy and connection status for the selected account, or for every account when --account is not set.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if app.apiErr != nil {
				return app.apiErr
			}
			ctx := cmd.Context()
			defer func() {
				err = errors.Join(err, app.close(ctx))
			}()

			statuses, err := loadStatuses(cmd, app)
			if err != nil {
				return err
			}
			return writeStatusesOutput(cmd, app, statuses)
		},
	}
}

func loadStatuses(cmd *cobra.Command, app *app) ([]application.AccountStatus, error) {
	accountID := accountFlag(cmd)
	if accountID == "" {
		return app.registry.Statuses(cmd.Context())
	}

	client, err := app.registry.Client(cmd.Context(), domain.AccountID(accountID))
	if err != nil {
		return nil, err
	}
	return []application.AccountStatus{client.Status()}, nil
}

func writeStatusesOutput(cmd *cobra.Command, app *app, statuses []application.AccountStatus) error {
	if jsonFlag(cmd) {
		redacted := make([]application.AccountStatus, len(statuses))
		for i, status := range statuses {
			redacted[i] = redactStatus(status)
		}
		return writeJSON(cmd, redacted)
	}

	rendered, err := app.statusRenderer(statuses, statusadapter.RenderOptions{Now: app.now()})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

// redactStatus strips proxy credentials before a status leaves the process.
func redactStatus(status application.AccountStatus) application.AccountStatus {
	status.Account.Proxies = redactAddresses(status.Account.Proxies)
	status.Proxies = redactStats(status.Proxies)
	return status
}

func redactStats(stats domain.ProxyStats) domain.ProxyStats {
	stats.Current = domain.RedactProxyAddress(stats.Current)
	endpoints := make([]domain.ProxyEndpoint, len(stats.Endpoints))
	for i, endpoint := range stats.Endpoints {
		endpoint.Address = domain.RedactProxyAddress(endpoint.Address)
		endpoints[i] = endpoint
	}
	stats.Endpoints = endpoints
	return stats
}

func redactAddresses(addresses []string) []string {
	if addresses == nil {
		return nil
	}
	redacted := make([]string, len(addresses))
	for i, address := range addresses {
		redacted[i] = domain.RedactProxyAddress(address)
	}
	return redacted
}
