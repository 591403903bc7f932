package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/nearby-cli/internal/application"
	"github.com/bnema/nearby-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newProxyCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Manage the account's egress proxies",
	}

	cmd.AddCommand(
		newProxySetCmd(app),
		newProxyListCmd(app),
		newProxyRotateCmd(app),
		newProxyCurrentCmd(app),
		newProxyStatsCmd(app),
	)

	return cmd
}

func newProxySetCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set [proxy-url...]",
		Short: "Replace the proxy list; no arguments means direct egress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, app, func(ctx context.Context, client *application.Client) error {
				if err := client.SetProxies(ctx, args); err != nil {
					return err
				}
				stats := client.GetProxyStats()
				return writeResult(cmd, redactStats(stats), func() error {
					if stats.Total == 0 {
						return writeLine(cmd, "%s: direct egress", client.Account().ID)
					}
					return writeLine(cmd, "%s: %d proxies configured", client.Account().ID, stats.Total)
				})
			})
		},
	}
}

func newProxyListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List proxies with health and cooldown state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(_ context.Context, client *application.Client) error {
				stats := redactStats(client.GetProxyStats())
				return writeResult(cmd, stats.Endpoints, func() error {
					if len(stats.Endpoints) == 0 {
						return writeLine(cmd, "direct (none configured)")
					}
					now := app.now()
					for _, endpoint := range stats.Endpoints {
						marker := " "
						if endpoint.Address == stats.Current {
							marker = "*"
						}
						if err := writeLine(cmd, "%s %s\t%3.0f%%\t%s", marker, endpoint.Address, endpoint.Health*100, endpointState(endpoint, now)); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}

func newProxyRotateCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Skip the current proxy on the next selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(_ context.Context, client *application.Client) error {
				current, _ := client.GetCurrentProxy()
				rotated := client.RotateProxy()
				address := domain.RedactProxyAddress(current.Address)
				return writeResult(cmd, map[string]any{"rotated": rotated, "from": address}, func() error {
					if !rotated {
						return writeLine(cmd, "no other eligible proxy to rotate to")
					}
					return writeLine(cmd, "next selection skips %s", address)
				})
			})
		},
	}
}

func newProxyCurrentCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Show the proxy used most recently",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(_ context.Context, client *application.Client) error {
				current, ok := client.GetCurrentProxy()
				if !ok {
					return writeResult(cmd, nil, func() error {
						return writeLine(cmd, "no proxy selected yet")
					})
				}
				current.Address = domain.RedactProxyAddress(current.Address)
				return writeResult(cmd, current, func() error {
					return writeLine(cmd, "%s\t%3.0f%%\t%s", current.Address, current.Health*100, endpointState(current, app.now()))
				})
			})
		},
	}
}

func newProxyStatsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize proxy pool health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withClient(cmd, app, func(_ context.Context, client *application.Client) error {
				stats := redactStats(client.GetProxyStats())
				return writeResult(cmd, stats, func() error {
					return writeLine(cmd, "total %d, eligible %d, cooling %d, disabled %d, current %s",
						stats.Total, stats.Eligible, stats.Cooling, stats.Disabled, stats.Current)
				})
			})
		},
	}
}

func endpointState(endpoint domain.ProxyEndpoint, now time.Time) string {
	switch {
	case endpoint.Disabled:
		return "disabled"
	case endpoint.InCooldown(now):
		return fmt.Sprintf("cooling until %s", endpoint.CooldownUntil.Format(time.RFC3339))
	default:
		return fmt.Sprintf("ok %d / failed %d", endpoint.Successes, endpoint.Failures)
	}
}
