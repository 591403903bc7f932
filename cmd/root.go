package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/nearby-cli/internal/platform/logging"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const (
	flagAccount     = "account"
	flagJSON        = "json"
	flagLogLevel    = "log-level"
	flagMetricsAddr = "metrics-addr"
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "nearby",
		Short:         "Nearby CLI: drive platform accounts through proxy pools",
		Long:          "nearby manages platform accounts, their sessions and egress proxies, and runs profile, discovery, messaging and bulk operations with retries and ban detection.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().String(flagAccount, "", "Account ID (defaults to the only configured account)")
	rootCmd.PersistentFlags().Bool(flagJSON, false, "Render output as JSON")
	rootCmd.PersistentFlags().String(flagLogLevel, "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String(flagMetricsAddr, "", "Serve Prometheus metrics on this address while the command runs")

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	var metricsServer *http.Server
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if raw, _ := cmd.Flags().GetString(flagLogLevel); raw != "" {
			level, err := logging.ParseLevel(raw)
			if err != nil {
				return err
			}
			app.logLevel.Set(level)
		}

		addr, _ := cmd.Flags().GetString(flagMetricsAddr)
		if addr == "" {
			addr = app.cfg.MetricsAddr
		}
		if addr == "" {
			return nil
		}
		server, err := startMetricsServer(app, addr)
		if err != nil {
			return err
		}
		metricsServer = server
		return nil
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, _ []string) error {
		if metricsServer == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 2*time.Second)
		defer cancel()
		return metricsServer.Shutdown(ctx)
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newAccountCmd(app),
		newLoginCmd(app),
		newLogoutCmd(app),
		newRefreshCmd(app),
		newStatusCmd(app),
		newShadowBanCmd(app),
		newProxyCmd(app),
		newDiscoverCmd(app),
		newLocationCmd(app),
		newMessageCmd(app),
		newTapCmd(app),
		newFavoriteCmd(app),
		newProfileCmd(app),
		newSettingsCmd(app),
		newRewardedCmd(app),
	)

	return rootCmd
}

func startMetricsServer(app *app, addr string) (*http.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.metrics, promhttp.HandlerOpts{Registry: app.metrics}))
	server := &http.Server{Addr: listener.Addr().String(), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Warn("metrics server stopped", "error", err)
		}
	}()
	app.logger.Info("serving metrics", "addr", server.Addr)
	return server, nil
}
