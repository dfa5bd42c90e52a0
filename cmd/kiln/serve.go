// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kiln Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiln-dev/kiln/internal/config"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the kiln gateway",
		Long:  "Load configuration, wire the provider catalog, breakers, metrics, and orchestrator, and serve the admin HTTP API until interrupted.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile := viper.ConfigFileUsed()
	if cfgFile != "" {
		config.WarnInsecurePermissions(cfgFile)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := WireGateway(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	if gw.Snapshots != nil {
		go snapshotLoop(ctx, gw, cfg.Metrics.Snapshot.Interval, log)
	}

	log.Info("starting kiln gateway",
		"listen", cfg.Server.Listen,
		"providers", len(gw.Registry.Descriptors()),
		"config", cfgFile)

	return gw.Server.Start(ctx)
}

// snapshotLoop periodically persists the aggregated metrics report.
func snapshotLoop(ctx context.Context, gw *Gateway, interval time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := gw.Snapshots.Save(ctx, now, gw.Metrics.Report()); err != nil {
				log.Warn("metrics snapshot failed", "error", err)
			}
		}
	}
}
