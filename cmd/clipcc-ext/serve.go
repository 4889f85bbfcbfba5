// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClipCC Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Menersar/clipcc-extension/internal/extension"
	"github.com/Menersar/clipcc-extension/internal/logging"
	"github.com/Menersar/clipcc-extension/internal/observability"
	"github.com/Menersar/clipcc-extension/pkg/errutil"
)

// defaultMetricsAddr is where the observability server listens unless
// configured otherwise.
const defaultMetricsAddr = "127.0.0.1:9400"

// shutdownTimeout bounds graceful teardown on exit.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var load []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the extension host process",
		Long: `Run the extension host: discover extensions, load the requested set
(with transitive dependencies), expose metrics and health endpoints,
and unload everything on shutdown.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, load)
		},
	}

	cmd.Flags().StringSliceVar(&load, "load", nil, "extension ids to load at startup")
	cmd.Flags().String("metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	addConfigFlags(cmd)
	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, load []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.Setup("clipcc-ext", version, cfg.LogFormat, cfg.LogLevel, nil)
	slog.SetDefault(logger)

	logger.Info("starting extension host",
		"extensions_dir", cfg.ExtensionsDir,
		"metrics_addr", cfg.MetricsAddr,
	)

	var ready atomic.Bool
	var obs *observability.Server
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obs = observability.NewServer(cfg.MetricsAddr, ready.Load)
		metrics = obs.Metrics()
		if _, err := obs.Start(); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := obs.Stop(stopCtx); err != nil {
				errutil.LogError(logger, "failed to stop observability server", err)
			}
		}()
	}

	mgr := extension.NewManager(
		extension.WithLogger(logger),
		extension.WithMetrics(metrics),
		extension.WithLoader(func(_ context.Context, id string) error {
			// External extensions have no structured surface; the host
			// records the load and leaves the effects to the embedder.
			logger.Info("host-loaded external extension", "extension", id)
			return nil
		}),
	)

	found, err := extension.Discover(cfg.ExtensionsDir, logger)
	if err != nil {
		return err
	}
	if err := registerDiscovered(mgr, found, logger); err != nil {
		return err
	}
	logger.Info("registered extensions", "count", len(mgr.Registry().KnownIDs()))

	if len(load) > 0 {
		plan, err := mgr.Load(ctx, load...)
		if err != nil {
			errutil.LogError(logger, "startup load failed", err)
			return err
		}
		logger.Info("startup load complete", "steps", len(plan))
	}

	ready.Store(true)

	// Block until interrupted.
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	ready.Store(false)
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if active := mgr.ActiveIDs(); len(active) > 0 {
		if _, err := mgr.Unload(shutdownCtx, active...); err != nil {
			errutil.LogError(logger, "shutdown unload failed", err)
		}
	}

	return nil
}
