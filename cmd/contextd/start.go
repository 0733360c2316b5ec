// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Contextd Contributors

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/contextd-dev/contextd/internal/config"
	cerr "github.com/contextd-dev/contextd/pkg/errors"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the contextd gateway",
		Long:  "Load configuration, open storage, and serve the retrieval API until interrupted.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	logger := newLogger(viper.GetBool("verbose"))

	gw, err := WireGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := gw.Close(); err != nil {
			logger.Error("closing storage", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting contextd",
		"listen", cfg.Server.Listen,
		"backend", cfg.Storage.Backend,
		"dimension", cfg.Embedding.Dimension)

	if err := gw.Server.Start(ctx); err != nil {
		return cerr.Wrap(err, cerr.CodeServerStartFailure, "serving")
	}

	logger.Info("contextd stopped")
	return nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
