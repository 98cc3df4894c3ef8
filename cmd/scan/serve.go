package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/scanline/internal/config"
	"github.com/alfredjeanlab/scanline/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the scanner daemon",
	GroupID: "system",
	// Override PersistentPreRunE so we don't create a client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
		slog.SetDefault(logger)

		profile, err := config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		d, err := newDaemon(ctx, cfg, profile, logger, cmd.OutOrStdout(), ui.ShouldUseColor())
		if err != nil {
			return err
		}

		grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			_ = d.publisher.Close()
			return fmt.Errorf("listening on %s: %w", cfg.GRPCAddr, err)
		}
		httpLis, err := net.Listen("tcp", cfg.HTTPAddr)
		if err != nil {
			grpcLis.Close()
			_ = d.publisher.Close()
			return fmt.Errorf("listening on %s: %w", cfg.HTTPAddr, err)
		}

		logger.Info("scanline daemon started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
			"autostart", cfg.Autostart,
		)
		return d.run(ctx, httpLis, grpcLis)
	},
}
