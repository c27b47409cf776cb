package main

import (
	"context"
	"log/slog"

	"github.com/JonMunkholm/orderingest/internal/core"
	"github.com/JonMunkholm/orderingest/internal/logging"
	"github.com/JonMunkholm/orderingest/internal/store"
	"github.com/JonMunkholm/orderingest/internal/web"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP intake server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe serves until ctx is cancelled, then drains running batches
// within the configured shutdown timeout.
func runServe(ctx context.Context) error {
	cfg, err := loadConfig("", "")
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		return err
	}
	defer st.Close()
	slog.Info("connected to database", "driver", cfg.Database.Driver)

	limiter := core.NewBatchLimiter(cfg.Ingest.MaxConcurrent, cfg.Ingest.MaxWaitTime)
	server := web.NewServer(core.NewIngester(st, cfg.Ingest.Workers), limiter, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("batches did not finish before shutdown timeout", "error", err)
			return err
		}
		slog.Info("server stopped")
		return nil
	})

	return g.Wait()
}
