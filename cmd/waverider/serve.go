package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/marmos91/waverider/internal/logger"
	"github.com/marmos91/waverider/pkg/config"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the content HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	metricsResult := config.InitializeMetrics(cfg)

	b, err := openBackend(ctx, cfg, metricsResult.ContentMetrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("%v", err)
		}
	}()

	serverID, err := b.mgr.Prepare(ctx)
	if err != nil {
		return err
	}
	logger.Info("waverider %s starting (revisions=%d, archive=%t)",
		serverID, cfg.Content.Revisions, cfg.Archive.Enabled)

	if collector := config.CreateCollector(&cfg.Store, b.store); collector != nil {
		gcCtx, stopGC := context.WithCancel(ctx)
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.Run(gcCtx)
		}()
		// Stop and wait before the deferred Close releases the store
		defer wg.Wait()
		defer stopGC()
	}

	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	srv := config.CreateServer(cfg, b.mgr, metricsResult)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
