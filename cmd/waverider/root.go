package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/waverider/internal/logger"
	"github.com/marmos91/waverider/pkg/archive"
	"github.com/marmos91/waverider/pkg/config"
	"github.com/marmos91/waverider/pkg/content"
	"github.com/marmos91/waverider/pkg/kv"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "waverider",
		Short: "Versioned content store",
		Long: `waverider stores every write of a key as a new compressed revision,
serves the current revision over HTTP and prunes old revisions past the
configured retention.

Configuration is read from --config, or $XDG_CONFIG_HOME/waverider/config.yaml,
and can be overridden with WAVERIDER_* environment variables.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR); overrides the config")

	root.AddCommand(
		newServeCmd(flags),
		newPrepareDBCmd(flags),
		newInitCmd(),
		newVersionsCmd(flags),
		newPurgeCmd(flags),
	)
	return root
}

// loadConfig loads the configuration and applies it to the logger.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return nil, err
	}
	return cfg, nil
}

// backend is an opened store with its manager and archiver.
type backend struct {
	store    kv.Store
	archiver archive.Archiver
	mgr      *content.Manager
}

// openBackend opens the configured store and builds a manager over it.
// contentMetrics may be nil.
func openBackend(ctx context.Context, cfg *config.Config, contentMetrics content.Metrics) (*backend, error) {
	store, err := config.CreateStore(ctx, &cfg.Store)
	if err != nil {
		return nil, err
	}

	archiver, err := config.CreateArchiver(ctx, &cfg.Archive)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	mgr, err := config.CreateManager(cfg, store, archiver, contentMetrics)
	if err != nil {
		if archiver != nil {
			_ = archiver.Close()
		}
		_ = store.Close()
		return nil, err
	}

	return &backend{store: store, archiver: archiver, mgr: mgr}, nil
}

// Close releases manager, archiver and store, in that order.
func (b *backend) Close() error {
	errs := []error{b.mgr.Close()}
	if b.archiver != nil {
		errs = append(errs, b.archiver.Close())
	}
	errs = append(errs, b.store.Close())
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to close backend: %w", err)
	}
	return nil
}
