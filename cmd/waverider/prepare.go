package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPrepareDBCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare-db",
		Short: "Seed the namespace registry and server id",
		Long: `prepare-db records the key namespaces and assigns this installation a
random server id. It is idempotent: an existing server id is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}

			b, err := openBackend(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			serverID, err := b.mgr.Prepare(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "DB has been prepared (server id %s)\n", serverID)
			return nil
		},
	}
}
