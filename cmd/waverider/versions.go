package main

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

func newVersionsCmd(flags *rootFlags) *cobra.Command {
	var withMeta bool

	cmd := &cobra.Command{
		Use:   "versions <key>",
		Short: "List the revisions of a key, most recent first",
		Example: `  waverider versions example.com:/index.html
  waverider versions --meta example.com:/index.html`,
		Args:    cobra.ExactArgs(1),
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

			ids, err := b.mgr.GetAllVersions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range ids {
				meta, found, err := b.mgr.GetMeta(cmd.Context(), id.String())
				if err != nil {
					return err
				}
				if !found {
					fmt.Fprintf(out, "%s\t(missing meta)\n", id)
					continue
				}
				if withMeta {
					fmt.Fprintf(out, "%s\t%s\n", id, formatFields(meta.Fields()))
					continue
				}
				fmt.Fprintf(out, "%s\t%s\t%d\t%s\t%s\n",
					id, meta.Type, meta.Len, meta.Digest, meta.Mtime.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&withMeta, "meta", false, "Print every stored meta field, extension fields included")
	return cmd
}

// formatFields renders a field map as tab-separated name=value pairs in
// name order.
func formatFields(fields map[string]string) string {
	pairs := make([]string, 0, len(fields))
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		pairs = append(pairs, name+"="+fields[name])
	}
	return strings.Join(pairs, "\t")
}

func newPurgeCmd(flags *rootFlags) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "purge <key>",
		Short: "Remove revisions of a key past the retention",
		Args:  cobra.ExactArgs(1),
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

			if !cmd.Flags().Changed("keep") {
				keep = cfg.Content.Revisions
			}
			if keep < 1 {
				return fmt.Errorf("nothing to purge: keep must be at least 1 (retention is unlimited)")
			}

			pruned, err := b.mgr.PurgeVersions(cmd.Context(), args[0], keep)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d revision(s) of %s\n", pruned, args[0])
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "Revisions to keep (default: content.revisions)")
	return cmd
}
