package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gezibash/arc-node/internal/discoverystore/physical"
	_ "github.com/gezibash/arc-node/internal/discoverystore/physical/badger"
	_ "github.com/gezibash/arc-node/internal/discoverystore/physical/memory"
	_ "github.com/gezibash/arc-node/internal/discoverystore/physical/redis"
	_ "github.com/gezibash/arc-node/internal/discoverystore/physical/sqlite"
)

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List available discovery cache backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range physical.ListBackends() {
				fmt.Fprintln(cmd.OutOrStdout(), name)

				defaults := physical.GetDefaults(name)
				keys := make([]string, 0, len(defaults))
				for k := range defaults {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s = %q\n", k, defaults[k])
				}
			}
			return nil
		},
	}
}
