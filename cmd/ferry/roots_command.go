package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ferry/internal/config"
	"ferry/internal/logging"
	"ferry/internal/queue"
	"ferry/internal/rootfolder"
)

func newRootsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "roots",
		Short: "Measure library roots and show their free space",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				selector := rootfolder.NewSelector(store, logging.NewNop())
				locations := selector.Measure(cmd.Context(), cfg.Media.Roots)
				minFree := cfg.Media.MinFreeSpaceBytes()
				rows := make([][]string, 0, len(locations))
				for _, loc := range locations {
					free := "-"
					if loc.Reachable {
						free = humanize.IBytes(loc.FreeBytes)
					}
					rows = append(rows, []string{
						loc.Path,
						yesNo(loc.Reachable),
						free,
						yesNo(loc.Reachable && loc.FreeBytes > minFree),
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]column{col("Root"), col("Reachable"), rightCol("Free"), col("Above minimum")},
					rows,
				))
				return nil
			})
		},
	}
}
