package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ferry/internal/config"
	"ferry/internal/queue"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed imports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				records, err := store.ImportRecords(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No imports recorded")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, rec := range records {
					rows = append(rows, []string{
						strconv.FormatInt(rec.QueueItemID, 10),
						rec.DestinationPath,
						dashIfEmpty(rec.Quality),
						humanize.IBytes(uint64(rec.SizeBytes)),
						rec.TransferMode,
						formatTime(rec.ImportedAt),
					})
				}
				fmt.Fprint(out, renderTable(
					[]column{rightCol("Item"), col("Destination"), col("Quality"), rightCol("Size"), col("Mode"), col("Imported")},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records to show (0 for all)")
	return cmd
}
