package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ferry/internal/config"
	"ferry/internal/queue"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Manage wanted library entries",
	}
	libraryCmd.AddCommand(newLibraryAddCommand(ctx))
	libraryCmd.AddCommand(newLibraryListCommand(ctx))
	return libraryCmd
}

func newLibraryAddCommand(ctx *commandContext) *cobra.Command {
	var eventDate string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a wanted library entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			if title == "" {
				return fmt.Errorf("title is required")
			}
			date := strings.TrimSpace(eventDate)
			if date != "" {
				if _, err := time.Parse(time.DateOnly, date); err != nil {
					return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", eventDate)
				}
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				item, err := store.NewLibraryItem(cmd.Context(), title, date)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added library item %d: %s\n", item.ID, item.Title)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&eventDate, "date", "", "Event date (YYYY-MM-DD) used in file names")
	return cmd
}

func newLibraryListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List library entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				items, err := store.ListLibrary(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Library is empty")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.Title,
						dashIfEmpty(item.EventDate),
						string(item.Status),
					})
				}
				fmt.Fprint(out, renderTable(
					[]column{rightCol("ID"), col("Title"), col("Date"), col("Status")},
					rows,
				))
				return nil
			})
		},
	}
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
