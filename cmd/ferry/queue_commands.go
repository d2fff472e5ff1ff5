package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"ferry/internal/config"
	"ferry/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage tracked downloads",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueuePauseCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearFailedCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(listStatuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				fmt.Fprint(out, renderTable(
					[]column{rightCol("ID"), col("Title"), col("Agent"), col("Status"), col("Updated")},
					buildQueueListRows(items),
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by queue status (repeatable)")
	return cmd
}

func buildQueueListRows(items []*queue.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.Title,
			item.AgentName,
			string(item.Status),
			formatTime(item.UpdatedAt),
		})
	}
	return rows
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, raw := range values {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for one queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("queue item %d not found", id)
				}
				record, err := store.ImportRecordForItem(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderItemDetails(item, record))
				return nil
			})
		},
	}
}

func renderItemDetails(item *queue.Item, record *queue.ImportRecord) string {
	var b strings.Builder
	line := func(label, value string) {
		fmt.Fprintf(&b, "%-14s %s\n", label+":", value)
	}
	line("ID", strconv.FormatInt(item.ID, 10))
	line("Title", item.Title)
	line("Library item", strconv.FormatInt(item.LibraryItemID, 10))
	line("Agent", fmt.Sprintf("%s (%s)", item.AgentName, item.AgentHandle))
	line("Status", string(item.Status))
	if item.ErrorMessage != "" {
		line("Error", item.ErrorMessage)
	}
	line("Content", dashIfEmpty(item.ContentPath))
	if !item.Import.Empty() {
		line("Source", item.Import.Source)
		line("Destination", item.Import.Destination)
	}
	if item.LastHeartbeat != nil {
		line("Heartbeat", formatTime(*item.LastHeartbeat))
	}
	line("Added", formatTime(item.AddedAt))
	line("Updated", formatTime(item.UpdatedAt))
	if record != nil {
		line("Imported to", record.DestinationPath)
		line("Quality", dashIfEmpty(record.Quality))
		line("Size", humanize.IBytes(uint64(record.SizeBytes)))
		line("Mode", record.TransferMode)
		line("Imported at", formatTime(record.ImportedAt))
	}
	return b.String()
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	var fromAgent, deleteData bool

	cmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a failed queue item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			if deleteData && !fromAgent {
				return errors.New("--delete-data requires --from-agent")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if fromAgent {
					item, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if item == nil || item.Status != queue.StatusFailed {
						return fmt.Errorf("queue item %d is not failed or does not exist", id)
					}
					if err := newAgentClients(cfg).removeFromAgent(cmd.Context(), item, deleteData); err != nil {
						return err
					}
				}
				removed, err := store.Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("queue item %d is not failed or does not exist", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed queue item %d\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&fromAgent, "from-agent", false, "Also remove the download from its agent")
	cmd.Flags().BoolVar(&deleteData, "delete-data", false, "With --from-agent, delete downloaded data too")
	return cmd
}

func newQueueClearFailedCommand(ctx *commandContext) *cobra.Command {
	var fromAgent, deleteData bool

	cmd := &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove all failed queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deleteData && !fromAgent {
				return errors.New("--delete-data requires --from-agent")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if fromAgent {
					if err := clearFailedFromAgents(cmd.Context(), cmd.ErrOrStderr(), cfg, store, deleteData); err != nil {
						return err
					}
				}
				removed, err := store.ClearFailed(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d failed items\n", removed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&fromAgent, "from-agent", false, "Also remove each download from its agent")
	cmd.Flags().BoolVar(&deleteData, "delete-data", false, "With --from-agent, delete downloaded data too")
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
