package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ferry/internal/agent"
	"ferry/internal/config"
	"ferry/internal/logging"
	"ferry/internal/queue"
)

func newGrabCommand(ctx *commandContext) *cobra.Command {
	var agentName string
	var category string

	cmd := &cobra.Command{
		Use:   "grab <library-id> <uri>",
		Short: "Hand a download to a fetch agent and track it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			libraryID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid library id %q", args[0])
			}
			uri := strings.TrimSpace(args[1])
			if uri == "" {
				return errors.New("uri is required")
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				lib, err := store.LibraryItem(cmd.Context(), libraryID)
				if err != nil {
					return err
				}
				if lib == nil {
					return fmt.Errorf("library item %d not found", libraryID)
				}

				agentCfg, err := pickAgent(cfg, agentName)
				if err != nil {
					return err
				}
				client, err := agent.New(agentCfg, logging.NewNop())
				if err != nil {
					return err
				}
				cat := strings.TrimSpace(category)
				if cat == "" {
					cat = agentCfg.Category
				}
				handle := client.Enqueue(cmd.Context(), uri, cat)
				if handle == "" {
					return fmt.Errorf("agent %s did not accept the download", agentCfg.Name)
				}

				item, err := store.NewItem(cmd.Context(), queue.NewItemParams{
					LibraryItemID: lib.ID,
					Title:         lib.Title,
					AgentName:     agentCfg.Name,
					AgentHandle:   handle,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued item %d on %s (handle %s)\n", item.ID, agentCfg.Name, handle)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&agentName, "agent", "", "Agent name (defaults to the only configured agent)")
	cmd.Flags().StringVar(&category, "category", "", "Agent category or label (defaults to the agent's category)")
	return cmd
}

func pickAgent(cfg *config.Config, name string) (config.Agent, error) {
	name = strings.TrimSpace(name)
	if name != "" {
		a, ok := cfg.AgentByName(name)
		if !ok {
			return config.Agent{}, fmt.Errorf("agent %q is not configured", name)
		}
		return a, nil
	}
	switch len(cfg.Agents) {
	case 0:
		return config.Agent{}, errors.New("no agents configured")
	case 1:
		return cfg.Agents[0], nil
	default:
		return config.Agent{}, errors.New("multiple agents configured; pass --agent")
	}
}
