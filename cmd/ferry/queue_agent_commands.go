package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"ferry/internal/agent"
	"ferry/internal/config"
	"ferry/internal/logging"
	"ferry/internal/queue"
)

// agentClients builds at most one client per configured agent name.
type agentClients struct {
	cfg     *config.Config
	clients map[string]agent.Client
}

func newAgentClients(cfg *config.Config) *agentClients {
	return &agentClients{cfg: cfg, clients: make(map[string]agent.Client)}
}

func (a *agentClients) get(name string) (agent.Client, error) {
	if client, ok := a.clients[name]; ok {
		return client, nil
	}
	agentCfg, ok := a.cfg.AgentByName(name)
	if !ok {
		return nil, fmt.Errorf("agent %q is not configured", name)
	}
	client, err := agent.New(agentCfg, logging.NewNop())
	if err != nil {
		return nil, err
	}
	a.clients[name] = client
	return client, nil
}

// removeFromAgent asks the item's agent to drop its download.
func (a *agentClients) removeFromAgent(ctx context.Context, item *queue.Item, deleteData bool) error {
	client, err := a.get(item.AgentName)
	if err != nil {
		return err
	}
	if !client.Remove(ctx, item.AgentHandle, deleteData) {
		return fmt.Errorf("agent %s did not remove %s", item.AgentName, item.AgentHandle)
	}
	return nil
}

func parseItemID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item id %q", raw)
	}
	return id, nil
}

func newQueuePauseCommand(ctx *commandContext) *cobra.Command {
	return newQueueAgentToggleCommand(ctx, "pause", "Pause a download on its agent", queue.StatusPaused,
		func(c agent.Client) func(context.Context, string) bool { return c.Pause })
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return newQueueAgentToggleCommand(ctx, "resume", "Resume a paused download on its agent", queue.StatusDownloading,
		func(c agent.Client) func(context.Context, string) bool { return c.Resume })
}

// newQueueAgentToggleCommand sends pause or resume to the item's agent and
// records the new status when the state machine allows it. Otherwise the next
// poll picks the change up.
func newQueueAgentToggleCommand(ctx *commandContext, verb, short string, to queue.Status, action func(agent.Client) func(context.Context, string) bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				item, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if item == nil {
					return fmt.Errorf("queue item %d not found", id)
				}
				if !slices.Contains(queue.ActiveStatuses, item.Status) {
					return fmt.Errorf("queue item %d is %s; only queued, downloading or paused items can %s", id, item.Status, verb)
				}
				client, err := newAgentClients(cfg).get(item.AgentName)
				if err != nil {
					return err
				}
				if !action(client)(cmd.Context(), item.AgentHandle) {
					return fmt.Errorf("agent %s did not %s %s", item.AgentName, verb, item.AgentHandle)
				}
				if queue.CanTransition(item.Status, to) {
					if _, err := store.Transition(cmd.Context(), id, item.Status, to, ""); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %s for item %d to %s\n", verb, id, item.AgentName)
				return nil
			})
		},
	}
}

// clearFailedFromAgents removes every failed item's download from its agent.
// Failures are reported on w and do not stop the rest.
func clearFailedFromAgents(ctx context.Context, w io.Writer, cfg *config.Config, store *queue.Store, deleteData bool) error {
	items, err := store.List(ctx, queue.StatusFailed)
	if err != nil {
		return err
	}
	clients := newAgentClients(cfg)
	for _, item := range items {
		if err := clients.removeFromAgent(ctx, item, deleteData); err != nil {
			fmt.Fprintf(w, "Warning: item %d: %v\n", item.ID, err)
		}
	}
	return nil
}
