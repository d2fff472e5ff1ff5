package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ferry/internal/agent"
	"ferry/internal/logging"
	"ferry/internal/preflight"
)

func newAgentsCommand(ctx *commandContext) *cobra.Command {
	agentsCmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect configured fetch agents",
	}
	agentsCmd.AddCommand(newAgentsTestCommand(ctx))
	return agentsCmd
}

func newAgentsTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that every configured agent is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cfg.Agents) == 0 {
				fmt.Fprintln(out, "No agents configured")
				return nil
			}
			status := newStatusWriter(out)
			failures := 0
			for _, agentCfg := range cfg.Agents {
				client, err := agent.New(agentCfg, logging.NewNop())
				if err != nil {
					failures++
					status.line(agentCfg.Name, false, err.Error())
					continue
				}
				result := preflight.CheckAgent(cmd.Context(), client)
				if !result.Passed {
					failures++
				}
				status.line(result.Name, result.Passed, result.Detail)
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d agents failed", failures, len(cfg.Agents))
			}
			return nil
		},
	}
}
