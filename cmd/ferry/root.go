package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := newCommandContext(&configFlag)

	root := &cobra.Command{
		Use:           "ferry",
		Short:         "Move finished downloads into the media library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	root.AddGroup(
		&cobra.Group{ID: "pipeline", Title: "Pipeline:"},
		&cobra.Group{ID: "inspect", Title: "Inspection:"},
	)
	for group, cmds := range map[string][]*cobra.Command{
		"pipeline": {newRunCommand(ctx), newLibraryCommand(ctx), newGrabCommand(ctx), newQueueCommand(ctx)},
		"inspect":  {newHistoryCommand(ctx), newAgentsCommand(ctx), newRootsCommand(ctx), newLogsCommand(ctx)},
	} {
		for _, cmd := range cmds {
			cmd.GroupID = group
			root.AddCommand(cmd)
		}
	}
	root.AddCommand(newConfigCommand(ctx), newTestNotifyCommand(ctx))
	return root
}
