package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ferry/internal/config"
	"ferry/internal/daemon"
	"ferry/internal/importer"
	"ferry/internal/logging"
	"ferry/internal/queue"
	"ferry/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the import daemon in the foreground",
		Long: "Run the import daemon in the foreground. SIGHUP reloads the configuration file; " +
			"SIGINT or SIGTERM stops polling and waits for running imports to finish.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if cmdCtx == nil {
		cmdCtx = context.Background()
	}
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	holder := config.NewHolder(ctx.configPath, cfg)
	im := importer.New(holder, store, logger)
	mgr := workflow.NewManager(holder, store, im, logger)

	d, err := daemon.New(holder, store, logger, im, mgr)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-signalCtx.Done():
			logger.Info("ferry daemon shutting down")
			return nil
		case <-hup:
			if err := d.Reload(); err != nil {
				logging.WarnWithContext(logger, "configuration reload failed", "config_reload_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "run `ferry config validate` and send SIGHUP again"),
					logging.String(logging.FieldImpact, "daemon keeps running with the previous configuration"),
				)
			}
		}
	}
}
