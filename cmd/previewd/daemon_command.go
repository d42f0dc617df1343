package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"previewd/internal/daemon"
	"previewd/internal/ipc"
	"previewd/internal/logging"
)

// newDaemonCommand runs the daemon in the foreground until interrupted.
func newDaemonCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the preview generation daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			d := daemon.New(cfg, logger)
			if err := d.Start(ctx); err != nil {
				return err
			}
			defer d.Stop()

			server, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger)
			if err != nil {
				return err
			}
			server.Serve()
			defer server.Close()

			signals := make(chan os.Signal, 1)
			signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(signals)

			select {
			case <-signals:
			case <-ctx.Done():
			}
			return nil
		},
	}
}
