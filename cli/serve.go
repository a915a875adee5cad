package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync scheduler until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			app, err := buildApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer app.close()

			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				sig := <-sigCh
				app.logger.Info("shutting down", "signal", sig.String())
				cancel()
			}()

			if err := app.sched.Start(ctx); err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
}
