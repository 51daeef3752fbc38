package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"braid/internal/cache"
	"braid/internal/daemon"
)

// newDaemonCmd creates the daemon command: a foreground watcher that
// keeps the query cache rebuilt as the log changes. Stops cleanly on
// SIGINT/SIGTERM.
func newDaemonCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the workspace and keep the query cache fresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c, err := cache.Open(ctx, app.CachePath())
			if err != nil {
				return err
			}
			defer c.Close()

			if !app.Quiet {
				fmt.Fprintf(app.Out, "Watching %s\n", app.ConfigDir)
			}
			err = daemon.New(app.Journal, c).Run(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown on signal
			}
			return err
		},
	}
	return cmd
}
