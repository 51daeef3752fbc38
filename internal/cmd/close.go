package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"braid/internal/graph"
	"braid/internal/store"
)

// newCloseCmd creates the close command.
func newCloseCmd(provider *AppProvider) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "close <id>...",
		Short: "Close one or more issues",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			state, err := app.LoadState(ctx)
			if err != nil {
				return err
			}

			var events []store.Event
			for _, id := range args {
				issue, err := state.Get(id)
				if err != nil {
					return err
				}
				if issue.Status == store.StatusClosed {
					fmt.Fprintf(app.Err, "%s\n", app.WarnColor(id+" is already closed"))
					continue
				}
				event := app.Event(state, id, store.EventClose)
				event.Reason = reason
				events = append(events, event)
				issue.Status = store.StatusClosed
			}
			if len(events) == 0 {
				return nil
			}
			if err := app.Journal.Append(ctx, events...); err != nil {
				return err
			}

			// Closing a blocker may unblock its dependents; report the
			// issues that just became ready.
			var unblocked []string
			for _, id := range args {
				issue, ok := state.Issues[id]
				if !ok {
					continue
				}
				for _, depID := range issue.DependentIDs(nil) {
					dependent, ok := state.Issues[depID]
					if ok && graph.IsReady(state, dependent) && !contains(unblocked, depID) {
						unblocked = append(unblocked, depID)
					}
				}
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{
					"closed":    args,
					"unblocked": unblocked,
				})
			}
			fmt.Fprintf(app.Out, "%s\n", app.SuccessColor("Closed "+strings.Join(args, ", ")))
			if len(unblocked) > 0 {
				fmt.Fprintf(app.Out, "Now ready: %s\n", strings.Join(unblocked, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "done", "Close reason")

	return cmd
}

// newReopenCmd creates the reopen command.
func newReopenCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reopen <id>...",
		Short: "Reopen closed issues",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			state, err := app.LoadState(ctx)
			if err != nil {
				return err
			}

			var events []store.Event
			for _, id := range args {
				issue, err := state.Get(id)
				if err != nil {
					return err
				}
				if issue.Status != store.StatusClosed {
					fmt.Fprintf(app.Err, "%s\n", app.WarnColor(id+" is not closed"))
					continue
				}
				events = append(events, app.Event(state, id, store.EventReopen))
			}
			if len(events) == 0 {
				return nil
			}
			if err := app.Journal.Append(ctx, events...); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{"reopened": args})
			}
			fmt.Fprintf(app.Out, "Reopened %s\n", strings.Join(args, ", "))
			return nil
		},
	}
	return cmd
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
