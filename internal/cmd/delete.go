package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"braid/internal/store"
)

// newDeleteCmd creates the delete command. Deletion is an audited log
// event, not a file removal: the tombstone stays in the log with actor
// and reason until compaction folds it away.
func newDeleteCmd(provider *AppProvider) *cobra.Command {
	var (
		reason  string
		cascade bool
	)

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an issue",
		Args:  cobra.ExactArgs(1),
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
			id := args[0]
			if _, err := state.Get(id); err != nil {
				return err
			}

			targets := []string{id}
			children := childrenOf(state, id)
			if len(children) > 0 {
				if !cascade {
					return fmt.Errorf("%s has children (%s); use --cascade to delete them too",
						id, strings.Join(children, ", "))
				}
				targets = append(targets, children...)
			}

			var events []store.Event
			for _, target := range targets {
				event := app.Event(state, target, store.EventDelete)
				event.Reason = reason
				events = append(events, event)
			}
			if err := app.Journal.Append(ctx, events...); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{"deleted": targets})
			}
			fmt.Fprintf(app.Out, "Deleted %s\n", strings.Join(targets, ", "))
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why the issue is being deleted")
	cmd.Flags().BoolVar(&cascade, "cascade", false, "Also delete hierarchical children")

	return cmd
}

// childrenOf returns all transitive hierarchy descendants of id, sorted.
func childrenOf(state *store.State, id string) []string {
	var out []string
	var walk func(parent string)
	walk = func(parent string) {
		for childID, issue := range state.Issues {
			if issue.ParentID == parent {
				out = append(out, childID)
				walk(childID)
			}
		}
	}
	walk(id)
	sort.Strings(out)
	return out
}
