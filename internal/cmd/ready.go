package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/graph"
	"braid/internal/store"
)

// newReadyCmd creates the ready command: open issues with no open
// blocks-type dependency, highest priority first.
func newReadyCmd(provider *AppProvider) *cobra.Command {
	var (
		assignee string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "ready",
		Short: "List issues that are ready to work on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			filter := &store.ListFilter{}
			if assignee != "" {
				filter.Assignee = &assignee
			}
			ready, ok := readyFromCache(ctx, app, filter)
			if !ok {
				state, err := app.LoadState(ctx)
				if err != nil {
					return err
				}
				refreshCache(ctx, app, state)
				ready = graph.ComputeReady(state, filter)
			}
			if limit > 0 && len(ready) > limit {
				ready = ready[:limit]
			}

			if app.JSON {
				out := make([]IssueJSON, 0, len(ready))
				for _, issue := range ready {
					out = append(out, ToIssueJSON(issue, false))
				}
				return json.NewEncoder(app.Out).Encode(out)
			}

			if len(ready) == 0 {
				fmt.Fprintln(app.Out, "No issues ready")
				return nil
			}
			for _, issue := range ready {
				fmt.Fprintf(app.Out, "%s [%s] %s\n", issue.ID, issue.Priority.Display(), issue.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Only issues assigned to this user")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of issues to show")

	return cmd
}
