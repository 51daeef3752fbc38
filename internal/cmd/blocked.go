package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/graph"
)

// newBlockedCmd creates the blocked command: open issues waiting on at
// least one open blocks-type dependency.
func newBlockedCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocked",
		Short: "List issues blocked by open dependencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			blocked, blockers, ok := blockedFromCache(ctx, app)
			if !ok {
				state, err := app.LoadState(ctx)
				if err != nil {
					return err
				}
				refreshCache(ctx, app, state)
				blocked = graph.ComputeBlocked(state, nil)
				blockers = make(map[string][]string, len(blocked))
				for _, issue := range blocked {
					blockers[issue.ID] = graph.OpenBlockers(state, issue)
				}
			}

			if app.JSON {
				type blockedJSON struct {
					IssueJSON
					BlockedBy []string `json:"blocked_by"`
				}
				out := make([]blockedJSON, 0, len(blocked))
				for _, issue := range blocked {
					out = append(out, blockedJSON{
						IssueJSON: ToIssueJSON(issue, false),
						BlockedBy: blockers[issue.ID],
					})
				}
				return json.NewEncoder(app.Out).Encode(out)
			}

			if len(blocked) == 0 {
				fmt.Fprintln(app.Out, "No blocked issues")
				return nil
			}
			for _, issue := range blocked {
				fmt.Fprintf(app.Out, "%s [%s] %s (blocked by %d)\n",
					issue.ID, issue.Priority.Display(), issue.Title, len(blockers[issue.ID]))
			}
			return nil
		},
	}
	return cmd
}
