package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"braid/internal/graph"
)

// newShowCmd creates the show command.
func newShowCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show full details of an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			state, err := app.LoadState(cmd.Context())
			if err != nil {
				return err
			}
			issue, err := state.Get(args[0])
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(ToIssueJSON(issue, true))
			}

			fmt.Fprintf(app.Out, "%s: %s\n", issue.ID, issue.Title)
			fmt.Fprintf(app.Out, "  status:   %s\n", issue.Status)
			fmt.Fprintf(app.Out, "  priority: %s\n", issue.Priority.Display())
			fmt.Fprintf(app.Out, "  type:     %s\n", issue.Type)
			if issue.ParentID != "" {
				fmt.Fprintf(app.Out, "  parent:   %s\n", issue.ParentID)
			}
			if issue.Assignee != "" {
				fmt.Fprintf(app.Out, "  assignee: %s\n", issue.Assignee)
			}
			if len(issue.Labels) > 0 {
				fmt.Fprintf(app.Out, "  labels:   %s\n", strings.Join(issue.Labels, ", "))
			}
			if issue.ExternalRef != "" {
				fmt.Fprintf(app.Out, "  external: %s\n", issue.ExternalRef)
			}
			fmt.Fprintf(app.Out, "  created:  %s by %s\n", formatTime(issue.CreatedAt), issue.CreatedBy)
			fmt.Fprintf(app.Out, "  updated:  %s\n", formatTime(issue.UpdatedAt))
			if issue.ClosedAt != nil {
				fmt.Fprintf(app.Out, "  closed:   %s (%s)\n", formatTime(*issue.ClosedAt), issue.CloseReason)
			}
			if issue.Description != "" {
				fmt.Fprintf(app.Out, "\n%s\n", issue.Description)
			}

			if len(issue.Dependencies) > 0 {
				fmt.Fprintln(app.Out, "\nDepends on:")
				for _, e := range issue.Dependencies {
					status := "?"
					if dep, ok := state.Issues[e.DependencyID]; ok {
						status = string(dep.Status)
					}
					fmt.Fprintf(app.Out, "  %s [%s] (%s)\n", e.DependencyID, e.Type, status)
				}
			}
			if len(issue.Dependents) > 0 {
				fmt.Fprintln(app.Out, "\nBlocks:")
				for _, e := range issue.Dependents {
					fmt.Fprintf(app.Out, "  %s [%s]\n", e.DependentID, e.Type)
				}
			}
			if blockers := graph.OpenBlockers(state, issue); len(blockers) > 0 {
				fmt.Fprintf(app.Out, "\n%s\n", app.WarnColor("Blocked by open: "+strings.Join(blockers, ", ")))
			}

			if len(issue.Comments) > 0 {
				fmt.Fprintln(app.Out, "\nComments:")
				for _, c := range issue.Comments {
					fmt.Fprintf(app.Out, "  [%d] %s (%s):\n      %s\n", c.ID, c.Author, formatTime(c.CreatedAt), c.Text)
				}
			}
			return nil
		},
	}
	return cmd
}
