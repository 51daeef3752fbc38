package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/merge"
)

// newSyncCmd creates the sync command: folds any side logs left by a
// git merge (issues.<name>.jsonl) into the primary log and repairs id
// collisions deterministically.
func newSyncCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile divergent replica logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			result, err := merge.Reconcile(cmd.Context(), app.Journal, app.Prefix())
			if err != nil {
				return err
			}
			app.PrintWarnings(result.Warnings)

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{
					"events":   len(result.Events),
					"renames":  result.Renames,
					"changed":  result.Changed,
					"warnings": len(result.Warnings),
				})
			}
			if !result.Changed {
				fmt.Fprintln(app.Out, "Already in sync")
				return nil
			}
			fmt.Fprintf(app.Out, "%s\n", app.SuccessColor(fmt.Sprintf("Synced: %d events", len(result.Events))))
			for renamed, old := range result.Renames {
				fmt.Fprintf(app.Out, "  renamed %s -> %s\n", old, renamed)
			}
			return nil
		},
	}
	return cmd
}
