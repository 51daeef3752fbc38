package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/journal"
	"braid/internal/merge"
)

// newImportCmd creates the import command. Imported events are merged
// into the log with the same reconciliation rules as sync: union by
// event key, deterministic collision repair, nothing silently dropped.
func newImportCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Merge an exported event log into this workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			imported, warnings, err := journal.ScanFile(args[0])
			if err != nil {
				return err
			}
			primary, logWarnings, err := app.Journal.Scan()
			if err != nil {
				return err
			}
			app.PrintWarnings(append(warnings, logWarnings...))

			result := merge.Events(app.Prefix(), primary, imported)
			app.PrintWarnings(result.Warnings)

			if result.Changed {
				if err := app.Journal.Rewrite(ctx, result.Events); err != nil {
					return err
				}
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{
					"imported": len(imported),
					"total":    len(result.Events),
					"renames":  result.Renames,
				})
			}
			fmt.Fprintf(app.Out, "Imported %d events (%d total after merge)\n", len(imported), len(result.Events))
			for renamed, old := range result.Renames {
				fmt.Fprintf(app.Out, "  renamed %s -> %s\n", old, renamed)
			}
			return nil
		},
	}
	return cmd
}
