package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// newExportCmd creates the export command. Export emits the canonical
// sorted event log as JSONL, which import on any replica can merge back
// losslessly.
func newExportCmd(provider *AppProvider) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the event log as JSONL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}

			events, warnings, err := app.Journal.Scan()
			if err != nil {
				return err
			}
			app.PrintWarnings(warnings)

			out := app.Out
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("creating export file: %w", err)
				}
				defer f.Close()
				out = f
			}

			enc := json.NewEncoder(out)
			for _, e := range events {
				if err := enc.Encode(e); err != nil {
					return fmt.Errorf("encoding event %s: %w", e.Key(), err)
				}
			}
			if outPath != "" && !app.Quiet {
				fmt.Fprintf(app.Err, "Exported %d events to %s\n", len(events), outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to file instead of stdout")

	return cmd
}
