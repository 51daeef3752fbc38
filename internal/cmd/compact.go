package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// newCompactCmd creates the compact command.
func newCompactCmd(provider *AppProvider) *cobra.Command {
	var olderThanDays int

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Fold long-closed issues into summary records",
		Long: `Fold issues closed longer than the cutoff into single summary records,
bounding log growth. Edges to still-open issues survive in the summary,
so readiness queries stay correct.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			days := olderThanDays
			if !cmd.Flags().Changed("older-than") {
				if v, ok := app.ConfigStore.Get("compact.older_than_days"); ok {
					if n, err := strconv.Atoi(v); err == nil && n > 0 {
						days = n
					}
				}
			}

			ids, err := app.Journal.Compact(ctx, time.Duration(days)*24*time.Hour, app.Actor())
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{"compacted": ids})
			}
			if len(ids) == 0 {
				fmt.Fprintln(app.Out, "Nothing to compact")
				return nil
			}
			fmt.Fprintf(app.Out, "Compacted %d issues: %s\n", len(ids), strings.Join(ids, ", "))
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than", 30, "Only fold issues closed more than this many days ago")

	return cmd
}
