package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"braid/internal/idgen"
	"braid/internal/store"
)

// newMigrateCmd creates the migrate command: converts legacy sequential
// ids (br-1, br-2, ...) to collision-resistant random ids. Each
// conversion is a rename event, so edges and history follow the issue
// and old ids remain greppable via the renamed-from marker.
func newMigrateCmd(provider *AppProvider) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Convert sequential issue ids to random ids",
		Args:  cobra.NoArgs,
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
			prefix := app.Prefix()

			var legacy []string
			for id := range state.Issues {
				if !isSequentialID(id, prefix) {
					continue
				}
				// Children carry the parent id in their own dotted ids, so a
				// parent rename would strand them. Leave those families alone.
				if len(childrenOf(state, id)) > 0 {
					fmt.Fprintf(app.Err, "%s\n", app.WarnColor("skipping "+id+": has hierarchical children"))
					continue
				}
				legacy = append(legacy, id)
			}
			sort.Strings(legacy)

			if len(legacy) == 0 {
				if app.JSON {
					return json.NewEncoder(app.Out).Encode(map[string]any{"migrated": map[string]string{}})
				}
				fmt.Fprintln(app.Out, "No sequential ids found")
				return nil
			}

			renames := make(map[string]string, len(legacy))
			length := idgen.AdaptiveLength(len(state.Issues))
			for _, old := range legacy {
				var newID string
				for {
					newID, err = idgen.Random(prefix, length)
					if err != nil {
						return err
					}
					if _, exists := state.Issues[newID]; !exists {
						break
					}
				}
				renames[old] = newID
				// Reserve so two migrations in this loop can't collide.
				state.Issues[newID] = state.Issues[old]
			}

			if dryRun {
				return printRenames(app, renames, true)
			}

			var events []store.Event
			for _, old := range legacy {
				event := app.Event(state, old, store.EventRename)
				event.NewID = renames[old]
				event.Reason = "migrated from sequential id"
				events = append(events, event)
			}
			if err := app.Journal.Append(ctx, events...); err != nil {
				return err
			}
			return printRenames(app, renames, false)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be renamed without writing")

	return cmd
}

func printRenames(app *App, renames map[string]string, dryRun bool) error {
	if app.JSON {
		return json.NewEncoder(app.Out).Encode(map[string]any{"migrated": renames, "dry_run": dryRun})
	}
	ids := make([]string, 0, len(renames))
	for old := range renames {
		ids = append(ids, old)
	}
	sort.Strings(ids)
	for _, old := range ids {
		fmt.Fprintf(app.Out, "%s -> %s\n", old, renames[old])
	}
	if dryRun {
		fmt.Fprintln(app.Out, "(dry run, nothing written)")
	}
	return nil
}

// isSequentialID reports whether id is a legacy sequential id: the
// configured prefix followed by digits only, with no hierarchy dots.
func isSequentialID(id, prefix string) bool {
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok || rest == "" || strings.Contains(rest, ".") {
		return false
	}
	for _, r := range rest {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
