package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/store"
)

// newUpdateCmd creates the update command. Updates are recorded as
// sparse field patches: only the flags given land in the log, so
// concurrent updates to different fields of the same issue both survive
// a merge.
func newUpdateCmd(provider *AppProvider) *cobra.Command {
	var (
		title       string
		description string
		status      string
		priority    string
		typeFlag    string
		assignee    string
		externalRef string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of an issue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			fields := make(map[string]any)
			if cmd.Flags().Changed("title") {
				fields["title"] = title
			}
			if cmd.Flags().Changed("description") {
				fields["description"] = description
			}
			if cmd.Flags().Changed("status") {
				parsed, err := store.ParseStatus(status)
				if err != nil {
					return err
				}
				fields["status"] = string(parsed)
			}
			if cmd.Flags().Changed("priority") {
				parsed, err := store.ParsePriority(priority)
				if err != nil {
					return err
				}
				fields["priority"] = int(parsed)
			}
			if cmd.Flags().Changed("type") {
				parsed, err := store.ParseIssueType(typeFlag)
				if err != nil {
					return err
				}
				fields["type"] = string(parsed)
			}
			if cmd.Flags().Changed("assignee") {
				fields["assignee"] = assignee
			}
			if cmd.Flags().Changed("external-ref") {
				fields["external_ref"] = externalRef
			}
			if len(fields) == 0 {
				return fmt.Errorf("no fields to update (see --help for flags)")
			}

			state, err := app.LoadState(ctx)
			if err != nil {
				return err
			}
			issue, err := state.Get(args[0])
			if err != nil {
				return err
			}
			if err := store.ValidateFields(issue, fields); err != nil {
				return err
			}

			event := app.Event(state, args[0], store.EventUpdate)
			event.Fields = fields
			if err := app.Journal.Append(ctx, event); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{"id": args[0], "updated": true})
			}
			fmt.Fprintf(app.Out, "Updated %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVarP(&status, "status", "s", "", "New status (open, in_progress, blocked, closed)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority 0-4")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "New type (task, bug, feature, epic, chore)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "New assignee")
	cmd.Flags().StringVar(&externalRef, "external-ref", "", "External reference (e.g. gh-1234)")

	return cmd
}
