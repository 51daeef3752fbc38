package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/store"
)

// newLabelCmd creates the label command group.
func newLabelCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Manage issue labels",
	}
	cmd.AddCommand(newLabelAddCmd(provider))
	cmd.AddCommand(newLabelRemoveCmd(provider))
	return cmd
}

func newLabelAddCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <id> <label>...",
		Short: "Add labels to an issue",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return labelEvent(cmd, provider, args, store.EventLabelAdd, "Labeled")
		},
	}
	return cmd
}

func newLabelRemoveCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <id> <label>...",
		Short: "Remove labels from an issue",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return labelEvent(cmd, provider, args, store.EventLabelRemove, "Unlabeled")
		},
	}
	return cmd
}

func labelEvent(cmd *cobra.Command, provider *AppProvider, args []string, kind store.EventKind, verb string) error {
	app, err := provider.Get()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	id, labels := args[0], args[1:]

	state, err := app.LoadState(ctx)
	if err != nil {
		return err
	}
	if _, err := state.Get(id); err != nil {
		return err
	}

	var events []store.Event
	for i, label := range labels {
		event := app.Event(state, id, kind)
		event.Seq += i
		event.Label = label
		events = append(events, event)
	}
	if err := app.Journal.Append(ctx, events...); err != nil {
		return err
	}

	if app.JSON {
		return json.NewEncoder(app.Out).Encode(map[string]any{"id": id, "labels": labels})
	}
	fmt.Fprintf(app.Out, "%s %s\n", verb, id)
	return nil
}
