package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"braid/internal/graph"
	"braid/internal/store"
)

// newCreateCmd creates the create command.
func newCreateCmd(provider *AppProvider) *cobra.Command {
	var (
		typeFlag    string
		priority    string
		parent      string
		dependsOn   []string
		labels      []string
		assignee    string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new issue",
		Long: `Create a new issue with the specified title.

Examples:
  braid create "Fix login bug"
  braid create "Add OAuth support" --type feature --priority 1
  braid create "Implement caching" --parent br-a1b2
  braid create "Write tests" --depends-on br-e5f6
  braid create "Task" --description -   # read description from stdin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			title := strings.TrimSpace(args[0])
			if title == "" {
				return fmt.Errorf("title must not be empty")
			}

			issueType := store.TypeTask
			if v, ok := app.ConfigStore.Get("defaults.type"); ok && v != "" {
				issueType, _ = store.ParseIssueType(v)
			}
			if typeFlag != "" {
				issueType, err = store.ParseIssueType(typeFlag)
				if err != nil {
					return err
				}
			}

			issuePriority := store.PriorityMedium
			if v, ok := app.ConfigStore.Get("defaults.priority"); ok && v != "" {
				issuePriority, _ = store.ParsePriority(v)
			}
			if priority != "" {
				issuePriority, err = store.ParsePriority(priority)
				if err != nil {
					return err
				}
			}

			desc := description
			if description == "-" {
				data, err := io.ReadAll(bufio.NewReader(os.Stdin))
				if err != nil {
					return fmt.Errorf("reading description from stdin: %w", err)
				}
				desc = strings.TrimSpace(string(data))
			}

			state, err := app.LoadState(ctx)
			if err != nil {
				return err
			}

			id, err := state.AllocateID(app.Prefix(), parent, app.MaxDepth())
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			issue := &store.Issue{
				ID:          id,
				Title:       title,
				Description: desc,
				Status:      store.StatusOpen,
				Priority:    issuePriority,
				Type:        issueType,
				ParentID:    parent,
				Assignee:    assignee,
				Labels:      labels,
				CreatedBy:   app.Actor(),
				CreatedAt:   now,
				UpdatedAt:   now,
			}

			event := app.Event(state, id, store.EventCreate)
			event.Issue = issue
			events := []store.Event{event}

			// Dependency edges are validated against the state with the new
			// issue in place, so `create --depends-on` gets the same cycle
			// protection as `dep add`.
			state.Issues[id] = issue
			for _, depID := range dependsOn {
				edge := store.Edge{DependentID: id, DependencyID: depID, Type: store.EdgeBlocks}
				if err := graph.CheckEdge(state, edge); err != nil {
					return err
				}
				depEvent := app.Event(state, id, store.EventDepAdd)
				depEvent.Seq = event.Seq + len(events)
				depEvent.Edge = &edge
				events = append(events, depEvent)
				state.Edges = append(state.Edges, edge)
			}

			if err := app.Journal.Append(ctx, events...); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]string{"id": id})
			}
			fmt.Fprintln(app.Out, id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Issue type (task, bug, feature, epic, chore)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority 0-4 (0 highest; word forms accepted)")
	cmd.Flags().StringVar(&parent, "parent", "", "Parent issue ID (child gets a dotted id)")
	cmd.Flags().StringSliceVarP(&dependsOn, "depends-on", "d", nil, "Issue ID this depends on (can repeat)")
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "Add label (can repeat)")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Assign to user")
	cmd.Flags().StringVar(&description, "description", "", "Full description (use - for stdin)")

	return cmd
}
