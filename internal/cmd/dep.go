package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"braid/internal/graph"
	"braid/internal/store"
)

// newDepCmd creates the dep command group.
func newDepCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dep",
		Short: "Manage dependencies between issues",
	}
	cmd.AddCommand(newDepAddCmd(provider))
	cmd.AddCommand(newDepRemoveCmd(provider))
	cmd.AddCommand(newDepTreeCmd(provider))
	cmd.AddCommand(newDepCyclesCmd(provider))
	return cmd
}

func newDepAddCmd(provider *AppProvider) *cobra.Command {
	var edgeType string

	cmd := &cobra.Command{
		Use:   "add <id> <depends-on-id>",
		Short: "Record that an issue depends on another",
		Long: `Record that the first issue depends on the second.

Edge types:
  blocks          the dependency must close before the dependent is ready (default)
  discovered-from provenance: the dependent was found while working the dependency
  related         loose association, no readiness effect`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			parsed, err := store.ParseEdgeType(edgeType)
			if err != nil {
				return err
			}
			edge := store.Edge{DependentID: args[0], DependencyID: args[1], Type: parsed}

			state, err := app.LoadState(ctx)
			if err != nil {
				return err
			}
			if state.HasEdge(edge) {
				fmt.Fprintf(app.Err, "%s\n", app.WarnColor("dependency already exists"))
				return nil
			}
			// Validation happens before anything is written: a rejected
			// edge leaves the log untouched.
			if err := graph.CheckEdge(state, edge); err != nil {
				return err
			}

			event := app.Event(state, args[0], store.EventDepAdd)
			event.Edge = &edge
			if err := app.Journal.Append(ctx, event); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]string{
					"id": args[0], "depends_on": args[1], "type": string(parsed),
				})
			}
			fmt.Fprintf(app.Out, "%s now depends on %s [%s]\n", args[0], args[1], parsed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&edgeType, "type", "t", "blocks", "Edge type (blocks, discovered-from, related)")

	return cmd
}

func newDepRemoveCmd(provider *AppProvider) *cobra.Command {
	var edgeType string

	cmd := &cobra.Command{
		Use:   "remove <id> <depends-on-id>",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			parsed, err := store.ParseEdgeType(edgeType)
			if err != nil {
				return err
			}
			edge := store.Edge{DependentID: args[0], DependencyID: args[1], Type: parsed}

			state, err := app.LoadState(ctx)
			if err != nil {
				return err
			}
			if !state.HasEdge(edge) {
				fmt.Fprintf(app.Err, "%s\n", app.WarnColor("no such dependency"))
				return nil
			}

			event := app.Event(state, args[0], store.EventDepRemove)
			event.Edge = &edge
			if err := app.Journal.Append(ctx, event); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{"removed": true})
			}
			fmt.Fprintf(app.Out, "%s no longer depends on %s\n", args[0], args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&edgeType, "type", "t", "blocks", "Edge type (blocks, discovered-from, related)")

	return cmd
}

func newDepTreeCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tree <id>",
		Short: "Show the dependency and child tree below an issue",
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
			root, err := graph.Tree(state, args[0])
			if err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(treeJSON(root))
			}
			printTree(app, root, 0)
			return nil
		},
	}
	return cmd
}

func printTree(app *App, node *graph.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	marker := ""
	if node.EdgeType != "" {
		marker = fmt.Sprintf(" [%s]", node.EdgeType)
	}
	if node.Repeat {
		fmt.Fprintf(app.Out, "%s%s%s (see above)\n", indent, node.Issue.ID, marker)
		return
	}
	fmt.Fprintf(app.Out, "%s%s%s %s (%s)\n", indent, node.Issue.ID, marker, node.Issue.Title, node.Issue.Status)
	for _, child := range node.Children {
		printTree(app, child, depth+1)
	}
}

// treeNodeJSON mirrors graph.Node for JSON output.
type treeNodeJSON struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Status   string         `json:"status"`
	EdgeType string         `json:"edge_type,omitempty"`
	Repeat   bool           `json:"repeat,omitempty"`
	Children []treeNodeJSON `json:"children,omitempty"`
}

func treeJSON(node *graph.Node) treeNodeJSON {
	out := treeNodeJSON{
		ID:       node.Issue.ID,
		Title:    node.Issue.Title,
		Status:   string(node.Issue.Status),
		EdgeType: string(node.EdgeType),
		Repeat:   node.Repeat,
	}
	for _, child := range node.Children {
		out.Children = append(out.Children, treeJSON(child))
	}
	return out
}

func newDepCyclesCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "Scan the blocks subgraph for cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			state, err := app.LoadState(cmd.Context())
			if err != nil {
				return err
			}
			cycles := graph.DetectCycles(state)

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{"cycles": cycles})
			}
			if len(cycles) == 0 {
				fmt.Fprintln(app.Out, "No cycles found")
				return nil
			}
			for _, cycle := range cycles {
				fmt.Fprintf(app.Out, "%s\n", app.WarnColor(strings.Join(cycle, " -> ")))
			}
			return nil
		},
	}
	return cmd
}
