package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"braid/internal/cache"
	"braid/internal/store"
)

// newListCmd creates the list command. Listing goes through the derived
// SQLite cache when it matches the current log hash; otherwise the log
// is replayed and the cache rebuilt in passing.
func newListCmd(provider *AppProvider) *cobra.Command {
	var (
		status   string
		priority string
		typeFlag string
		assignee string
		labels   []string
		labelAny []string
		title    string
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			filter := &store.ListFilter{
				LabelsAll: labels,
				LabelsAny: labelAny,
				TitleText: title,
			}
			if status != "" {
				parsed, err := store.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = &parsed
			}
			if priority != "" {
				parsed, err := store.ParsePriority(priority)
				if err != nil {
					return err
				}
				filter.Priority = &parsed
			}
			if typeFlag != "" {
				parsed, err := store.ParseIssueType(typeFlag)
				if err != nil {
					return err
				}
				filter.Type = &parsed
			}
			if assignee != "" {
				filter.Assignee = &assignee
			}

			issues, err := listIssues(ctx, app, filter, noCache)
			if err != nil {
				return err
			}

			if app.JSON {
				out := make([]IssueJSON, 0, len(issues))
				for _, issue := range issues {
					out = append(out, ToIssueJSON(issue, false))
				}
				return json.NewEncoder(app.Out).Encode(out)
			}

			if len(issues) == 0 {
				fmt.Fprintln(app.Out, "No issues found")
				return nil
			}
			for _, issue := range issues {
				fmt.Fprintf(app.Out, "%s [%s] [%s] %s\n",
					issue.ID, issue.Status, issue.Priority.Display(), issue.Title)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Filter by priority")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Filter by type")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Filter by assignee")
	cmd.Flags().StringSliceVarP(&labels, "label", "l", nil, "Require label (can repeat, all must match)")
	cmd.Flags().StringSliceVar(&labelAny, "label-any", nil, "Require at least one of these labels")
	cmd.Flags().StringVar(&title, "title", "", "Substring match on title")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the query cache and replay the log")

	return cmd
}

// listIssues serves a filtered listing, preferring the cache. Cache rows
// are hydrated back into issues from the replayed state only when the
// cache is stale or bypassed; a fresh cache answers directly.
func listIssues(ctx context.Context, app *App, filter *store.ListFilter, noCache bool) ([]*store.Issue, error) {
	if !noCache {
		if issues, ok := listFromCache(ctx, app, filter); ok {
			return issues, nil
		}
	}

	state, err := app.LoadState(ctx)
	if err != nil {
		return nil, err
	}
	refreshCache(ctx, app, state)
	return state.List(filter), nil
}

// withFreshCache opens the cache and hands it to fn only when it was
// built from the current log. Any miss reports false so the caller
// replays instead.
func withFreshCache(ctx context.Context, app *App, fn func(c *cache.Cache) error) bool {
	hash, err := app.Journal.ContentHash()
	if err != nil {
		return false
	}
	c, err := cache.Open(ctx, app.CachePath())
	if err != nil {
		return false
	}
	defer c.Close()

	fresh, err := c.Fresh(ctx, hash)
	if err != nil || !fresh {
		return false
	}
	return fn(c) == nil
}

// listFromCache answers from the SQLite cache if it matches the current
// log hash. Cache misses of any kind fall back to a replay.
func listFromCache(ctx context.Context, app *App, filter *store.ListFilter) ([]*store.Issue, bool) {
	var issues []*store.Issue
	ok := withFreshCache(ctx, app, func(c *cache.Cache) error {
		rows, err := c.Query(ctx, filter, false, false)
		if err != nil {
			return err
		}
		issues = hydrateRows(rows)
		return nil
	})
	return issues, ok
}

// readyFromCache serves the ready listing from a fresh cache, in the
// same priority order the replay path computes.
func readyFromCache(ctx context.Context, app *App, filter *store.ListFilter) ([]*store.Issue, bool) {
	var issues []*store.Issue
	ok := withFreshCache(ctx, app, func(c *cache.Cache) error {
		rows, err := c.Query(ctx, filter, true, false)
		if err != nil {
			return err
		}
		issues = hydrateRows(rows)
		return nil
	})
	return issues, ok
}

// blockedFromCache serves the blocked listing from a fresh cache along
// with each issue's open blockers, read from the edges projection.
func blockedFromCache(ctx context.Context, app *App) ([]*store.Issue, map[string][]string, bool) {
	var issues []*store.Issue
	blockers := make(map[string][]string)
	ok := withFreshCache(ctx, app, func(c *cache.Cache) error {
		rows, err := c.Query(ctx, nil, false, true)
		if err != nil {
			return err
		}
		for _, row := range rows {
			open, err := c.OpenBlockers(ctx, row.ID)
			if err != nil {
				return err
			}
			blockers[row.ID] = open
		}
		issues = hydrateRows(rows)
		return nil
	})
	return issues, blockers, ok
}

func hydrateRows(rows []cache.Row) []*store.Issue {
	issues := make([]*store.Issue, 0, len(rows))
	for _, row := range rows {
		issues = append(issues, rowToIssue(row))
	}
	return issues
}

// refreshCache rebuilds the cache from an already-replayed state.
// Failures are not fatal to the command that triggered the rebuild.
func refreshCache(ctx context.Context, app *App, state *store.State) {
	hash, err := app.Journal.ContentHash()
	if err != nil {
		return
	}
	c, err := cache.Open(ctx, app.CachePath())
	if err != nil {
		return
	}
	defer c.Close()
	if fresh, err := c.Fresh(ctx, hash); err == nil && !fresh {
		_ = c.Rebuild(ctx, state, hash)
	}
}

// rowToIssue converts a cache row back into the issue shape used for
// output. Only the projected columns are available; detail views replay
// the log instead.
func rowToIssue(row cache.Row) *store.Issue {
	issue := &store.Issue{
		ID:       row.ID,
		Title:    row.Title,
		Status:   store.Status(row.Status),
		Priority: store.Priority(row.Priority),
		Type:     store.IssueType(row.IssueType),
		ParentID: row.ParentID,
		Assignee: row.Assignee,
	}
	if row.Labels != "" {
		issue.Labels = splitLabels(row.Labels)
	}
	issue.CreatedAt = parseTime(row.CreatedAt)
	issue.UpdatedAt = parseTime(row.UpdatedAt)
	if row.ClosedAt != nil {
		t := parseTime(*row.ClosedAt)
		issue.ClosedAt = &t
	}
	return issue
}
