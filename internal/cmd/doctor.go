package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"braid/internal/cache"
	"braid/internal/config"
	"braid/internal/graph"
	"braid/internal/store"
)

// doctorCheck is one named health check result.
type doctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// newDoctorCmd creates the doctor command: a read-only health report on
// the workspace. All checks run even when earlier ones fail; the command
// errors only if at least one check failed.
func newDoctorCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check workspace health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			checks, result := runDoctor(cmd.Context(), app)

			if app.JSON {
				if err := json.NewEncoder(app.Out).Encode(checks); err != nil {
					return err
				}
				return result
			}
			for _, check := range checks {
				mark := app.SuccessColor("ok")
				if !check.OK {
					mark = app.WarnColor("FAIL")
				}
				line := fmt.Sprintf("%-18s %s", check.Name, mark)
				if check.Detail != "" {
					line += "  " + check.Detail
				}
				fmt.Fprintln(app.Out, line)
			}
			return result
		},
	}
	return cmd
}

func runDoctor(ctx context.Context, app *App) ([]doctorCheck, error) {
	var checks []doctorCheck
	var result *multierror.Error
	record := func(name string, err error, okDetail string) {
		check := doctorCheck{Name: name, OK: err == nil, Detail: okDetail}
		if err != nil {
			check.Detail = err.Error()
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
		}
		checks = append(checks, check)
	}

	record("config", config.Validate(app.ConfigStore), "")

	events, warnings, err := app.Journal.Scan()
	if err != nil {
		record("log", err, "")
		return checks, result.ErrorOrNil()
	}
	logErr := error(nil)
	if len(warnings) > 0 {
		logErr = fmt.Errorf("%d corrupt or conflicting records", len(warnings))
	}
	record("log", logErr, fmt.Sprintf("%d events", len(events)))

	state, replayWarnings := store.Replay(events)
	replayErr := error(nil)
	if len(replayWarnings) > 0 {
		replayErr = fmt.Errorf("%d replay warnings", len(replayWarnings))
	}
	record("replay", replayErr, fmt.Sprintf("%d issues, %d edges", len(state.Issues), len(state.Edges)))

	var dangling []string
	for _, e := range state.Edges {
		if _, ok := state.Issues[e.DependentID]; !ok {
			dangling = append(dangling, e.DependentID)
		}
		if _, ok := state.Issues[e.DependencyID]; !ok {
			dangling = append(dangling, e.DependencyID)
		}
	}
	danglingErr := error(nil)
	if len(dangling) > 0 {
		danglingErr = fmt.Errorf("edges reference missing issues: %s", strings.Join(dangling, ", "))
	}
	record("edges", danglingErr, "")

	cycles := graph.DetectCycles(state)
	cycleErr := error(nil)
	if len(cycles) > 0 {
		cycleErr = fmt.Errorf("%d blocks cycles (run braid dep cycles)", len(cycles))
	}
	record("cycles", cycleErr, "")

	sideLogs, err := app.Journal.SideLogs()
	sideErr := err
	if sideErr == nil && len(sideLogs) > 0 {
		sideErr = fmt.Errorf("%d unmerged side logs (run braid sync)", len(sideLogs))
	}
	record("side logs", sideErr, "")

	cacheDetail := "fresh"
	cacheErr := error(nil)
	if c, err := cache.Open(ctx, app.CachePath()); err != nil {
		cacheErr = err
	} else {
		defer c.Close()
		hash, err := app.Journal.ContentHash()
		if err != nil {
			cacheErr = err
		} else if fresh, err := c.Fresh(ctx, hash); err != nil {
			cacheErr = err
		} else if !fresh {
			cacheDetail = "stale (rebuilt on next query)"
		}
	}
	record("cache", cacheErr, cacheDetail)

	return checks, result.ErrorOrNil()
}
