// Package cmd implements the braid command-line interface.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"braid/internal/cache"
	"braid/internal/config"
	"braid/internal/idgen"
	"braid/internal/journal"
	"braid/internal/store"
)

// App holds application state shared across commands.
type App struct {
	Journal     *journal.Journal
	ConfigStore config.Store
	ConfigDir   string // path to the .braid directory
	Out         io.Writer
	Err         io.Writer
	JSON        bool // output in JSON format
	Quiet       bool // suppress non-error output
}

// Prefix returns the configured issue id prefix, normalized to end with
// a single dash.
func (a *App) Prefix() string {
	prefix, _ := a.ConfigStore.Get("id.prefix")
	if prefix == "" {
		prefix = "br-"
	}
	return idgen.NormalizePrefix(prefix)
}

// MaxDepth returns the configured hierarchy depth limit.
func (a *App) MaxDepth() int {
	if v, ok := a.ConfigStore.Get("hierarchy.max_depth"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return idgen.DefaultMaxDepth
}

// Actor resolves the identity recorded on events written by this process.
func (a *App) Actor() string {
	return resolveActor(a.ConfigStore)
}

// LoadState replays the append log into the current issue state.
// Log warnings (corrupt lines, merge leftovers) are printed to stderr so
// they are never silently dropped.
func (a *App) LoadState(ctx context.Context) (*store.State, error) {
	events, warnings, err := a.Journal.Scan()
	if err != nil {
		return nil, err
	}
	state, replayWarnings := store.Replay(events)
	a.PrintWarnings(append(warnings, replayWarnings...))
	return state, nil
}

// Event builds the skeleton of a new log event for an issue: fresh UID,
// resolved actor, current time, and the next sequence number from state.
func (a *App) Event(state *store.State, issueID string, kind store.EventKind) store.Event {
	return store.Event{
		UID:     uuid.NewString(),
		IssueID: issueID,
		Seq:     state.NextSeq(issueID),
		Actor:   a.Actor(),
		Time:    time.Now().UTC(),
		Kind:    kind,
	}
}

// CachePath returns the location of the derived SQLite cache.
func (a *App) CachePath() string {
	return filepath.Join(a.ConfigDir, cache.FileName)
}

// PrintWarnings writes warnings to stderr. Quiet mode does not suppress
// them; warnings always surface.
func (a *App) PrintWarnings(warnings []store.Warning) {
	for _, w := range warnings {
		fmt.Fprintf(a.Err, "%s\n", a.WarnColor("warning: "+w.String()))
	}
}

// SuccessColor returns the string wrapped in green ANSI codes if stdout
// is a terminal, otherwise returns the string unchanged.
func (a *App) SuccessColor(s string) string {
	if f, ok := a.Out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "\033[32m" + s + "\033[0m"
	}
	return s
}

// WarnColor returns the string wrapped in orange ANSI codes if stderr is
// a terminal, otherwise returns the string unchanged.
func (a *App) WarnColor(s string) string {
	if f, ok := a.Err.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "\033[38;5;214m" + s + "\033[0m"
	}
	return s
}
