// Package merge reconciles divergent append logs from separate replicas
// into one consistent log without manual conflict resolution. It exploits
// the append-only, keyed nature of events: union by event key, repair the
// rare id collision deterministically, and surface anything structural as
// a warning instead of silently dropping data.
package merge

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"braid/internal/graph"
	"braid/internal/idgen"
	"braid/internal/journal"
	"braid/internal/store"
)

// Result reports what a reconciliation did.
type Result struct {
	Events   []store.Event
	Renames  map[string]string // replacement id -> the colliding id it replaced
	Warnings []store.Warning
	Changed  bool // whether the merged log differs from the primary input
}

// Reconcile folds any side logs (issues.<name>.jsonl) into the primary
// log and repairs id collisions. It is idempotent: running it on an
// already-merged state changes nothing. Designed to run opportunistically
// before query commands.
func Reconcile(ctx context.Context, j *journal.Journal, prefix string) (*Result, error) {
	primary, warnings, err := j.Scan()
	if err != nil {
		return nil, err
	}

	sidePaths, err := j.SideLogs()
	if err != nil {
		return nil, err
	}
	var sides [][]store.Event
	for _, path := range sidePaths {
		events, sideWarnings, err := journal.ScanFile(path)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, sideWarnings...)
		sides = append(sides, events)
	}

	result := Events(prefix, primary, sides...)
	result.Warnings = append(warnings, result.Warnings...)

	if !result.Changed && len(sidePaths) == 0 {
		return result, nil
	}

	if err := j.Rewrite(ctx, result.Events); err != nil {
		return nil, err
	}
	for _, path := range sidePaths {
		if err := os.Remove(path); err != nil {
			logrus.WithField("path", path).WithError(err).Warn("could not remove merged side log")
		}
	}
	return result, nil
}

// Events merges event sets in memory. The first set is the primary
// replica; order among the rest only matters for log provenance, not for
// the outcome, which is deterministic for any permutation of inputs.
func Events(prefix string, primary []store.Event, others ...[]store.Event) *Result {
	result := &Result{Renames: make(map[string]string)}

	// Union by event key (issue id + seq + actor). Identical keys from
	// different replicas are the same event; a key carried with
	// different payloads is kept once (earliest UID) and surfaced.
	byKey := make(map[string]store.Event)
	var order []string
	add := func(e store.Event, fromPrimary bool) {
		key := e.Key()
		have, ok := byKey[key]
		if !ok {
			byKey[key] = e
			order = append(order, key)
			if !fromPrimary {
				result.Changed = true
			}
			return
		}
		if have.UID == e.UID {
			return
		}
		if e.UID < have.UID {
			byKey[key] = e
			result.Changed = true
		}
		result.Warnings = append(result.Warnings, store.Warning{
			Kind:    store.WarnMergeConflict,
			Message: fmt.Sprintf("event key %s carried by two distinct records; kept one deterministically", key),
		})
	}
	for _, e := range primary {
		add(e, true)
	}
	for _, set := range others {
		for _, e := range set {
			add(e, false)
		}
	}

	merged := make([]store.Event, 0, len(order))
	for _, key := range order {
		merged = append(merged, byKey[key])
	}

	merged = repairCollisions(prefix, merged, result)

	store.SortEvents(merged)
	result.Events = merged

	// Post-merge integrity scan: replicas may each have added a blocks
	// edge that only together form a cycle. Report, never drop.
	state, _ := store.Replay(merged)
	for _, cycle := range graph.DetectCycles(state) {
		result.Warnings = append(result.Warnings, store.Warning{
			Kind:    store.WarnMergeConflict,
			Message: fmt.Sprintf("blocks cycle after merge: %s (resolve with dep remove)", strings.Join(cycle, " -> ")),
		})
	}
	return result
}

// repairCollisions finds issue ids created independently by more than one
// replica and renames every lineage but the first. The survivor is the
// earliest create by timestamp, tie-break actor id lexical order. The
// renamed lineage is the later create plus the events sharing its actor
// from that point on; its edges are rewritten to the new id, a
// renamed-from marker is stamped on the issue, and a MergeConflict
// warning is always produced.
func repairCollisions(prefix string, events []store.Event, result *Result) []store.Event {
	creates := make(map[string][]store.Event)
	existing := make(map[string]bool)
	for _, e := range events {
		if e.Kind == store.EventCreate || e.Kind == store.EventSummary {
			creates[e.IssueID] = append(creates[e.IssueID], e)
		}
		existing[e.IssueID] = true
	}

	for id, list := range creates {
		if len(list) < 2 {
			continue
		}
		sort.Slice(list, func(i, j int) bool {
			if !list[i].Time.Equal(list[j].Time) {
				return list[i].Time.Before(list[j].Time)
			}
			return list[i].Actor < list[j].Actor
		})

		for _, loser := range list[1:] {
			newID := replacementID(prefix, id, &loser, existing)
			existing[newID] = true
			// Keyed by the new id: several replicas can lose the same
			// collision, and each rename must survive in the report.
			result.Renames[newID] = id
			result.Changed = true

			for i := range events {
				e := &events[i]
				if !inLineage(e, &loser, id) {
					continue
				}
				if e.IssueID == id {
					e.IssueID = newID
				}
				if e.Edge != nil {
					if e.Edge.DependentID == id {
						e.Edge.DependentID = newID
					}
					if e.Edge.DependencyID == id {
						e.Edge.DependencyID = newID
					}
				}
				// The audit trail rides on the renamed issue itself; a
				// rename event would hit the surviving issue instead.
				if e.UID == loser.UID && e.Issue != nil {
					issue := *e.Issue
					if issue.ExternalRef == "" {
						issue.ExternalRef = "renamed-from:" + id
					}
					e.Issue = &issue
				}
			}

			result.Warnings = append(result.Warnings, store.Warning{
				Kind:    store.WarnMergeConflict,
				Message: fmt.Sprintf("id collision on %s: renamed %s's issue to %s", id, loser.Actor, newID),
			})
		}
	}
	return events
}

// inLineage decides whether an event belongs to the losing create's
// lineage: the create itself, or a later event for the same issue id by
// the same actor. Events from third parties stay attached to the
// surviving issue.
func inLineage(e *store.Event, loser *store.Event, id string) bool {
	if e.UID == loser.UID {
		return true
	}
	touches := e.IssueID == id ||
		(e.Edge != nil && (e.Edge.DependentID == id || e.Edge.DependencyID == id))
	return touches && e.Actor == loser.Actor && !e.Time.Before(loser.Time) && e.Kind != store.EventCreate
}

// replacementID picks the deterministic new id for a renamed lineage.
// Hierarchical children are renumbered to the next free index under the
// same parent; top-level ids are re-derived from the issue's content so
// every replica repairing this collision computes the same replacement.
func replacementID(prefix, id string, loser *store.Event, existing map[string]bool) string {
	if parentID, _, ok := idgen.SplitChild(id); ok {
		index := 1
		for existing[idgen.Child(parentID, index)] {
			index++
		}
		return idgen.Child(parentID, index)
	}

	title := ""
	createdAt := loser.Time
	if loser.Issue != nil {
		title = loser.Issue.Title
		if !loser.Issue.CreatedAt.IsZero() {
			createdAt = loser.Issue.CreatedAt
		}
	}
	length := len(strings.TrimPrefix(id, prefix))
	if length < idgen.MinLength {
		length = idgen.MinLength
	}
	if length > idgen.MaxLength {
		length = idgen.MaxLength
	}
	for nonce := 0; ; nonce++ {
		candidate := idgen.Deterministic(prefix, title, loser.Actor, createdAt, nonce, length)
		if !existing[candidate] {
			return candidate
		}
	}
}
