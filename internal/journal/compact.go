package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"braid/internal/store"
)

// Compact folds closed issues whose ClosedAt is older than the cutoff
// into single summary records, bounding log growth. The summary keeps the
// issue's id, final status, and the edges that touch still-open issues,
// so readiness queries and audits stay correct after folding.
//
// Returns the ids that were compacted. Runs as a single atomic rewrite.
func (j *Journal) Compact(ctx context.Context, olderThan time.Duration, actor string) ([]string, error) {
	events, _, err := j.Scan()
	if err != nil {
		return nil, err
	}
	state, _ := store.Replay(events)

	cutoff := time.Now().Add(-olderThan)
	compacted := make(map[string]bool)
	for id, issue := range state.Issues {
		if issue.Status == store.StatusClosed && issue.ClosedAt != nil && issue.ClosedAt.Before(cutoff) {
			compacted[id] = true
		}
	}
	if len(compacted) == 0 {
		return nil, nil
	}

	var kept []store.Event
	for _, e := range events {
		if compacted[e.IssueID] {
			continue
		}
		// Drop edge events whose far endpoint was compacted; the edge
		// survives in the summary snapshot if the near endpoint is open.
		if (e.Kind == store.EventDepAdd || e.Kind == store.EventDepRemove) && e.Edge != nil {
			if compacted[e.Edge.DependentID] || compacted[e.Edge.DependencyID] {
				continue
			}
		}
		kept = append(kept, e)
	}

	var ids []string
	for id := range compacted {
		issue := state.Issues[id]
		snapshot := *issue
		snapshot.Comments = nil
		snapshot.Dependencies = edgesTouchingOpen(issue.Dependencies, state, compacted)
		snapshot.Dependents = edgesTouchingOpen(issue.Dependents, state, compacted)

		kept = append(kept, store.Event{
			UID:     uuid.NewString(),
			IssueID: id,
			Seq:     state.NextSeq(id),
			Actor:   actor,
			Time:    snapshot.UpdatedAt,
			Kind:    store.EventSummary,
			Issue:   &snapshot,
			Reason:  fmt.Sprintf("compacted %d events", countEvents(events, id)),
		})
		ids = append(ids, id)
	}

	if err := j.Rewrite(ctx, kept); err != nil {
		return nil, err
	}
	return ids, nil
}

// edgesTouchingOpen keeps edges whose other endpoint is a surviving issue.
func edgesTouchingOpen(edges []store.Edge, state *store.State, compacted map[string]bool) []store.Edge {
	var kept []store.Edge
	for _, e := range edges {
		if compacted[e.DependentID] && compacted[e.DependencyID] {
			continue
		}
		if _, ok := state.Issues[e.DependentID]; !ok {
			continue
		}
		if _, ok := state.Issues[e.DependencyID]; !ok {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

func countEvents(events []store.Event, issueID string) int {
	n := 0
	for _, e := range events {
		if e.IssueID == issueID {
			n++
		}
	}
	return n
}
