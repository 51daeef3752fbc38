package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func createEvent(id, title, actor string, seq int, at time.Time) Event {
	return Event{
		UID:     "uid-" + id + "-create-" + actor,
		IssueID: id,
		Seq:     seq,
		Actor:   actor,
		Time:    at,
		Kind:    EventCreate,
		Issue: &Issue{
			ID:        id,
			Title:     title,
			Status:    StatusOpen,
			Priority:  PriorityMedium,
			Type:      TypeTask,
			CreatedAt: at,
		},
	}
}

func TestReplayCreateUpdateClose(t *testing.T) {
	events := []Event{
		createEvent("br-aaaa", "First", "alice", 1, base),
		{
			UID: "u2", IssueID: "br-aaaa", Seq: 2, Actor: "alice", Time: base.Add(time.Minute),
			Kind: EventUpdate, Fields: map[string]any{"status": "in_progress", "assignee": "bob"},
		},
		{
			UID: "u3", IssueID: "br-aaaa", Seq: 3, Actor: "bob", Time: base.Add(2 * time.Minute),
			Kind: EventClose, Reason: "done",
		},
	}

	state, warnings := Replay(events)
	require.Empty(t, warnings)

	issue, err := state.Get("br-aaaa")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, issue.Status)
	assert.Equal(t, "bob", issue.Assignee)
	assert.Equal(t, "done", issue.CloseReason)
	require.NotNil(t, issue.ClosedAt)
	assert.Equal(t, base.Add(2*time.Minute), *issue.ClosedAt)
	assert.Equal(t, 4, state.NextSeq("br-aaaa"))
}

func TestReplayOrderIndependent(t *testing.T) {
	events := []Event{
		createEvent("br-aaaa", "Issue", "alice", 1, base),
		{
			UID: "u2", IssueID: "br-aaaa", Seq: 2, Actor: "alice", Time: base.Add(time.Minute),
			Kind: EventUpdate, Fields: map[string]any{"title": "Renamed once"},
		},
		{
			UID: "u3", IssueID: "br-aaaa", Seq: 3, Actor: "alice", Time: base.Add(2 * time.Minute),
			Kind: EventUpdate, Fields: map[string]any{"title": "Renamed twice"},
		},
	}

	forward, _ := Replay(events)
	reversed := []Event{events[2], events[0], events[1]}
	backward, _ := Replay(reversed)

	assert.Equal(t, "Renamed twice", forward.Issues["br-aaaa"].Title)
	assert.Equal(t, forward.Issues["br-aaaa"].Title, backward.Issues["br-aaaa"].Title)
}

func TestReplayFieldLevelMerge(t *testing.T) {
	// Two replicas update different fields of the same issue; both edits
	// survive because patches are sparse.
	events := []Event{
		createEvent("br-aaaa", "Issue", "alice", 1, base),
		{
			UID: "u2", IssueID: "br-aaaa", Seq: 2, Actor: "alice", Time: base.Add(time.Minute),
			Kind: EventUpdate, Fields: map[string]any{"assignee": "alice"},
		},
		{
			UID: "u3", IssueID: "br-aaaa", Seq: 2, Actor: "bob", Time: base.Add(2 * time.Minute),
			Kind: EventUpdate, Fields: map[string]any{"priority": float64(0)},
		},
	}

	state, warnings := Replay(events)
	require.Empty(t, warnings)

	issue := state.Issues["br-aaaa"]
	assert.Equal(t, "alice", issue.Assignee)
	assert.Equal(t, PriorityCritical, issue.Priority)
}

func TestReplayLastWriterWinsPerField(t *testing.T) {
	events := []Event{
		createEvent("br-aaaa", "Issue", "alice", 1, base),
		{
			UID: "u2", IssueID: "br-aaaa", Seq: 2, Actor: "alice", Time: base.Add(2 * time.Minute),
			Kind: EventUpdate, Fields: map[string]any{"assignee": "alice"},
		},
		{
			UID: "u3", IssueID: "br-aaaa", Seq: 2, Actor: "bob", Time: base.Add(time.Minute),
			Kind: EventUpdate, Fields: map[string]any{"assignee": "bob"},
		},
	}

	state, _ := Replay(events)
	assert.Equal(t, "alice", state.Issues["br-aaaa"].Assignee,
		"later timestamp should win regardless of input order")
}

func TestReplayDuplicateCreateKeepsEarlier(t *testing.T) {
	events := []Event{
		createEvent("br-aaaa", "From alice", "alice", 1, base),
		createEvent("br-aaaa", "From bob", "bob", 1, base.Add(time.Second)),
	}

	state, warnings := Replay(events)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnMergeConflict, warnings[0].Kind)
	assert.Equal(t, "From alice", state.Issues["br-aaaa"].Title)
}

func TestReplayDeleteRemovesEdges(t *testing.T) {
	edge := Edge{DependentID: "br-bbbb", DependencyID: "br-aaaa", Type: EdgeBlocks}
	events := []Event{
		createEvent("br-aaaa", "Dep", "alice", 1, base),
		createEvent("br-bbbb", "Main", "alice", 1, base.Add(time.Second)),
		{
			UID: "u3", IssueID: "br-bbbb", Seq: 2, Actor: "alice", Time: base.Add(time.Minute),
			Kind: EventDepAdd, Edge: &edge,
		},
		{
			UID: "u4", IssueID: "br-aaaa", Seq: 2, Actor: "alice", Time: base.Add(2 * time.Minute),
			Kind: EventDelete, Reason: "duplicate",
		},
	}

	state, warnings := Replay(events)
	require.Empty(t, warnings)

	_, err := state.Get("br-aaaa")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, state.Edges)
	assert.Empty(t, state.Issues["br-bbbb"].Dependencies)
}

func TestReplayDepAddIdempotent(t *testing.T) {
	edge := Edge{DependentID: "br-bbbb", DependencyID: "br-aaaa", Type: EdgeBlocks}
	events := []Event{
		createEvent("br-aaaa", "Dep", "alice", 1, base),
		createEvent("br-bbbb", "Main", "alice", 1, base.Add(time.Second)),
		{UID: "u3", IssueID: "br-bbbb", Seq: 2, Actor: "alice", Time: base.Add(time.Minute), Kind: EventDepAdd, Edge: &edge},
		{UID: "u4", IssueID: "br-bbbb", Seq: 2, Actor: "bob", Time: base.Add(time.Minute), Kind: EventDepAdd, Edge: &edge},
		{UID: "u5", IssueID: "br-bbbb", Seq: 3, Actor: "alice", Time: base.Add(2 * time.Minute), Kind: EventDepRemove, Edge: &edge},
		{UID: "u6", IssueID: "br-bbbb", Seq: 4, Actor: "alice", Time: base.Add(3 * time.Minute), Kind: EventDepRemove, Edge: &edge},
	}

	state, warnings := Replay(events)
	require.Empty(t, warnings)
	assert.Empty(t, state.Edges, "remove is idempotent and removing twice is fine")
}

func TestReplayLabelsSortedSet(t *testing.T) {
	events := []Event{
		createEvent("br-aaaa", "Issue", "alice", 1, base),
		{UID: "u2", IssueID: "br-aaaa", Seq: 2, Actor: "alice", Time: base.Add(time.Minute), Kind: EventLabelAdd, Label: "urgent"},
		{UID: "u3", IssueID: "br-aaaa", Seq: 3, Actor: "alice", Time: base.Add(2 * time.Minute), Kind: EventLabelAdd, Label: "backend"},
		{UID: "u4", IssueID: "br-aaaa", Seq: 4, Actor: "alice", Time: base.Add(3 * time.Minute), Kind: EventLabelAdd, Label: "urgent"},
	}

	state, _ := Replay(events)
	assert.Equal(t, []string{"backend", "urgent"}, state.Issues["br-aaaa"].Labels)
}

func TestReplayCommentAutoID(t *testing.T) {
	events := []Event{
		createEvent("br-aaaa", "Issue", "alice", 1, base),
		{
			UID: "u2", IssueID: "br-aaaa", Seq: 2, Actor: "alice", Time: base.Add(time.Minute),
			Kind: EventComment, Comment: &Comment{Author: "alice", Text: "first"},
		},
		{
			UID: "u3", IssueID: "br-aaaa", Seq: 3, Actor: "bob", Time: base.Add(2 * time.Minute),
			Kind: EventComment, Comment: &Comment{Author: "bob", Text: "second"},
		},
	}

	state, _ := Replay(events)
	comments := state.Issues["br-aaaa"].Comments
	require.Len(t, comments, 2)
	assert.Equal(t, 1, comments[0].ID)
	assert.Equal(t, 2, comments[1].ID)
}

func TestReplayRenameRewritesEdges(t *testing.T) {
	edge := Edge{DependentID: "br-bbbb", DependencyID: "br-aaaa", Type: EdgeBlocks}
	events := []Event{
		createEvent("br-aaaa", "Dep", "alice", 1, base),
		createEvent("br-bbbb", "Main", "alice", 1, base.Add(time.Second)),
		{UID: "u3", IssueID: "br-bbbb", Seq: 2, Actor: "alice", Time: base.Add(time.Minute), Kind: EventDepAdd, Edge: &edge},
		{
			UID: "u4", IssueID: "br-aaaa", Seq: 2, Actor: "alice", Time: base.Add(2 * time.Minute),
			Kind: EventRename, NewID: "br-zzzz",
		},
	}

	state, warnings := Replay(events)
	require.Empty(t, warnings)

	_, err := state.Get("br-aaaa")
	assert.ErrorIs(t, err, ErrNotFound)

	renamed, err := state.Get("br-zzzz")
	require.NoError(t, err)
	assert.Equal(t, "renamed-from:br-aaaa", renamed.ExternalRef)

	main := state.Issues["br-bbbb"]
	require.Len(t, main.Dependencies, 1)
	assert.Equal(t, "br-zzzz", main.Dependencies[0].DependencyID)
}

func TestReplayEventForMissingIssueWarns(t *testing.T) {
	events := []Event{
		{
			UID: "u1", IssueID: "br-gone", Seq: 5, Actor: "alice", Time: base,
			Kind: EventUpdate, Fields: map[string]any{"title": "ghost"},
		},
	}

	state, warnings := Replay(events)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnCorruptRecord, warnings[0].Kind)
	assert.Empty(t, state.Issues)
}

func TestReplayUnknownUpdateFieldWarns(t *testing.T) {
	events := []Event{
		createEvent("br-aaaa", "Issue", "alice", 1, base),
		{
			UID: "u2", IssueID: "br-aaaa", Seq: 2, Actor: "alice", Time: base.Add(time.Minute),
			Kind: EventUpdate, Fields: map[string]any{"parent": "br-bbbb"},
		},
	}

	state, warnings := Replay(events)
	require.Len(t, warnings, 1)
	assert.Equal(t, WarnCorruptRecord, warnings[0].Kind)
	assert.Empty(t, state.Issues["br-aaaa"].ParentID, "parent is immutable after create")
}
