package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stateWith(t *testing.T, ids ...string) *State {
	t.Helper()
	var events []Event
	for i, id := range ids {
		events = append(events, createEvent(id, "Issue "+id, "alice", 1, base.Add(time.Duration(i)*time.Second)))
	}
	state, warnings := Replay(events)
	require.Empty(t, warnings)
	return state
}

func TestAllocateIDRandom(t *testing.T) {
	state := stateWith(t, "br-aaaa")

	id, err := state.AllocateID("br-", "", 3)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "br-"))
	assert.Len(t, strings.TrimPrefix(id, "br-"), 4, "small workspaces get 4-char ids")
	assert.NotContains(t, state.Issues, id)
}

func TestAllocateIDChild(t *testing.T) {
	state := stateWith(t, "br-aaaa", "br-aaaa.1", "br-aaaa.2")

	id, err := state.AllocateID("br-", "br-aaaa", 3)
	require.NoError(t, err)
	assert.Equal(t, "br-aaaa.3", id)
}

func TestAllocateIDChildSkipsDeleted(t *testing.T) {
	events := []Event{
		createEvent("br-aaaa", "Parent", "alice", 1, base),
		createEvent("br-aaaa.1", "Child", "alice", 1, base.Add(time.Second)),
		{UID: "u3", IssueID: "br-aaaa.1", Seq: 2, Actor: "alice", Time: base.Add(time.Minute), Kind: EventDelete},
	}
	state, _ := Replay(events)

	id, err := state.AllocateID("br-", "br-aaaa", 3)
	require.NoError(t, err)
	assert.Equal(t, "br-aaaa.2", id, "index of a deleted child must not be reused")
}

func TestAllocateIDMissingParent(t *testing.T) {
	state := stateWith(t, "br-aaaa")

	_, err := state.AllocateID("br-", "br-gone", 3)
	assert.ErrorIs(t, err, ErrInvalidParent)
}

func TestAllocateIDDepthLimit(t *testing.T) {
	state := stateWith(t, "br-aaaa", "br-aaaa.1", "br-aaaa.1.1", "br-aaaa.1.1.1")

	_, err := state.AllocateID("br-", "br-aaaa.1.1.1", 3)
	assert.ErrorIs(t, err, ErrInvalidParent)

	// Depth 2 parent is still fine.
	id, err := state.AllocateID("br-", "br-aaaa.1.1", 3)
	require.NoError(t, err)
	assert.Equal(t, "br-aaaa.1.1.2", id)
}

func TestAllocateIDUniqueAcrossMany(t *testing.T) {
	state := stateWith(t, "br-aaaa")
	seen := map[string]bool{"br-aaaa": true}

	for i := 0; i < 200; i++ {
		id, err := state.AllocateID("br-", "", 3)
		require.NoError(t, err)
		assert.False(t, seen[id], "allocated duplicate id %s", id)
		seen[id] = true
		// Register the allocation the way a create event would.
		state.Issues[id] = &Issue{ID: id}
		state.maxSeq[id] = 1
	}
}
