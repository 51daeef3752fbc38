package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"braid/internal/cache"
	"braid/internal/journal"
	"braid/internal/store"
)

func TestRelevant(t *testing.T) {
	d := &Daemon{}
	tests := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{"issues.jsonl", fsnotify.Write, true},
		{"issues.jsonl", fsnotify.Create, true},
		{"issues.jsonl", fsnotify.Rename, true},
		{"issues.jsonl", fsnotify.Chmod, false},
		{"issues.laptop.jsonl", fsnotify.Write, true},
		{"issues.jsonl.tmp.1234", fsnotify.Write, false},
		{"issues.jsonl.lock", fsnotify.Create, false},
		{"cache.db", fsnotify.Write, false},
		{"config.yml", fsnotify.Write, false},
	}
	for _, tt := range tests {
		event := fsnotify.Event{Name: filepath.Join("/ws/.braid", tt.name), Op: tt.op}
		assert.Equal(t, tt.want, d.relevant(event), "%s %s", tt.name, tt.op)
	}
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), ".braid")
	j := journal.New(dir)
	require.NoError(t, j.Init(ctx))

	c, err := cache.Open(ctx, filepath.Join(dir, cache.FileName))
	require.NoError(t, err)
	defer c.Close()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, j.Append(ctx, store.Event{
		UID: "uid-1", IssueID: "br-aaaa", Seq: 1, Actor: "alice", Time: at,
		Kind: store.EventCreate,
		Issue: &store.Issue{
			ID: "br-aaaa", Title: "Watched issue", Status: store.StatusOpen,
			Priority: store.PriorityMedium, Type: store.TypeTask, CreatedAt: at,
		},
	}))

	d := New(j, c)
	require.NoError(t, d.rebuild(ctx))

	hash, err := j.ContentHash()
	require.NoError(t, err)
	fresh, err := c.Fresh(ctx, hash)
	require.NoError(t, err)
	assert.True(t, fresh)

	rows, err := c.Query(ctx, nil, false, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "br-aaaa", rows[0].ID)

	// A second rebuild with an unchanged log is a no-op.
	require.NoError(t, d.rebuild(ctx))
}
