package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"braid/internal/store"
)

// writeSideLog drops a replica log (issues.<name>.jsonl) into the
// workspace, as a git merge of .braid/ would.
func writeSideLog(t *testing.T, app *App, name string, events ...store.Event) string {
	t.Helper()
	path := filepath.Join(app.ConfigDir, "issues."+name+".jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create side log: %v", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			t.Fatalf("failed to write side log: %v", err)
		}
	}
	return path
}

func remoteCreate(id, title, actor string) store.Event {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return store.Event{
		UID: "uid-remote-" + id, IssueID: id, Seq: 1, Actor: actor, Time: at,
		Kind: store.EventCreate,
		Issue: &store.Issue{
			ID: id, Title: title, Status: store.StatusOpen,
			Priority: store.PriorityMedium, Type: store.TypeTask, CreatedAt: at,
		},
	}
}

func TestSyncFoldsSideLog(t *testing.T) {
	app := setupTestApp(t)
	createIssue(t, app, "Local work")
	sidePath := writeSideLog(t, app, "laptop", remoteCreate("br-zzzz", "Remote work", "bob"))

	out := app.Out.(*bytes.Buffer)
	cmd := newSyncCmd(NewTestProvider(app))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !strings.Contains(out.String(), "Synced: 2 events") {
		t.Errorf("expected sync report, got %q", out.String())
	}

	if _, err := os.Stat(sidePath); !os.IsNotExist(err) {
		t.Error("side log should be removed after sync")
	}

	state, _ := app.LoadState(context.Background())
	if _, err := state.Get("br-zzzz"); err != nil {
		t.Errorf("remote issue missing after sync: %v", err)
	}
}

func TestSyncAlreadyInSync(t *testing.T) {
	app := setupTestApp(t)
	createIssue(t, app, "Settled work")

	out := app.Out.(*bytes.Buffer)
	cmd := newSyncCmd(NewTestProvider(app))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !strings.Contains(out.String(), "Already in sync") {
		t.Errorf("expected no-op report, got %q", out.String())
	}
}

func TestSyncRepairsCollision(t *testing.T) {
	app := setupTestApp(t)
	localID := createIssue(t, app, "Local claim")
	writeSideLog(t, app, "laptop", remoteCreate(localID, "Remote claim", "zed"))

	out := app.Out.(*bytes.Buffer)
	cmd := newSyncCmd(NewTestProvider(app))
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if !strings.Contains(out.String(), "renamed "+localID) {
		t.Errorf("expected rename report for %s, got %q", localID, out.String())
	}

	state, _ := app.LoadState(context.Background())
	if len(state.Issues) != 2 {
		t.Fatalf("both sides of the collision must survive, got %d issues", len(state.Issues))
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	// Two replicas diverge, then exchange exports both ways. Afterwards
	// they hold identical issue sets.
	one := setupTestApp(t)
	two := setupTestApp(t)
	oneID := createIssue(t, one, "From replica one")
	twoID := createIssue(t, two, "From replica two")

	exchange := func(from, to *App) {
		t.Helper()
		path := filepath.Join(t.TempDir(), "export.jsonl")
		exportCmd := newExportCmd(NewTestProvider(from))
		exportCmd.SetArgs([]string{"-o", path})
		if err := exportCmd.Execute(); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		importCmd := newImportCmd(NewTestProvider(to))
		importCmd.SetArgs([]string{path})
		if err := importCmd.Execute(); err != nil {
			t.Fatalf("import failed: %v", err)
		}
	}
	exchange(one, two)
	exchange(two, one)

	for _, app := range []*App{one, two} {
		state, _ := app.LoadState(context.Background())
		for _, id := range []string{oneID, twoID} {
			if _, err := state.Get(id); err != nil {
				t.Errorf("replica missing %s after exchange: %v", id, err)
			}
		}
	}

	// The merged logs are byte-identical: same events, same canonical order.
	logOne, _ := os.ReadFile(one.Journal.LogPath())
	logTwo, _ := os.ReadFile(two.Journal.LogPath())
	if string(logOne) != string(logTwo) {
		t.Error("replicas should converge to the same log")
	}
}

func TestImportIdempotent(t *testing.T) {
	app := setupTestApp(t)
	createIssue(t, app, "Stable issue")

	path := filepath.Join(t.TempDir(), "export.jsonl")
	exportCmd := newExportCmd(NewTestProvider(app))
	exportCmd.SetArgs([]string{"-o", path})
	if err := exportCmd.Execute(); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	before, _ := os.ReadFile(app.Journal.LogPath())
	importCmd := newImportCmd(NewTestProvider(app))
	importCmd.SetArgs([]string{path})
	if err := importCmd.Execute(); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	after, _ := os.ReadFile(app.Journal.LogPath())
	if string(before) != string(after) {
		t.Error("importing an export of itself must not change the log")
	}
}
