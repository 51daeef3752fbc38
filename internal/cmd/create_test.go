package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"braid/internal/store"
)

func TestCreateBasic(t *testing.T) {
	app := setupTestApp(t)
	id := createIssue(t, app, "Fix login bug")

	if !strings.HasPrefix(id, "br-") {
		t.Errorf("expected id to start with br-, got %q", id)
	}

	state, err := app.LoadState(context.Background())
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	issue, err := state.Get(id)
	if err != nil {
		t.Fatalf("failed to get issue: %v", err)
	}
	if issue.Title != "Fix login bug" {
		t.Errorf("expected title %q, got %q", "Fix login bug", issue.Title)
	}
	if issue.Type != store.TypeTask {
		t.Errorf("expected type %q, got %q", store.TypeTask, issue.Type)
	}
	if issue.Priority != store.PriorityMedium {
		t.Errorf("expected priority %v, got %v", store.PriorityMedium, issue.Priority)
	}
	if issue.Status != store.StatusOpen {
		t.Errorf("expected status %q, got %q", store.StatusOpen, issue.Status)
	}
	if issue.CreatedBy != "tester" {
		t.Errorf("expected created_by %q, got %q", "tester", issue.CreatedBy)
	}
}

func TestCreateWithTypeAndPriority(t *testing.T) {
	tests := []struct {
		typeFlag     string
		priorityFlag string
		wantType     store.IssueType
		wantPriority store.Priority
	}{
		{"bug", "0", store.TypeBug, store.PriorityCritical},
		{"feature", "p1", store.TypeFeature, store.PriorityHigh},
		{"epic", "high", store.TypeEpic, store.PriorityHigh},
		{"chore", "backlog", store.TypeChore, store.PriorityBacklog},
	}

	for _, tt := range tests {
		t.Run(tt.typeFlag+"/"+tt.priorityFlag, func(t *testing.T) {
			app := setupTestApp(t)
			id := createIssue(t, app, "Test issue", "--type", tt.typeFlag, "--priority", tt.priorityFlag)

			state, _ := app.LoadState(context.Background())
			issue, _ := state.Get(id)
			if issue.Type != tt.wantType {
				t.Errorf("expected type %q, got %q", tt.wantType, issue.Type)
			}
			if issue.Priority != tt.wantPriority {
				t.Errorf("expected priority %v, got %v", tt.wantPriority, issue.Priority)
			}
		})
	}
}

func TestCreateConfigDefaults(t *testing.T) {
	app := setupTestApp(t)
	app.ConfigStore.SetInMemory("defaults.type", "bug")
	app.ConfigStore.SetInMemory("defaults.priority", "1")

	id := createIssue(t, app, "Defaulted issue")

	state, _ := app.LoadState(context.Background())
	issue, _ := state.Get(id)
	if issue.Type != store.TypeBug {
		t.Errorf("expected configured default type bug, got %q", issue.Type)
	}
	if issue.Priority != store.PriorityHigh {
		t.Errorf("expected configured default priority 1, got %v", issue.Priority)
	}

	// An explicit flag still wins over the configured default.
	id2 := createIssue(t, app, "Explicit issue", "--type", "chore")
	state, _ = app.LoadState(context.Background())
	issue2, _ := state.Get(id2)
	if issue2.Type != store.TypeChore {
		t.Errorf("flag should override config default, got %q", issue2.Type)
	}
}

func TestCreateWithLabelsAndAssignee(t *testing.T) {
	app := setupTestApp(t)
	id := createIssue(t, app, "Test issue", "-l", "backend", "-l", "urgent", "-a", "alice")

	state, _ := app.LoadState(context.Background())
	issue, _ := state.Get(id)
	if len(issue.Labels) != 2 {
		t.Fatalf("expected 2 labels, got %v", issue.Labels)
	}
	if issue.Assignee != "alice" {
		t.Errorf("expected assignee alice, got %q", issue.Assignee)
	}
}

func TestCreateWithParent(t *testing.T) {
	app := setupTestApp(t)
	parentID := createIssue(t, app, "Parent epic", "--type", "epic")

	childID := createIssue(t, app, "Child task", "--parent", parentID)
	if childID != parentID+".1" {
		t.Errorf("expected child id %q, got %q", parentID+".1", childID)
	}

	secondID := createIssue(t, app, "Second child", "--parent", parentID)
	if secondID != parentID+".2" {
		t.Errorf("expected second child id %q, got %q", parentID+".2", secondID)
	}

	grandchildID := createIssue(t, app, "Grandchild", "--parent", childID)
	if grandchildID != childID+".1" {
		t.Errorf("expected grandchild id %q, got %q", childID+".1", grandchildID)
	}

	state, _ := app.LoadState(context.Background())
	child, _ := state.Get(childID)
	if child.ParentID != parentID {
		t.Errorf("expected parent %q, got %q", parentID, child.ParentID)
	}
}

func TestCreateParentNotFound(t *testing.T) {
	app := setupTestApp(t)
	cmd := newCreateCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"Orphan", "--parent", "br-nope"})
	err := cmd.Execute()
	if !errors.Is(err, store.ErrInvalidParent) {
		t.Errorf("expected ErrInvalidParent, got %v", err)
	}
}

func TestCreateDepthLimit(t *testing.T) {
	app := setupTestApp(t)
	app.ConfigStore.SetInMemory("hierarchy.max_depth", "1")

	parentID := createIssue(t, app, "Parent")
	childID := createIssue(t, app, "Child", "--parent", parentID)

	cmd := newCreateCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"Too deep", "--parent", childID})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error creating child past max_depth=1")
	}
}

func TestCreateWithDependsOn(t *testing.T) {
	app := setupTestApp(t)
	depID := createIssue(t, app, "Dependency")
	id := createIssue(t, app, "Dependent", "--depends-on", depID)

	state, _ := app.LoadState(context.Background())
	edge := store.Edge{DependentID: id, DependencyID: depID, Type: store.EdgeBlocks}
	if !state.HasEdge(edge) {
		t.Errorf("expected blocks edge %s -> %s", id, depID)
	}
}

func TestCreateDependsOnMissing(t *testing.T) {
	app := setupTestApp(t)
	cmd := newCreateCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"Dependent", "--depends-on", "br-nope"})
	err := cmd.Execute()
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	// A failed create must not leave partial events in the log.
	state, _ := app.LoadState(context.Background())
	if len(state.Issues) != 0 {
		t.Errorf("expected empty state after failed create, got %d issues", len(state.Issues))
	}
}

func TestCreateJSONOutput(t *testing.T) {
	app := setupTestApp(t)
	app.JSON = true
	out := app.Out.(*bytes.Buffer)

	cmd := newCreateCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"Test issue"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var result map[string]string
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if !strings.HasPrefix(result["id"], "br-") {
		t.Errorf("expected id starting with br-, got %q", result["id"])
	}
}

func TestCreateInvalidType(t *testing.T) {
	app := setupTestApp(t)
	cmd := newCreateCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"Test issue", "--type", "nonsense"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for invalid type")
	}
}

func TestCreateEmptyTitle(t *testing.T) {
	app := setupTestApp(t)
	cmd := newCreateCmd(NewTestProvider(app))
	cmd.SetArgs([]string{"   "})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for blank title")
	}
}

func TestCreateCustomPrefix(t *testing.T) {
	app := setupTestApp(t)
	app.ConfigStore.SetInMemory("id.prefix", "proj")

	id := createIssue(t, app, "Prefixed issue")
	if !strings.HasPrefix(id, "proj-") {
		t.Errorf("expected id with normalized proj- prefix, got %q", id)
	}
}
