package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"braid/internal/journal"
)

// mapConfigStore is a minimal config.Store backed by a map, for tests.
type mapConfigStore struct {
	data map[string]string
}

func (m *mapConfigStore) Get(key string) (string, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mapConfigStore) Set(key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mapConfigStore) SetInMemory(key, value string) {
	m.data[key] = value
}

func (m *mapConfigStore) Unset(key string) error {
	delete(m.data, key)
	return nil
}

func (m *mapConfigStore) All() map[string]string {
	cp := make(map[string]string, len(m.data))
	for k, v := range m.data {
		cp[k] = v
	}
	return cp
}

func setupTestApp(t *testing.T) *App {
	t.Helper()
	dir := filepath.Join(t.TempDir(), ".braid")
	j := journal.New(dir)
	if err := j.Init(context.Background()); err != nil {
		t.Fatalf("failed to init workspace: %v", err)
	}
	return &App{
		Journal:     j,
		ConfigStore: &mapConfigStore{data: map[string]string{"actor": "tester"}},
		ConfigDir:   dir,
		Out:         &bytes.Buffer{},
		Err:         &bytes.Buffer{},
	}
}

// createIssue runs the create command and returns the new issue's id.
func createIssue(t *testing.T, app *App, args ...string) string {
	t.Helper()
	out := app.Out.(*bytes.Buffer)
	out.Reset()
	cmd := newCreateCmd(NewTestProvider(app))
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("create %v failed: %v", args, err)
	}
	id := strings.TrimSpace(out.String())
	out.Reset()
	if id == "" {
		t.Fatal("create produced no id")
	}
	return id
}

func TestResolveActorFromConfigStore(t *testing.T) {
	store := &mapConfigStore{data: map[string]string{"actor": "config-actor"}}
	if got := resolveActor(store); got != "config-actor" {
		t.Errorf("expected %q, got %q", "config-actor", got)
	}
}

func TestResolveActorSkipsPlaceholder(t *testing.T) {
	// "${USER}" is the unexpanded placeholder default, never a real actor.
	store := &mapConfigStore{data: map[string]string{"actor": "${USER}"}}
	if got := resolveActor(store); got == "${USER}" {
		t.Error("should not return literal ${USER}")
	}
}

func TestResolveActorNeverEmpty(t *testing.T) {
	if got := resolveActor(nil); got == "" {
		t.Error("resolveActor should always produce some identity")
	}
}

func TestSplitLabels(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"backend", []string{"backend"}},
		{"backend,urgent", []string{"backend", "urgent"}},
	}
	for _, tt := range tests {
		got := splitLabels(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitLabels(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitLabels(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}

func TestParseTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	if got := parseTime(at.Format(time.RFC3339Nano)); !got.Equal(at) {
		t.Errorf("round trip mismatch: got %v, want %v", got, at)
	}
	if got := parseTime("garbage"); !got.IsZero() {
		t.Errorf("bad input should yield zero time, got %v", got)
	}
}
