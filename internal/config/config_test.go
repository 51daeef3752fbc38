package config

import (
	"testing"
)

func TestDefaultValues(t *testing.T) {
	defaults := DefaultValues()

	expected := map[string]string{
		"defaults.priority":       "2",
		"defaults.type":           "task",
		"id.prefix":               "br-",
		"actor":                   "${USER}",
		"project.name":            "issues",
		"hierarchy.max_depth":     "3",
		"compact.older_than_days": "30",
	}

	if len(defaults) != len(expected) {
		t.Fatalf("DefaultValues() has %d entries, want %d", len(defaults), len(expected))
	}

	for k, want := range expected {
		got, ok := defaults[k]
		if !ok {
			t.Errorf("DefaultValues() missing key %q", k)
			continue
		}
		if got != want {
			t.Errorf("DefaultValues()[%q] = %q, want %q", k, got, want)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	s := &memStore{data: map[string]string{
		"actor": "alice",
	}}

	if err := ApplyDefaults(s); err != nil {
		t.Fatalf("ApplyDefaults: %v", err)
	}

	// Pre-existing key should not be overwritten
	if v, _ := s.Get("actor"); v != "alice" {
		t.Errorf("actor = %q, want %q (should not be overwritten)", v, "alice")
	}

	// Missing keys should be filled from defaults
	if v, ok := s.Get("defaults.priority"); !ok || v != "2" {
		t.Errorf("defaults.priority = %q, %v; want %q, true", v, ok, "2")
	}
	if v, ok := s.Get("id.prefix"); !ok || v != "br-" {
		t.Errorf("id.prefix = %q, %v; want %q, true", v, ok, "br-")
	}
	if v, ok := s.Get("hierarchy.max_depth"); !ok || v != "3" {
		t.Errorf("hierarchy.max_depth = %q, %v; want %q, true", v, ok, "3")
	}
}

func TestApplyDefaults_AllPresent(t *testing.T) {
	s := &memStore{data: map[string]string{
		"defaults.priority":       "1",
		"defaults.type":           "bug",
		"id.prefix":               "x-",
		"actor":                   "bob",
		"project.name":            "work",
		"hierarchy.max_depth":     "2",
		"compact.older_than_days": "7",
	}}

	if err := ApplyDefaults(s); err != nil {
		t.Fatalf("ApplyDefaults: %v", err)
	}

	// No values should change
	if v, _ := s.Get("defaults.priority"); v != "1" {
		t.Errorf("defaults.priority = %q, want %q", v, "1")
	}
	if v, _ := s.Get("actor"); v != "bob" {
		t.Errorf("actor = %q, want %q", v, "bob")
	}
}

func TestValidate(t *testing.T) {
	s := &memStore{data: map[string]string{
		"defaults.priority":   "2",
		"defaults.type":       "task",
		"hierarchy.max_depth": "3",
	}}
	if err := Validate(s); err != nil {
		t.Errorf("Validate with valid values: %v", err)
	}

	s.data["defaults.type"] = "wish"
	s.data["hierarchy.max_depth"] = "zero"
	err := Validate(s)
	if err == nil {
		t.Fatal("Validate with invalid values should return error")
	}
}

// memStore is a simple in-memory Store for testing.
type memStore struct {
	data map[string]string
}

func (m *memStore) Get(key string) (string, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *memStore) Set(key, value string) error {
	m.data[key] = value
	return nil
}

func (m *memStore) SetInMemory(key, value string) {
	m.data[key] = value
}

func (m *memStore) Unset(key string) error {
	delete(m.data, key)
	return nil
}

func (m *memStore) All() map[string]string {
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}
