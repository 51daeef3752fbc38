package config

import (
	"strconv"

	"braid/internal/idgen"
)

// DefaultValues returns the default config map for the core keys.
func DefaultValues() map[string]string {
	return map[string]string{
		"defaults.priority":       "2",
		"defaults.type":           "task",
		"id.prefix":               "br-",
		"actor":                   "${USER}",
		"project.name":            "issues",
		"hierarchy.max_depth":     strconv.Itoa(idgen.DefaultMaxDepth),
		"compact.older_than_days": "30",
	}
}

// ApplyDefaults fills any missing core keys in s with their default values.
func ApplyDefaults(s Store) error {
	defaults := DefaultValues()
	all := s.All()
	for k, v := range defaults {
		if _, exists := all[k]; !exists {
			if err := s.Set(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}
