package config

import "os"

// Environment variable names for braid configuration.
const (
	EnvBraidDir = "BRAID_DIR"     // Path to .braid directory
	EnvActor    = "BRAID_ACTOR"   // Override actor name
	EnvProject  = "BRAID_PROJECT" // Override project name
	EnvJSON     = "BRAID_JSON"    // Enable JSON output ("1" or "true")
	EnvQuiet    = "BRAID_QUIET"   // Suppress non-error output ("1" or "true")
)

// ApplyEnvOverrides checks BRAID_ACTOR and BRAID_PROJECT env vars
// and overrides the corresponding config values in memory.
// These overrides are not persisted to the config file.
func ApplyEnvOverrides(s Store) {
	if actor := os.Getenv(EnvActor); actor != "" {
		s.SetInMemory("actor", actor)
	}
	if project := os.Getenv(EnvProject); project != "" {
		s.SetInMemory("project.name", project)
	}
}
