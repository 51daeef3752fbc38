package cmd

import (
	"os"
	"os/exec"
	"strings"
	"time"

	"braid/internal/config"
)

// resolveActor determines the identity recorded on log events.
// Resolution priority:
//  1. BRAID_ACTOR env var (applied to the config store by ApplyEnvOverrides)
//  2. actor key in config.yml (unless it is the ${USER} placeholder)
//  3. git config user.name
//  4. $USER env var
//  5. "unknown"
func resolveActor(store config.Store) string {
	if store != nil {
		if actor, ok := store.Get("actor"); ok && actor != "" && actor != "${USER}" {
			return actor
		}
	}

	if out, err := exec.Command("git", "config", "user.name").Output(); err == nil {
		if name := strings.TrimSpace(string(out)); name != "" {
			return name
		}
	}

	if user := os.Getenv("USER"); user != "" {
		return user
	}

	return "unknown"
}

// splitLabels undoes the comma-joined label column in the cache.
func splitLabels(joined string) []string {
	var out []string
	for _, label := range strings.Split(joined, ",") {
		if label != "" {
			out = append(out, label)
		}
	}
	return out
}

// parseTime parses the RFC3339Nano timestamps the cache stores. A bad
// value yields the zero time rather than an error; the log remains the
// source of truth.
func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
