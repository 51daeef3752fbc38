package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths captures resolved locations for a braid workspace.
type Paths struct {
	ConfigDir  string // path to the .braid directory
	ConfigFile string // path to .braid/config.yml
}

// ConfigFileName is the settings file inside the .braid directory.
const ConfigFileName = "config.yml"

// DirName is the workspace directory created by `braid init`.
const DirName = ".braid"

// ResolvePaths locates the workspace directory. An explicit base (flag or
// BRAID_DIR) wins; otherwise the search walks upward from the working
// directory, git-style, until a .braid directory is found.
func ResolvePaths(base string) (Paths, error) {
	if base == "" {
		base = os.Getenv(EnvBraidDir)
	}
	if base != "" {
		info, err := os.Stat(base)
		if err != nil {
			return Paths{}, fmt.Errorf("workspace %s: %w", base, err)
		}
		if !info.IsDir() {
			return Paths{}, fmt.Errorf("workspace %s is not a directory", base)
		}
		return Paths{ConfigDir: base, ConfigFile: filepath.Join(base, ConfigFileName)}, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return Paths{}, err
	}
	for {
		candidate := filepath.Join(dir, DirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return Paths{ConfigDir: candidate, ConfigFile: filepath.Join(candidate, ConfigFileName)}, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Paths{}, fmt.Errorf("no %s directory found (run `braid init` first)", DirName)
		}
		dir = parent
	}
}
