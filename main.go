// braid is the CLI for a git-native, dependency-aware issue tracker.
package main

import (
	"os"

	"braid/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
