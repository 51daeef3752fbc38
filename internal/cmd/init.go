package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"braid/internal/config"
	"braid/internal/config/yamlstore"
	"braid/internal/journal"
)

// newInitCmd creates the init command. Init does not go through the
// provider: there is no workspace to resolve yet.
func newInitCmd(provider *AppProvider) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a braid workspace in the current directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := provider.BraidPath
			if dir == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				dir = filepath.Join(cwd, config.DirName)
			}

			j := journal.New(dir)
			if err := j.Init(cmd.Context()); err != nil {
				return fmt.Errorf("initializing workspace: %w", err)
			}

			configStore, err := yamlstore.New(filepath.Join(dir, config.ConfigFileName))
			if err != nil {
				return err
			}
			if prefix != "" {
				if err := configStore.Set("id.prefix", prefix); err != nil {
					return err
				}
			}
			if err := config.ApplyDefaults(configStore); err != nil {
				return err
			}

			if provider.JSONOutput {
				return json.NewEncoder(provider.Out).Encode(map[string]string{"workspace": dir})
			}
			fmt.Fprintf(provider.Out, "Initialized braid workspace in %s\n", dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "Issue id prefix (default br-)")

	return cmd
}
