package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// newVersionCmd creates the version command.
func newVersionCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the braid version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider.JSONOutput {
				out := provider.Out
				return json.NewEncoder(out).Encode(map[string]string{"version": Version})
			}
			fmt.Fprintf(provider.Out, "braid %s\n", Version)
			return nil
		},
	}
	return cmd
}
