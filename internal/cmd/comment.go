package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"braid/internal/store"
)

// newCommentCmd creates the comment command.
func newCommentCmd(provider *AppProvider) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment <id> [text]",
		Short: "Add a comment to an issue",
		Long: `Add a comment to an issue. Reads the comment text from the argument,
or from stdin when the argument is omitted or is "-".`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := provider.Get()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			text := ""
			if len(args) == 2 {
				text = args[1]
			}
			if text == "" || text == "-" {
				data, err := io.ReadAll(bufio.NewReader(os.Stdin))
				if err != nil {
					return fmt.Errorf("reading comment from stdin: %w", err)
				}
				text = strings.TrimSpace(string(data))
			}
			if text == "" {
				return fmt.Errorf("comment text must not be empty")
			}

			state, err := app.LoadState(ctx)
			if err != nil {
				return err
			}
			if _, err := state.Get(args[0]); err != nil {
				return err
			}

			event := app.Event(state, args[0], store.EventComment)
			event.Comment = &store.Comment{
				Author:    app.Actor(),
				Text:      text,
				CreatedAt: time.Now().UTC(),
			}
			if err := app.Journal.Append(ctx, event); err != nil {
				return err
			}

			if app.JSON {
				return json.NewEncoder(app.Out).Encode(map[string]any{"id": args[0], "commented": true})
			}
			fmt.Fprintf(app.Out, "Commented on %s\n", args[0])
			return nil
		},
	}
	return cmd
}
