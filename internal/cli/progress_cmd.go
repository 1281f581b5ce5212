package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/milestones/internal/cli/formatter"
)

func newProgressCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show how far each stage is from unlocking the next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer closeWorkspace(cmd, ws)

			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatProgress(ws.Progress()))
			return nil
		},
	}
}
