package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/alexanderramin/milestones/internal/domain"
)

func newEditCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit entries interactively, stage by stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.interactive() {
				return fmt.Errorf("edit needs an interactive terminal; use `milestones entries` instead")
			}
			ws, err := app.openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer closeWorkspace(cmd, ws)

			model := newEditorModel(cmd.Context(), ws, domain.DateOf(app.now()))
			_, err = tea.NewProgram(model,
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
			).Run()
			return err
		},
	}
}
