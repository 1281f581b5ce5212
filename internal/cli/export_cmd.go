package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/milestones/internal/cli/formatter"
	"github.com/alexanderramin/milestones/internal/service"
)

func newExportCmd(app *App, opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the period's entries to an Excel workbook",
		Long: `Write the period's entries to an Excel workbook with one sheet per
stage. Use --out - to write the workbook to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer closeWorkspace(cmd, ws)

			in := ws.ExportInput()
			if out == "-" {
				return service.WriteWorkbook(cmd.OutOrStdout(), in)
			}
			path := out
			if path == "" {
				path = defaultExportName(in)
			}
			if err := service.ExportWorkbook(path, in); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(fmt.Sprintf("Wrote %d %s to %s",
				len(in.Entries), plural(len(in.Entries), "entry", "entries"), path)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default milestones-<user>-<quarter>-<month>.xlsx)")
	return cmd
}

func defaultExportName(in service.ExportInput) string {
	if in.Schedule == nil {
		return fmt.Sprintf("milestones-%s.xlsx", in.Username)
	}
	return fmt.Sprintf("milestones-%s-%s-%02d.xlsx", in.Username, in.Schedule.QuarterParam(), in.Schedule.Month)
}
