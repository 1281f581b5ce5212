package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/milestones/internal/cli/formatter"
	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/service"
)

func newPeriodCmd(app *App, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Show or pick the reporting period",
	}
	cmd.AddCommand(
		newPeriodShowCmd(app, opts),
		newPeriodSelectCmd(app, opts),
	)
	return cmd
}

func newPeriodShowCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active reporting period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer closeWorkspace(cmd, ws)

			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPeriod(periodInfo(ws)))
			return nil
		},
	}
}

func newPeriodSelectCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select [month] [quarter]",
		Short: "Switch to another reporting period and remember it",
		Long: `Switch to another reporting period. Month accepts 1-12 or a name
("jan", "September"); quarter accepts Q1-Q4. Without arguments on a
terminal, pick from the schedules the backend offers.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer closeWorkspace(cmd, ws)

			var period domain.Period
			switch {
			case len(args) > 0:
				if period.Month, err = domain.ParseMonth(args[0]); err != nil {
					return err
				}
				if len(args) == 2 {
					if period.Quarter, err = domain.ParseQuarter(args[1]); err != nil {
						return err
					}
				}
			case app.interactive():
				schedules, err := app.Client.ListSchedules(cmd.Context(), ws.Owner())
				if err != nil {
					return fmt.Errorf("listing periods: %w", err)
				}
				if len(schedules) == 0 {
					return domain.ErrNoSchedule
				}
				if err := periodForm(schedules, &period).Run(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("give a month, and optionally a quarter, e.g. `period select jan Q4`")
			}

			err = ws.SelectPeriod(cmd.Context(), period.Quarter, period.Month)
			switch {
			case errors.Is(err, domain.ErrNoSchedule):
				return err
			case err != nil:
				fmt.Fprintln(cmd.ErrOrStderr(), formatter.Warning("entries unavailable, showing local data: "+err.Error()))
			}
			if ws.Resolution().Match != service.MatchRequested {
				fmt.Fprintln(cmd.ErrOrStderr(), formatter.Warning("no schedule matches that period; opened the first one instead"))
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPeriod(periodInfo(ws)))
			return nil
		},
	}
}

func periodInfo(ws service.EntryWorkspace) formatter.PeriodInfo {
	res := ws.Resolution()
	return formatter.PeriodInfo{
		Owner:       ws.Owner(),
		Caller:      ws.Caller(),
		Supervisory: ws.Supervisory(),
		Schedule:    res.Schedule,
		Template:    res.Template,
		Match:       string(res.Match),
		Dirty:       ws.Dirty(),
		LoadError:   ws.LoadError(),
	}
}
