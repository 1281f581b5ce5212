package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/milestones/internal/cli/formatter"
	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/service"
)

func newEntriesCmd(app *App, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entries",
		Aliases: []string{"entry", "e"},
		Short:   "List and change milestone entries",
		Long: `List and change milestone entries of the active period.

Entries are referenced as DATE/STAGE, with /n appended when a date holds
more than one row of a stage (2025-01-14/D1, 2025-01-14/D1/2), or by a
prefix of the LOCAL column.`,
	}
	cmd.AddCommand(
		newEntriesListCmd(app, opts),
		newEntriesAddCmd(app, opts),
		newEntriesEditCmd(app, opts),
		newEntriesRemoveCmd(app, opts),
		newEntriesStatusCmd(app, opts),
	)
	return cmd
}

func newEntriesListCmd(app *App, opts *rootOptions) *cobra.Command {
	var stageFlag string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List entries by stage",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var stage domain.Stage
			if stageFlag != "" {
				s, err := domain.ParseStage(stageFlag)
				if err != nil {
					return err
				}
				stage = s
			}
			ws, err := app.openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer closeWorkspace(cmd, ws)

			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatEntries(ws.Entries(), ws.Template(), ws.Progress(), stage))
			return nil
		},
	}
	cmd.Flags().StringVar(&stageFlag, "stage", "", "Only show one stage (D1, D2, D3)")
	return cmd
}

func newEntriesAddCmd(app *App, opts *rootOptions) *cobra.Command {
	var stageFlag, dateFlag, content string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a row to a stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stage, err := domain.ParseStage(stageFlag)
			if err != nil {
				return err
			}
			date, err := parseDateArg(dateFlag, app)
			if err != nil {
				return err
			}
			if err := domain.ValidateContent(content); err != nil {
				return err
			}
			ws, err := app.openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer closeWorkspace(cmd, ws)

			if strings.TrimSpace(content) != "" && !ws.Editable(date, stage) {
				return fmt.Errorf("adding %s row on %s: %w", stage, date, lockReason(ws, date, stage))
			}
			e, err := ws.AddEntry(cmd.Context(), stage, date)
			if err != nil {
				return err
			}
			if content != "" {
				if e, err = ws.EditContent(cmd.Context(), e.LocalID, content); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Added "+entryRef(ws, e)))
			return nil
		},
	}
	cmd.Flags().StringVar(&stageFlag, "stage", "D1", "Stage of the new row")
	cmd.Flags().StringVar(&dateFlag, "date", "", "Date of the new row (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&content, "content", "", "Content of the new row")
	return cmd
}

func newEntriesEditCmd(app *App, opts *rootOptions) *cobra.Command {
	var content string
	cmd := &cobra.Command{
		Use:   "edit <ref> [content...]",
		Short: "Replace the content of an entry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) > 1:
				content = strings.Join(args[1:], " ")
			case !cmd.Flags().Changed("content"):
				return fmt.Errorf("no content given; pass it after the reference or with --content")
			}
			ws, err := app.openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer closeWorkspace(cmd, ws)

			e, err := resolveEntry(ws.Entries(), args[0])
			if err != nil {
				return err
			}
			if !ws.Editable(e.Date, e.Stage) {
				return fmt.Errorf("editing %s: %w", args[0], lockReason(ws, e.Date, e.Stage))
			}
			e, err = ws.EditContent(cmd.Context(), e.LocalID, content)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Updated "+entryRef(ws, e)))
			return nil
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "New content; an empty value clears the entry")
	return cmd
}

func newEntriesRemoveCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <ref>",
		Aliases: []string{"rm"},
		Short:   "Remove an entry from the local set",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer closeWorkspace(cmd, ws)

			e, err := resolveEntry(ws.Entries(), args[0])
			if err != nil {
				return err
			}
			ref := entryRef(ws, e)
			if err := ws.RemoveEntry(cmd.Context(), e.LocalID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success("Removed "+ref))
			return nil
		},
	}
}

func newEntriesStatusCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <ref> [pending|in-progress|completed]",
		Short: "Change the status of an entry",
		Long: `Change the status of an entry. A draft with content is saved first to
obtain its server id; a draft without content cannot change status. Without
a status on a terminal, pick one interactively.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var status domain.EntryStatus
			if len(args) == 2 {
				s, err := domain.ParseEntryStatus(args[1])
				if err != nil {
					return err
				}
				status = s
			} else if !app.interactive() {
				return fmt.Errorf("no status given; pass pending, in-progress or completed")
			}

			ws, err := app.openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer closeWorkspace(cmd, ws)

			e, err := resolveEntry(ws.Entries(), args[0])
			if err != nil {
				return err
			}
			if status == "" {
				if err := statusForm(e.EffectiveStatus(), &status).Run(); err != nil {
					return err
				}
			}
			ref := entryRef(ws, e)
			err = app.withSpinner(cmd, "Changing status", func() error {
				return ws.ChangeStatus(cmd.Context(), e.LocalID, status)
			})
			if err != nil {
				return statusChangeError(ref, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(fmt.Sprintf("%s is now %s", ref, status.Label())))
			return nil
		},
	}
}

// statusChangeError tells a backend refusal apart from a backend that
// could not be reached. Input errors pass through unchanged.
func statusChangeError(ref string, err error) error {
	switch {
	case errors.Is(err, domain.ErrIdentifierMissing), errors.Is(err, domain.ErrStatusChangeInFlight):
		return err
	case service.IsRejection(err):
		return fmt.Errorf("backend refused the status change of %s: %w", ref, err)
	default:
		return fmt.Errorf("%s keeps its status, backend not reached: %w", ref, err)
	}
}

// entryRef returns the display reference of e in the current set.
func entryRef(ws service.EntryWorkspace, e domain.Entry) string {
	if ref, ok := formatter.EntryRefs(ws.Entries())[e.LocalID]; ok {
		return ref
	}
	return fmt.Sprintf("%s/%s", e.Date, e.Stage)
}

// lockReason explains why (date, stage) does not accept content.
func lockReason(ws service.EntryWorkspace, date domain.Date, stage domain.Stage) error {
	p := ws.Progress()
	prev, _ := stage.Previous()
	if !p.StageUnlocked(stage) {
		return fmt.Errorf("%w: %s needs %d more filled days", domain.ErrStageLocked, prev, p.Remaining(prev))
	}
	return fmt.Errorf("%w: fill %s on %s first", domain.ErrStageLocked, prev, date)
}
