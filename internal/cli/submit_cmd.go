package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexanderramin/milestones/internal/cli/formatter"
	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/service"
)

func newSubmitCmd(app *App, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Send every unsent change to the backend now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := app.openWorkspace(cmd, opts)
			if err != nil {
				return err
			}
			defer closeWorkspace(cmd, ws)

			var res service.SaveResult
			err = app.withSpinner(cmd, "Submitting", func() error {
				var serr error
				res, serr = ws.Submit(cmd.Context())
				return serr
			})
			fmt.Fprint(cmd.OutOrStdout(), formatSaveResult(res))
			if err != nil {
				return fmt.Errorf("submitting: %w", err)
			}
			return nil
		},
	}
}

func formatSaveResult(res service.SaveResult) string {
	var b strings.Builder
	if res.Writes() == 0 && len(res.Failed) == 0 {
		b.WriteString("Nothing to submit; every change is already sent.\n")
		return b.String()
	}
	if n := res.Writes(); n > 0 {
		days := make([]string, 0, n)
		for _, d := range res.Saved {
			days = append(days, d.String())
		}
		sort.Strings(days)
		b.WriteString(formatter.Success(fmt.Sprintf("Submitted %d %s (%s), %d new ids",
			n, plural(n, "day", "days"), strings.Join(days, ", "), res.Assigned)))
		b.WriteString("\n")
	}
	for _, d := range sortedFailed(res) {
		b.WriteString(formatter.StyleRed.Render(fmt.Sprintf("✖ %s: %v", d, res.Failed[d])))
		b.WriteString("\n")
	}
	return b.String()
}

func sortedFailed(res service.SaveResult) []domain.Date {
	out := make([]domain.Date, 0, len(res.Failed))
	for d := range res.Failed {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
