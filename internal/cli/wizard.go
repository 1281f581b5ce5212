package cli

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/alexanderramin/milestones/internal/cli/formatter"
	"github.com/alexanderramin/milestones/internal/domain"
)

// milestonesHuhTheme matches huh forms to the formatter palette.
func milestonesHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true)
	t.Focused.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorGreen)
	t.Focused.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.TextInput.Cursor = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Prompt = lipgloss.NewStyle().Foreground(formatter.ColorHeader)
	t.Focused.TextInput.Text = lipgloss.NewStyle().Foreground(formatter.ColorFg)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectSelector = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.SelectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Blurred.UnselectedOption = lipgloss.NewStyle().Foreground(formatter.ColorDim)

	return t
}

// statusForm asks for a new status, starting at current.
func statusForm(current domain.EntryStatus, result *domain.EntryStatus) *huh.Form {
	*result = current
	opts := make([]huh.Option[domain.EntryStatus], 0, len(domain.Statuses))
	for _, s := range domain.Statuses {
		opts = append(opts, huh.NewOption(s.Label(), s))
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[domain.EntryStatus]().
				Title("Status").
				Options(opts...).
				Value(result),
		),
	).WithTheme(milestonesHuhTheme()).WithShowHelp(false)
}

// periodForm asks which schedule to open.
func periodForm(schedules []domain.Schedule, result *domain.Period) *huh.Form {
	opts := make([]huh.Option[domain.Period], 0, len(schedules))
	for _, s := range schedules {
		label := fmt.Sprintf("%s %s", s.QuarterParam(), formatter.MonthName(s.Month))
		if s.FinancialYear != "" {
			label += "  (FY " + s.FinancialYear + ")"
		}
		opts = append(opts, huh.NewOption(label, s.Period()))
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[domain.Period]().
				Title("Reporting period").
				Options(opts...).
				Value(result),
		),
	).WithTheme(milestonesHuhTheme()).WithShowHelp(false)
}
