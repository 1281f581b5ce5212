package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexanderramin/milestones/internal/domain"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen  = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleRed    = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue   = lipgloss.NewStyle().Foreground(ColorBlue)
	StyleDim    = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg     = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold   = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// StatusStyle returns the style an entry status is shown in.
func StatusStyle(status domain.EntryStatus) lipgloss.Style {
	switch status {
	case domain.StatusCompleted:
		return StyleGreen
	case domain.StatusInProgress:
		return StyleYellow
	default:
		return StyleFg
	}
}

// StatusLabel renders the colored label of status.
func StatusLabel(status domain.EntryStatus) string {
	if status == "" {
		status = domain.StatusPending
	}
	return StatusStyle(status).Render(status.Label())
}

// Header renders an upper-cased section header underlined with a rule.
func Header(text string) string {
	upper := strings.ToUpper(text)
	line := strings.Repeat("─", lipgloss.Width(upper))
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(upper), StyleDim.Render(line))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}

// Success prefixes msg with a green check mark.
func Success(msg string) string {
	return StyleGreen.Render("✔") + " " + msg
}

// Warning prefixes msg with a yellow marker.
func Warning(msg string) string {
	return StyleYellow.Render("!") + " " + msg
}
