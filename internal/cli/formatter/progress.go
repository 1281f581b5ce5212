package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/progression"
)

const (
	filledBlock = "█"
	emptyBlock  = "░"
)

// RenderProgress renders a bar like [████░░░░]  45%, red below a third,
// yellow below two thirds, green above.
func RenderProgress(pct float64, width int) string {
	pct = min(max(pct, 0), 1)
	width = max(width, 2)
	filled := min(int(pct*float64(width)), width)

	bar := strings.Repeat(filledBlock, filled) + strings.Repeat(emptyBlock, width-filled)
	style := StyleGreen
	switch {
	case pct < 0.33:
		style = StyleRed
	case pct < 0.66:
		style = StyleYellow
	}
	return fmt.Sprintf("[%s] %3.0f%%", style.Render(bar), pct*100)
}

// FormatProgress shows per-stage day counts toward the unlock threshold
// and what the next unlock needs.
func FormatProgress(p progression.Progress) string {
	var b strings.Builder
	b.WriteString(Header("Progress"))
	b.WriteString("\n")
	for i, stage := range domain.Stages {
		days := p.DaysFilled[i]
		pct := float64(days) / float64(progression.DaysRequired)
		line := fmt.Sprintf("%s  %s  %d/%d days", stage, RenderProgress(pct, 10), days, progression.DaysRequired)
		if !p.StageUnlocked(stage) {
			line += "  " + Dim("locked")
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
	b.WriteString(NextUnlock(p) + "\n")
	return b.String()
}

// NextUnlock describes what the next locked stage still needs.
func NextUnlock(p progression.Progress) string {
	for _, stage := range domain.Stages {
		if p.StageUnlocked(stage) {
			continue
		}
		prev, _ := stage.Previous()
		return fmt.Sprintf("Fill %s on %d more days to unlock %s.", prev, p.Remaining(prev), stage)
	}
	return "All stages unlocked."
}
