package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/milestones/internal/domain"
)

// PeriodInfo is what `period show` prints.
type PeriodInfo struct {
	Owner       string
	Caller      string
	Supervisory bool
	Schedule    *domain.Schedule
	Template    domain.MeetingTemplate
	// Match is the rule that picked the schedule: requested, current,
	// first or none.
	Match     string
	Dirty     bool
	LoadError error
}

const labelWidth = 11

func field(b *strings.Builder, label, value string) {
	b.WriteString(Dim(fmt.Sprintf("%-*s", labelWidth, label)))
	b.WriteString(value)
	b.WriteString("\n")
}

// FormatPeriod renders the active reporting period.
func FormatPeriod(info PeriodInfo) string {
	var b strings.Builder
	b.WriteString(Header("Period"))
	b.WriteString("\n")

	user := info.Owner
	if info.Supervisory {
		user += Dim(fmt.Sprintf(" (viewed by %s)", info.Caller))
	}
	field(&b, "User", user)
	field(&b, "Schedule", ScheduleLabel(info.Schedule))
	field(&b, "Picked by", matchLabel(info.Match))

	head := info.Template.Head
	if head == "" {
		head = Dim("-")
	}
	field(&b, "Heading", head)
	headings := make([]string, 0, len(domain.Stages))
	for _, s := range domain.Stages {
		headings = append(headings, fmt.Sprintf("%s %s", s, info.Template.StageHeading(s)))
	}
	field(&b, "Stages", strings.Join(headings, ", "))

	if info.Dirty {
		field(&b, "Changes", StyleYellow.Render("not yet sent"))
	} else {
		field(&b, "Changes", "all sent")
	}
	if info.LoadError != nil {
		field(&b, "Warning", StyleRed.Render("entries unavailable: "+info.LoadError.Error()))
	}
	return b.String()
}

// ScheduleLabel renders a schedule as "#42  Q4 January  FY 2024-2025".
func ScheduleLabel(s *domain.Schedule) string {
	if s == nil {
		return Dim("none")
	}
	label := fmt.Sprintf("#%d  %s %s", s.ID, s.QuarterParam(), MonthName(s.Month))
	if s.FinancialYear != "" {
		label += "  FY " + s.FinancialYear
	}
	return label
}

// MonthName returns the English name of month 1-12, or "month N".
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return fmt.Sprintf("month %d", month)
	}
	return time.Month(month).String()
}

func matchLabel(rule string) string {
	switch rule {
	case "requested":
		return "requested period"
	case "current":
		return "current month"
	case "first":
		return "first available"
	default:
		return Dim("no schedules")
	}
}
