package domain

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar day with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// dateLayouts are tried in order by ParseDate. The backend writes days as
// day-month-year without zero padding; older records use ISO dates or full
// timestamps.
var dateLayouts = []string{
	dateLayout,
	"2-1-2006",
	"02-01-2006",
	"2/1/2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a day in any of the accepted layouts.
func ParseDate(s string) (Date, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return Date{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

// MustParseDate is like ParseDate but panics on error.
// Use only in tests or when the input is a literal.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dateLayout)
}

// BackendString formats d the way the day-entries endpoint expects it:
// day-month-year, not zero padded (14-1-2025).
func (d Date) BackendString() string {
	return fmt.Sprintf("%d-%d-%d", d.Day, int(d.Month), d.Year)
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}
