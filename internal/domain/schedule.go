package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Schedule is one reporting period for one user.
type Schedule struct {
	ID                int64
	Username          string
	Month             int
	Quarter           int
	QuarterLabel      string
	FinancialYear     string
	MeetingTemplateID string

	// Template holds heading fields embedded in the schedule record, if any.
	Template *MeetingTemplate
}

// QuarterParam renders the quarter the way the entries endpoint expects it.
func (s Schedule) QuarterParam() string {
	if s.QuarterLabel != "" {
		return s.QuarterLabel
	}
	return fmt.Sprintf("Q%d", s.Quarter)
}

// Period returns the (quarter, month) selection this schedule answers.
func (s Schedule) Period() Period {
	return Period{Quarter: s.Quarter, Month: s.Month}
}

// MeetingTemplate holds the section headings for one (department, month).
type MeetingTemplate struct {
	Head     string
	SubHead  string
	SubHeads [3]string
}

// StageHeading returns the heading for stage, falling back to the stage name.
func (t MeetingTemplate) StageHeading(stage Stage) string {
	i := stage.Index()
	if i >= 0 && strings.TrimSpace(t.SubHeads[i]) != "" {
		return t.SubHeads[i]
	}
	return "Stage " + string(stage)
}

// IsZero reports whether no heading is set.
func (t MeetingTemplate) IsZero() bool {
	return t.Head == "" && t.SubHead == "" && t.SubHeads == [3]string{}
}

// Period is a (quarter, month) selection.
type Period struct {
	Quarter int
	Month   int
}

// DeriveQuarter takes the quarter from the trailing digits of label
// ("Q4" -> 4). Without usable digits it falls back to ceil(month/3).
func DeriveQuarter(label string, month int) int {
	v := strings.TrimSpace(label)
	end := len(v)
	start := end
	for start > 0 && unicode.IsDigit(rune(v[start-1])) {
		start--
	}
	if start < end {
		if q, err := strconv.Atoi(v[start:end]); err == nil && q >= 1 && q <= 4 {
			return q
		}
	}
	if month < 1 || month > 12 {
		return 0
	}
	return (month + 2) / 3
}

// FinancialYearContains reports whether year falls inside fy, where fy is
// either a single year ("2025") or an inclusive "startYear-endYear" range.
func FinancialYearContains(fy string, year int) bool {
	v := strings.TrimSpace(fy)
	if v == "" {
		return false
	}
	if start, end, ok := strings.Cut(v, "-"); ok {
		s, err1 := strconv.Atoi(strings.TrimSpace(start))
		e, err2 := strconv.Atoi(strings.TrimSpace(end))
		if err1 != nil || err2 != nil {
			return false
		}
		if e < 100 {
			// Short form such as "2024-25".
			e += (s / 100) * 100
		}
		return year >= s && year <= e
	}
	y, err := strconv.Atoi(v)
	if err != nil {
		return false
	}
	return y == year
}

// ParseMonth accepts 1-12, full English month names and prefixes of at
// least three letters ("jan", "Sept").
func ParseMonth(s string) (int, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(k); err == nil {
		if n >= 1 && n <= 12 {
			return n, nil
		}
		return 0, fmt.Errorf("month %d out of range", n)
	}
	if len(k) >= 3 {
		for m := time.January; m <= time.December; m++ {
			if strings.HasPrefix(strings.ToLower(m.String()), k) {
				return int(m), nil
			}
		}
	}
	return 0, fmt.Errorf("unknown month %q", s)
}

// ParseQuarter accepts "Q4", "q4" and "4".
func ParseQuarter(s string) (int, error) {
	v := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "Q")
	q, err := strconv.Atoi(v)
	if err != nil || q < 1 || q > 4 {
		return 0, fmt.Errorf("unknown quarter %q", s)
	}
	return q, nil
}
