package testutil

import (
	"sync/atomic"

	"github.com/alexanderramin/milestones/internal/domain"
)

var testSeqCounter atomic.Int64

// Entry options
type EntryOption func(*domain.Entry)

func WithContent(content string) EntryOption {
	return func(e *domain.Entry) {
		e.Content = content
	}
}

func WithServerID(id int64) EntryOption {
	return func(e *domain.Entry) {
		e.ServerID = domain.ServerIDPtr(id)
	}
}

func WithStatus(s domain.EntryStatus) EntryOption {
	return func(e *domain.Entry) {
		e.Status = s
	}
}

func WithLocalID(id string) EntryOption {
	return func(e *domain.Entry) {
		e.LocalID = id
	}
}

// NewTestEntry builds an entry for date (YYYY-MM-DD) and stage. Seq values
// increase across calls so fixtures keep their construction order.
func NewTestEntry(date string, stage domain.Stage, opts ...EntryOption) domain.Entry {
	e := domain.NewEntry(domain.MustParseDate(date), stage)
	e.Seq = testSeqCounter.Add(1)
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// FilledDays returns n entries of stage on n consecutive dates starting at
// start, each with non-empty content.
func FilledDays(stage domain.Stage, start string, n int) []domain.Entry {
	first := domain.MustParseDate(start).Time()
	entries := make([]domain.Entry, 0, n)
	for i := 0; i < n; i++ {
		d := domain.DateOf(first.AddDate(0, 0, i))
		entries = append(entries, NewTestEntry(d.String(), stage, WithContent(string(stage)+" day "+d.String())))
	}
	return entries
}

// Schedule options
type ScheduleOption func(*domain.Schedule)

func WithQuarterLabel(label string) ScheduleOption {
	return func(s *domain.Schedule) {
		s.QuarterLabel = label
		s.Quarter = domain.DeriveQuarter(label, s.Month)
	}
}

func WithFinancialYear(fy string) ScheduleOption {
	return func(s *domain.Schedule) {
		s.FinancialYear = fy
	}
}

func WithTemplate(t domain.MeetingTemplate) ScheduleOption {
	return func(s *domain.Schedule) {
		s.Template = &t
	}
}

func NewTestSchedule(id int64, username string, month int, opts ...ScheduleOption) domain.Schedule {
	s := domain.Schedule{
		ID:       id,
		Username: username,
		Month:    month,
		Quarter:  domain.DeriveQuarter("", month),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
