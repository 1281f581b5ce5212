package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/domain"
)

// MatchRule records which selection rule picked a schedule.
type MatchRule string

const (
	MatchRequested MatchRule = "requested"
	MatchCurrent   MatchRule = "current"
	MatchFirst     MatchRule = "first"
	MatchNone      MatchRule = "none"
)

// ResolveRequest asks for the schedule of Subject. An empty Subject means
// the caller is resolving for themselves. Zero Quarter/Month means no
// explicit selection yet.
type ResolveRequest struct {
	Caller     string
	Subject    string
	Department string
	Quarter    int
	Month      int
}

// Owner returns the user whose schedules and entries are read.
func (r ResolveRequest) Owner() string {
	return domain.CoalesceStr(r.Subject, r.Caller)
}

// Supervisory reports whether the caller is viewing another user.
func (r ResolveRequest) Supervisory() bool {
	return r.Subject != "" && r.Subject != r.Caller
}

// Resolution is the outcome of schedule resolution. Schedule is nil when
// the user has no schedules; Template is always usable.
type Resolution struct {
	Schedule *domain.Schedule
	Template domain.MeetingTemplate
	Match    MatchRule
}

// ScheduleResolver picks the active reporting period for a user.
type ScheduleResolver struct {
	client    backend.Client
	templates *TemplateCatalog
	now       func() time.Time
}

// NewScheduleResolver creates a resolver. templates may be nil.
func NewScheduleResolver(client backend.Client, templates *TemplateCatalog, now func() time.Time) *ScheduleResolver {
	if now == nil {
		now = time.Now
	}
	return &ScheduleResolver{client: client, templates: templates, now: now}
}

// Resolve fetches the owner's schedule history and applies, in order: an
// exact (month, quarter) match for an explicit request; without a request,
// the current calendar month inside the schedule's financial year; the
// first schedule returned.
func (r *ScheduleResolver) Resolve(ctx context.Context, req ResolveRequest) (Resolution, error) {
	owner := req.Owner()
	if owner == "" {
		return Resolution{Match: MatchNone}, fmt.Errorf("resolving schedule: no user given")
	}
	schedules, err := r.client.ListSchedules(ctx, owner)
	if err != nil {
		return Resolution{Match: MatchNone, Template: r.template(req.Department, nil)}, fmt.Errorf("resolving schedule for %s: %w", owner, err)
	}

	s, rule := SelectSchedule(schedules, req.Quarter, req.Month, r.now())
	if s != nil {
		if s.Quarter == 0 {
			s.Quarter = domain.DeriveQuarter(s.QuarterLabel, s.Month)
		}
		if s.Username == "" {
			s.Username = owner
		}
	}
	return Resolution{
		Schedule: s,
		Template: r.template(req.Department, s),
		Match:    rule,
	}, nil
}

// SelectSchedule applies the selection rules to an already fetched
// history. The returned schedule is a copy.
func SelectSchedule(schedules []domain.Schedule, quarter, month int, now time.Time) (*domain.Schedule, MatchRule) {
	if len(schedules) == 0 {
		return nil, MatchNone
	}
	pick := func(s domain.Schedule, rule MatchRule) (*domain.Schedule, MatchRule) {
		return &s, rule
	}

	if month > 0 || quarter > 0 {
		for _, s := range schedules {
			q := s.Quarter
			if q == 0 {
				q = domain.DeriveQuarter(s.QuarterLabel, s.Month)
			}
			if (month == 0 || s.Month == month) && (quarter == 0 || q == quarter) {
				return pick(s, MatchRequested)
			}
		}
		return pick(schedules[0], MatchFirst)
	}

	year, curMonth := now.Year(), int(now.Month())
	for _, s := range schedules {
		if s.Month != curMonth {
			continue
		}
		if s.FinancialYear == "" || domain.FinancialYearContains(s.FinancialYear, year) {
			return pick(s, MatchCurrent)
		}
	}
	return pick(schedules[0], MatchFirst)
}

// template prefers the catalog entry for (department, month), then the
// headings embedded in the schedule, then the default stage names.
func (r *ScheduleResolver) template(department string, s *domain.Schedule) domain.MeetingTemplate {
	if s == nil {
		return domain.MeetingTemplate{}
	}
	if r.templates != nil {
		if t, ok := r.templates.Lookup(department, s.Month); ok {
			return t
		}
	}
	if s.Template != nil {
		return *s.Template
	}
	return domain.MeetingTemplate{}
}
