package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/domain"
)

// StatusCall records one ChangeEntryStatus invocation.
type StatusCall struct {
	EntryID int64
	Status  domain.EntryStatus
}

type fakeRecord struct {
	scheduleID int64
	username   string
	rec        backend.DayRecord
}

// FakeBackend is an in-memory backend.Client with call recording and
// failure injection. Day submissions replace the (schedule, date) day set
// and return fresh identifiers, like the real endpoint.
type FakeBackend struct {
	mu        sync.Mutex
	nextID    int64
	schedules map[string][]domain.Schedule
	owners    map[int64]string
	records   []fakeRecord
	employees []domain.Identity

	submits        []backend.DayEntriesRequest
	statusCalls    []StatusCall
	entryQueries   []backend.EntryQuery
	scheduleLookup []string

	listSchedulesErr error
	listEntriesErr   error
	submitErrs       []error
	statusErr        error
	employeesErr     error

	// submitGate, when set, is received from before a submission is
	// applied, letting tests hold a save in flight.
	submitGate chan struct{}
}

// NewFakeBackend creates an empty fake whose identifiers start at 1001.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		nextID:    1000,
		schedules: make(map[string][]domain.Schedule),
		owners:    make(map[int64]string),
	}
}

var _ backend.Client = (*FakeBackend)(nil)

// AddSchedule registers s for its Username.
func (f *FakeBackend) AddSchedule(s domain.Schedule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules[s.Username] = append(f.schedules[s.Username], s)
	f.owners[s.ID] = s.Username
}

// AddRecord stores a day record for scheduleID. A nil rec.ID gets a fresh
// identifier. Returns the stored identifier.
func (f *FakeBackend) AddRecord(scheduleID int64, rec backend.DayRecord) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.ID == nil {
		f.nextID++
		rec.ID = domain.ServerIDPtr(f.nextID)
	}
	if rec.Username == "" {
		rec.Username = f.owners[scheduleID]
	}
	f.records = append(f.records, fakeRecord{scheduleID: scheduleID, username: rec.Username, rec: rec})
	return *rec.ID
}

// AddEmployee adds a directory record.
func (f *FakeBackend) AddEmployee(id domain.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.employees = append(f.employees, id)
}

func (f *FakeBackend) FailListSchedules(err error) { f.set(func() { f.listSchedulesErr = err }) }
func (f *FakeBackend) FailListEntries(err error)   { f.set(func() { f.listEntriesErr = err }) }
func (f *FakeBackend) FailStatus(err error)        { f.set(func() { f.statusErr = err }) }
func (f *FakeBackend) FailEmployees(err error)     { f.set(func() { f.employeesErr = err }) }

// FailSubmits makes the next len(errs) submissions fail, in order.
func (f *FakeBackend) FailSubmits(errs ...error) {
	f.set(func() { f.submitErrs = append(f.submitErrs, errs...) })
}

// HoldSubmits blocks submissions until the returned release func is called.
func (f *FakeBackend) HoldSubmits() (release func()) {
	gate := make(chan struct{})
	f.set(func() { f.submitGate = gate })
	var once sync.Once
	return func() {
		once.Do(func() {
			f.set(func() { f.submitGate = nil })
			close(gate)
		})
	}
}

func (f *FakeBackend) set(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

// SubmitCount returns how many day submissions reached the fake.
func (f *FakeBackend) SubmitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

// Submits returns a copy of the recorded submissions.
func (f *FakeBackend) Submits() []backend.DayEntriesRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.DayEntriesRequest(nil), f.submits...)
}

// StatusCalls returns a copy of the recorded status changes.
func (f *FakeBackend) StatusCalls() []StatusCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]StatusCall(nil), f.statusCalls...)
}

// EntryQueries returns a copy of the recorded entry queries.
func (f *FakeBackend) EntryQueries() []backend.EntryQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.EntryQuery(nil), f.entryQueries...)
}

// ScheduleLookups returns the usernames ListSchedules was called with.
func (f *FakeBackend) ScheduleLookups() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.scheduleLookup...)
}

// Records returns the stored records of scheduleID in storage order.
func (f *FakeBackend) Records(scheduleID int64) []backend.DayRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []backend.DayRecord
	for _, r := range f.records {
		if r.scheduleID == scheduleID {
			out = append(out, r.rec)
		}
	}
	return out
}

func (f *FakeBackend) ListSchedules(ctx context.Context, username string) ([]domain.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduleLookup = append(f.scheduleLookup, username)
	if f.listSchedulesErr != nil {
		return nil, f.listSchedulesErr
	}
	return append([]domain.Schedule(nil), f.schedules[username]...), nil
}

func (f *FakeBackend) ListEntries(ctx context.Context, q backend.EntryQuery) ([]backend.DayRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entryQueries = append(f.entryQueries, q)
	if f.listEntriesErr != nil {
		return nil, f.listEntriesErr
	}
	var out []backend.DayRecord
	for _, r := range f.records {
		if r.username != q.Username {
			continue
		}
		if q.ScheduleID > 0 && r.scheduleID != q.ScheduleID {
			continue
		}
		out = append(out, r.rec)
	}
	return out, nil
}

func (f *FakeBackend) SubmitDayEntries(ctx context.Context, req backend.DayEntriesRequest) (*backend.DayEntriesResponse, error) {
	f.mu.Lock()
	gate := f.submitGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fmt.Errorf("submit_day_entries: %w", backend.ErrTimeout)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, req)
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(req.Entries) == 0 {
		return nil, &backend.StatusError{StatusCode: http.StatusBadRequest, Body: "entries is required"}
	}

	kept := f.records[:0]
	for _, r := range f.records {
		if r.scheduleID == req.ScheduleID && r.rec.Date == req.Date {
			continue
		}
		kept = append(kept, r)
	}
	f.records = kept

	resp := &backend.DayEntriesResponse{Message: "Entries saved"}
	for _, e := range req.Entries {
		f.nextID++
		f.records = append(f.records, fakeRecord{
			scheduleID: req.ScheduleID,
			username:   f.owners[req.ScheduleID],
			rec: backend.DayRecord{
				ID:       domain.ServerIDPtr(f.nextID),
				Note:     e.Note,
				Status:   e.Status,
				Date:     req.Date,
				RawDate:  req.Date.BackendString(),
				Username: f.owners[req.ScheduleID],
			},
		})
		resp.CreatedEntryIDs = append(resp.CreatedEntryIDs, f.nextID)
	}
	return resp, nil
}

func (f *FakeBackend) ChangeEntryStatus(ctx context.Context, entryID int64, status domain.EntryStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, StatusCall{EntryID: entryID, Status: status})
	if f.statusErr != nil {
		return f.statusErr
	}
	for i := range f.records {
		if id := f.records[i].rec.ID; id != nil && *id == entryID {
			f.records[i].rec.Status = status
			return nil
		}
	}
	return fmt.Errorf("change_entry_status: %w",
		&backend.StatusError{StatusCode: http.StatusNotFound, Body: "entry not found"})
}

func (f *FakeBackend) ListEmployees(ctx context.Context, department string) ([]domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.employeesErr != nil {
		return nil, f.employeesErr
	}
	var out []domain.Identity
	for _, e := range f.employees {
		if department == "" || e.Department == department {
			out = append(out, e)
		}
	}
	return out, nil
}
