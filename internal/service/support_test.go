package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/testutil"
)

var testNow = time.Date(2025, 1, 20, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

// manualTimers is an AfterFunc whose timers only fire when told to.
type manualTimers struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	parent  *manualTimers
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (m *manualTimers) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{parent: m, d: d, f: f}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.parent.mu.Lock()
	defer t.parent.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Armed returns the number of timers neither stopped nor fired.
func (m *manualTimers) Armed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// FireAll runs every armed timer synchronously and returns how many ran.
func (m *manualTimers) FireAll() int {
	m.mu.Lock()
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	m.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

// enteredClient signals every time a submission reaches the backend, before
// the wrapped client handles it.
type enteredClient struct {
	backend.Client
	entered chan domain.Date
}

func (c *enteredClient) SubmitDayEntries(ctx context.Context, req backend.DayEntriesRequest) (*backend.DayEntriesResponse, error) {
	c.entered <- req.Date
	return c.Client.SubmitDayEntries(ctx, req)
}

// heldStatusClient blocks status changes until release is closed.
type heldStatusClient struct {
	backend.Client
	entered chan int64
	release chan struct{}
}

func (c *heldStatusClient) ChangeEntryStatus(ctx context.Context, id int64, status domain.EntryStatus) error {
	c.entered <- id
	<-c.release
	return c.Client.ChangeEntryStatus(ctx, id, status)
}

// heldEntriesClient blocks ListEntries calls for one username.
type heldEntriesClient struct {
	backend.Client
	user    string
	entered chan struct{}
	release chan struct{}
}

func (c *heldEntriesClient) ListEntries(ctx context.Context, q backend.EntryQuery) ([]backend.DayRecord, error) {
	if q.Username == c.user {
		c.entered <- struct{}{}
		<-c.release
	}
	return c.Client.ListEntries(ctx, q)
}

type engineFixture struct {
	fb       *testutil.FakeBackend
	store    *EntryStore
	engine   *AutosaveEngine
	timers   *manualTimers
	schedule domain.Schedule
	saved    []SaveResult
	mu       sync.Mutex
}

func (f *engineFixture) results() []SaveResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SaveResult(nil), f.saved...)
}

// newEngineFixture binds a store holding entries for alice's January
// schedule to an engine with manual timers. wrap, when set, decorates the
// fake backend the engine talks to.
func newEngineFixture(t *testing.T, wrap func(backend.Client) backend.Client, entries ...domain.Entry) *engineFixture {
	t.Helper()
	fb := testutil.NewFakeBackend()
	var client backend.Client = fb
	if wrap != nil {
		client = wrap(fb)
	}
	sched := testutil.NewTestSchedule(42, "alice", 1, testutil.WithQuarterLabel("Q4"))
	fb.AddSchedule(sched)

	f := &engineFixture{fb: fb, timers: &manualTimers{}, schedule: sched}
	f.store = NewEntryStore(client, fixedNow)
	f.store.Replace("alice", &sched, entries)
	f.engine = NewAutosaveEngine(f.store, client, AutosaveOptions{
		AfterFunc: f.timers.AfterFunc,
		OnSaved: func(res SaveResult) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.saved = append(f.saved, res)
		},
	})
	require.NotNil(t, f.engine)
	return f
}
