package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/progression"
	"github.com/alexanderramin/milestones/internal/repository"
	"github.com/alexanderramin/milestones/internal/testutil"
)

func openTestWorkspace(t *testing.T, fb *testutil.FakeBackend, journal *Journal, opts WorkspaceOptions) (*Workspace, *manualTimers) {
	t.Helper()
	timers := &manualTimers{}
	if opts.Caller == "" {
		opts.Caller = "alice"
	}
	opts.Client = fb
	opts.Journal = journal
	opts.AfterFunc = timers.AfterFunc
	opts.Now = fixedNow
	ws, err := OpenWorkspace(context.Background(), opts)
	require.NoError(t, err)
	return ws, timers
}

func januaryBackend() *testutil.FakeBackend {
	fb := testutil.NewFakeBackend()
	fb.AddSchedule(testutil.NewTestSchedule(42, "alice", 1, testutil.WithQuarterLabel("Q4")))
	fb.AddSchedule(testutil.NewTestSchedule(43, "alice", 2, testutil.WithQuarterLabel("Q4")))
	return fb
}

func entryOn(t *testing.T, ws *Workspace, date string, stage domain.Stage) domain.Entry {
	t.Helper()
	d := domain.MustParseDate(date)
	for _, e := range ws.Entries() {
		if e.Date == d && e.Stage == stage {
			return e
		}
	}
	t.Fatalf("no %s entry on %s", stage, date)
	return domain.Entry{}
}

func TestWorkspace_OpensCurrentPeriod(t *testing.T) {
	fb := januaryBackend()
	fb.AddRecord(42, dayRecord(0, "2025-01-14", "plan | build", domain.StatusPending))

	ws, _ := openTestWorkspace(t, fb, nil, WorkspaceOptions{Department: "Sales"})

	require.NoError(t, ws.LoadError())
	require.NotNil(t, ws.Schedule())
	assert.Equal(t, int64(42), ws.Schedule().ID)
	assert.Equal(t, MatchCurrent, ws.Resolution().Match)
	assert.Len(t, ws.Entries(), 2)
	assert.False(t, ws.Dirty())
	assert.False(t, ws.Supervisory())
}

func TestWorkspace_StageGating(t *testing.T) {
	fb := januaryBackend()
	for i := 1; i <= 9; i++ {
		fb.AddRecord(42, dayRecord(0, fmt.Sprintf("2025-01-%02d", i), fmt.Sprintf("day %d", i), domain.StatusPending))
	}
	ws, _ := openTestWorkspace(t, fb, nil, WorkspaceOptions{})
	ctx := context.Background()

	p := ws.Progress()
	assert.Equal(t, 9, p.DaysFilled[0])
	assert.False(t, p.Stage2Unlocked)
	_, err := ws.AddEntry(ctx, domain.StageD2, domain.MustParseDate("2025-01-01"))
	require.ErrorIs(t, err, domain.ErrStageLocked)

	tenth, err := ws.AddEntry(ctx, domain.StageD1, domain.MustParseDate("2025-01-10"))
	require.NoError(t, err)
	_, err = ws.EditContent(ctx, tenth.LocalID, "day 10")
	require.NoError(t, err)

	p = ws.Progress()
	assert.True(t, p.Stage2Unlocked)
	assert.False(t, p.Stage3Unlocked)
	assert.Equal(t, progression.DaysRequired-10, p.Remaining(domain.StageD1))

	sameDay, err := ws.AddEntry(ctx, domain.StageD2, domain.MustParseDate("2025-01-01"))
	require.NoError(t, err)
	_, err = ws.EditContent(ctx, sameDay.LocalID, "follow-up")
	require.NoError(t, err)

	lonely, err := ws.AddEntry(ctx, domain.StageD2, domain.MustParseDate("2025-01-20"))
	require.NoError(t, err)
	assert.False(t, ws.Editable(lonely.Date, domain.StageD2))
	_, err = ws.EditContent(ctx, lonely.LocalID, "no D1 that day")
	require.ErrorIs(t, err, domain.ErrStageLocked)

	_, err = ws.AddEntry(ctx, domain.StageD3, domain.MustParseDate("2025-01-01"))
	require.ErrorIs(t, err, domain.ErrStageLocked)
}

func TestWorkspace_EditsAreAutosaved(t *testing.T) {
	fb := januaryBackend()
	database := testutil.NewTestDB(t)
	journal := NewSQLiteJournal(database, testutil.NewTestUoW(database))
	ws, timers := openTestWorkspace(t, fb, journal, WorkspaceOptions{})
	ctx := context.Background()

	e, err := ws.AddEntry(ctx, domain.StageD1, domain.MustParseDate("2025-01-14"))
	require.NoError(t, err)
	_, err = ws.EditContent(ctx, e.LocalID, "x")
	require.NoError(t, err)
	assert.True(t, ws.PendingSave())
	assert.True(t, ws.Dirty())

	st, err := journal.Load(ctx, repository.Scope{Username: "alice", ScheduleID: 42})
	require.NoError(t, err)
	assert.True(t, st.Dirty, "unsent edits are journaled")

	timers.FireAll()
	require.Equal(t, 1, fb.SubmitCount())
	assert.False(t, ws.Dirty())
	got, _ := ws.Entry(e.LocalID)
	assert.True(t, got.Persisted())

	st, err = journal.Load(ctx, repository.Scope{Username: "alice", ScheduleID: 42})
	require.NoError(t, err)
	assert.False(t, st.Dirty)
	require.Len(t, st.Entries, 1)
	assert.Equal(t, *got.ServerID, *st.Entries[0].ServerID)
}

func TestWorkspace_DirtyJournalWinsAfterRestart(t *testing.T) {
	fb := januaryBackend()
	database := testutil.NewTestDB(t)
	journal := NewSQLiteJournal(database, testutil.NewTestUoW(database))
	ctx := context.Background()

	first, _ := openTestWorkspace(t, fb, journal, WorkspaceOptions{})
	e, err := first.AddEntry(ctx, domain.StageD1, domain.MustParseDate("2025-01-14"))
	require.NoError(t, err)
	_, err = first.EditContent(ctx, e.LocalID, "unsent")
	require.NoError(t, err)
	// The process dies before the debounce fires.

	second, timers := openTestWorkspace(t, fb, journal, WorkspaceOptions{})
	got, ok := second.Entry(e.LocalID)
	require.True(t, ok, "local identifiers survive the restart")
	assert.Equal(t, "unsent", got.Content)
	assert.True(t, second.Dirty())
	assert.True(t, second.PendingSave())

	timers.FireAll()
	records := fb.Records(42)
	require.Len(t, records, 1)
	assert.Equal(t, "unsent", records[0].Note)
}

func TestWorkspace_CleanJournalYieldsToBackend(t *testing.T) {
	fb := januaryBackend()
	id := fb.AddRecord(42, dayRecord(0, "2025-01-14", "old", domain.StatusPending))
	database := testutil.NewTestDB(t)
	journal := NewSQLiteJournal(database, testutil.NewTestUoW(database))

	first, _ := openTestWorkspace(t, fb, journal, WorkspaceOptions{})
	localID := entryOn(t, first, "2025-01-14", domain.StageD1).LocalID

	// Someone else rewrites the day on the backend.
	_, err := fb.SubmitDayEntries(context.Background(), backend.DayEntriesRequest{
		Date: domain.MustParseDate("2025-01-14"), ScheduleID: 42,
		Entries: []backend.DayEntry{{Note: "new", Status: domain.StatusPending}},
	})
	require.NoError(t, err)
	require.NotEqual(t, id, *fb.Records(42)[0].ID)

	second, _ := openTestWorkspace(t, fb, journal, WorkspaceOptions{})
	got := entryOn(t, second, "2025-01-14", domain.StageD1)
	assert.Equal(t, "new", got.Content)
	assert.NotEqual(t, localID, got.LocalID, "a new backend row gets a new local identifier")
	assert.False(t, second.Dirty())
}

func TestWorkspace_BackendDownFallsBack(t *testing.T) {
	fb := januaryBackend()
	fb.FailListSchedules(backend.ErrUnavailable)
	ws, _ := openTestWorkspace(t, fb, nil, WorkspaceOptions{})
	ctx := context.Background()

	require.ErrorIs(t, ws.LoadError(), backend.ErrUnavailable)
	assert.Nil(t, ws.Schedule())
	entries := ws.Entries()
	require.Len(t, entries, 3)

	_, err := ws.EditContent(ctx, entries[0].LocalID, "still editable")
	require.NoError(t, err)

	_, err = ws.Submit(ctx)
	require.ErrorIs(t, err, domain.ErrNoSchedule)
	assert.Equal(t, 0, fb.SubmitCount())
}

func TestWorkspace_SupervisorWritesToSubjectPeriod(t *testing.T) {
	fb := januaryBackend()
	fb.AddSchedule(testutil.NewTestSchedule(90, "boss", 1))
	ws, _ := openTestWorkspace(t, fb, nil, WorkspaceOptions{Caller: "boss", Subject: "alice"})
	ctx := context.Background()

	assert.True(t, ws.Supervisory())
	assert.Equal(t, "alice", ws.Owner())
	require.Equal(t, int64(42), ws.Schedule().ID)

	e, err := ws.AddEntry(ctx, domain.StageD1, domain.MustParseDate("2025-01-14"))
	require.NoError(t, err)
	_, err = ws.EditContent(ctx, e.LocalID, "reviewed")
	require.NoError(t, err)
	_, err = ws.Submit(ctx)
	require.NoError(t, err)

	assert.Len(t, fb.Records(42), 1)
	assert.Empty(t, fb.Records(90))
	for _, q := range fb.EntryQueries() {
		assert.Equal(t, "alice", q.Username)
	}
}

func TestWorkspace_SelectPeriodFlushesFirst(t *testing.T) {
	fb := januaryBackend()
	fb.AddRecord(43, dayRecord(0, "2025-02-03", "february", domain.StatusPending))
	database := testutil.NewTestDB(t)
	journal := NewSQLiteJournal(database, testutil.NewTestUoW(database))
	ws, _ := openTestWorkspace(t, fb, journal, WorkspaceOptions{})
	ctx := context.Background()

	e, err := ws.AddEntry(ctx, domain.StageD1, domain.MustParseDate("2025-01-14"))
	require.NoError(t, err)
	_, err = ws.EditContent(ctx, e.LocalID, "january")
	require.NoError(t, err)

	require.NoError(t, ws.SelectPeriod(ctx, 4, 2))
	assert.Len(t, fb.Records(42), 1, "pending january edit was flushed")
	assert.Equal(t, int64(43), ws.Schedule().ID)
	assert.Equal(t, MatchRequested, ws.Resolution().Match)
	entries := ws.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "february", entries[0].Content)

	reopened, _ := openTestWorkspace(t, fb, journal, WorkspaceOptions{})
	assert.Equal(t, int64(43), reopened.Schedule().ID, "the last selected period is remembered")
}

func TestWorkspace_StatusChangeOnDraftPersistsFirst(t *testing.T) {
	fb := januaryBackend()
	ws, _ := openTestWorkspace(t, fb, nil, WorkspaceOptions{})
	ctx := context.Background()

	e, err := ws.AddEntry(ctx, domain.StageD1, domain.MustParseDate("2025-01-14"))
	require.NoError(t, err)
	_, err = ws.EditContent(ctx, e.LocalID, "x")
	require.NoError(t, err)

	require.NoError(t, ws.ChangeStatus(ctx, e.LocalID, domain.StatusCompleted))
	got, _ := ws.Entry(e.LocalID)
	require.True(t, got.Persisted())
	calls := fb.StatusCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, *got.ServerID, calls[0].EntryID)
}

func TestWorkspace_RemoveEntryIsLocal(t *testing.T) {
	fb := januaryBackend()
	fb.AddRecord(42, dayRecord(0, "2025-01-14", "keep on server", domain.StatusPending))
	ws, _ := openTestWorkspace(t, fb, nil, WorkspaceOptions{})
	ctx := context.Background()

	e := entryOn(t, ws, "2025-01-14", domain.StageD1)
	require.NoError(t, ws.RemoveEntry(ctx, e.LocalID))
	assert.Empty(t, ws.Entries())
	assert.Len(t, fb.Records(42), 1)
	assert.ErrorIs(t, ws.RemoveEntry(ctx, e.LocalID), domain.ErrEntryNotFound)
}

func TestWorkspace_CloseFlushesPendingSave(t *testing.T) {
	fb := januaryBackend()
	ws, timers := openTestWorkspace(t, fb, nil, WorkspaceOptions{})
	ctx := context.Background()

	e, err := ws.AddEntry(ctx, domain.StageD1, domain.MustParseDate("2025-01-14"))
	require.NoError(t, err)
	_, err = ws.EditContent(ctx, e.LocalID, "x")
	require.NoError(t, err)

	require.NoError(t, ws.Close(ctx))
	assert.Equal(t, 1, fb.SubmitCount())
	assert.Equal(t, 0, timers.FireAll())
}

func TestOpenWorkspace_RequiresClientAndCaller(t *testing.T) {
	_, err := OpenWorkspace(context.Background(), WorkspaceOptions{Caller: "alice"})
	assert.Error(t, err)
	_, err = OpenWorkspace(context.Background(), WorkspaceOptions{Client: testutil.NewFakeBackend()})
	assert.Error(t, err)
}

func TestWorkspace_ContentWithNoteSeparatorIsRefused(t *testing.T) {
	fb := januaryBackend()
	ws, _ := openTestWorkspace(t, fb, nil, WorkspaceOptions{})
	ctx := context.Background()

	e, err := ws.AddEntry(ctx, domain.StageD1, domain.MustParseDate("2025-01-14"))
	require.NoError(t, err)
	_, err = ws.EditContent(ctx, e.LocalID, "cost | benefit")
	require.ErrorIs(t, err, domain.ErrNoteSeparator)

	got, _ := ws.Entry(e.LocalID)
	assert.Empty(t, got.Content)

	_, err = ws.EditContent(ctx, e.LocalID, "cost|benefit")
	require.NoError(t, err)
	_, err = ws.Submit(ctx)
	require.NoError(t, err)

	reloaded := EntriesFromRecords(fb.Records(42))
	require.Len(t, reloaded, 1)
	assert.Equal(t, domain.StageD1, reloaded[0].Stage)
	assert.Equal(t, "cost|benefit", reloaded[0].Content)
}
