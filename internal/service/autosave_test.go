package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/testutil"
)

func TestAutosave_DebounceCoalescesEdits(t *testing.T) {
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	f := newEngineFixture(t, nil, e)

	f.engine.ScheduleSave()
	f.engine.ScheduleSave()
	f.engine.ScheduleSave()
	assert.True(t, f.engine.Pending())
	assert.Equal(t, 1, f.timers.Armed())

	assert.Equal(t, 1, f.timers.FireAll())
	assert.Equal(t, 1, f.fb.SubmitCount())
	assert.False(t, f.engine.Pending())
	assert.False(t, f.engine.Dirty())
}

func TestAutosave_DebounceUsesConfiguredWindow(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.engine.ScheduleSave()

	f.timers.mu.Lock()
	defer f.timers.mu.Unlock()
	require.Len(t, f.timers.timers, 1)
	assert.Equal(t, DefaultDebounce, f.timers.timers[0].d)
}

func TestAutosave_ResaveWritesNothing(t *testing.T) {
	f := newEngineFixture(t, nil,
		testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x")),
		testutil.NewTestEntry("2025-01-15", domain.StageD1, testutil.WithContent("y")),
	)
	ctx := context.Background()

	first, err := f.engine.SubmitAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Writes())
	assert.True(t, first.Clean)

	second, err := f.engine.SubmitAll(ctx)
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, 0, second.Writes())
	assert.Equal(t, 2, f.fb.SubmitCount())
}

func TestAutosave_MergedRowsKeepStageIdentifiersAcrossReload(t *testing.T) {
	d1a := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("a"))
	d1b := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("b"))
	d2 := testutil.NewTestEntry("2025-01-14", domain.StageD2, testutil.WithContent("c"))
	f := newEngineFixture(t, nil, d1a, d1b, d2)

	res, err := f.engine.SubmitAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Assigned)

	gotA, _ := f.store.Get(d1a.LocalID)
	gotB, _ := f.store.Get(d1b.LocalID)
	gotC, _ := f.store.Get(d2.LocalID)
	require.True(t, gotA.Persisted())
	require.True(t, gotB.Persisted())
	require.True(t, gotC.Persisted())
	assert.NotEqual(t, *gotA.ServerID, *gotB.ServerID)
	assert.NotEqual(t, *gotB.ServerID, *gotC.ServerID)

	reloaded := EntriesFromRecords(f.fb.Records(42))
	require.Len(t, reloaded, 2)
	assert.Equal(t, domain.StageD1, reloaded[0].Stage)
	assert.Equal(t, "a\nb", reloaded[0].Content)
	assert.Equal(t, *gotA.ServerID, *reloaded[0].ServerID)
	assert.Equal(t, domain.StageD2, reloaded[1].Stage)
	assert.Equal(t, "c", reloaded[1].Content)
	require.True(t, reloaded[1].Persisted())
	assert.Equal(t, *gotC.ServerID, *reloaded[1].ServerID)
}

func TestAutosave_IdentifiersRoundTrip(t *testing.T) {
	d1 := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	d2 := testutil.NewTestEntry("2025-01-14", domain.StageD2, testutil.WithContent("y"))
	f := newEngineFixture(t, nil, d1, d2)

	res, err := f.engine.SubmitAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Assigned)

	records := f.fb.Records(42)
	require.Len(t, records, 2)
	got1, _ := f.store.Get(d1.LocalID)
	got2, _ := f.store.Get(d2.LocalID)
	require.True(t, got1.Persisted())
	require.True(t, got2.Persisted())
	assert.Equal(t, *records[0].ID, *got1.ServerID)
	assert.Equal(t, *records[1].ID, *got2.ServerID)
	assert.Equal(t, "x | y", records[0].Note)

	submits := f.fb.Submits()
	require.Len(t, submits, 1)
	assert.Equal(t, int64(42), submits[0].ScheduleID)
}

func TestAutosave_OnlyChangedDatesAreResubmitted(t *testing.T) {
	a := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	b := testutil.NewTestEntry("2025-01-15", domain.StageD1, testutil.WithContent("y"))
	f := newEngineFixture(t, nil, a, b)
	ctx := context.Background()

	_, err := f.engine.SubmitAll(ctx)
	require.NoError(t, err)

	_, err = f.store.UpdateContent(b.LocalID, "y2")
	require.NoError(t, err)
	res, err := f.engine.SubmitAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, []domain.Date{b.Date}, res.Saved)
	assert.Equal(t, 3, f.fb.SubmitCount())
}

func TestAutosave_PartialFailureKeepsFailedDatesDirty(t *testing.T) {
	a := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	b := testutil.NewTestEntry("2025-01-15", domain.StageD1, testutil.WithContent("y"))
	f := newEngineFixture(t, nil, a, b)
	f.fb.FailSubmits(backend.ErrUnavailable)
	ctx := context.Background()

	res, err := f.engine.SubmitAll(ctx)
	require.Error(t, err)
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.Contains(t, saveErr.Failed, a.Date)
	assert.Equal(t, []domain.Date{b.Date}, res.Saved)
	assert.False(t, res.Clean)
	assert.True(t, f.engine.Dirty())
	assert.Equal(t, err, f.engine.LastError())

	got, _ := f.store.Get(a.LocalID)
	assert.Equal(t, "x", got.Content, "content survives a failed save")

	res, err = f.engine.SubmitAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Date{a.Date}, res.Saved)
	assert.True(t, res.Clean)
	assert.NoError(t, f.engine.LastError())
}

func TestAutosave_StaleSaveIsDiscardedAfterPeriodChange(t *testing.T) {
	var entered chan domain.Date
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	f := newEngineFixture(t, func(c backend.Client) backend.Client {
		ec := &enteredClient{Client: c, entered: make(chan domain.Date, 1)}
		entered = ec.entered
		return ec
	}, e)
	release := f.fb.HoldSubmits()

	errc := make(chan error, 1)
	go func() {
		_, err := f.engine.SubmitAll(context.Background())
		errc <- err
	}()
	<-entered

	other := testutil.NewTestSchedule(43, "alice", 2)
	fresh := testutil.NewTestEntry("2025-02-03", domain.StageD1, testutil.WithContent("new period"),
		testutil.WithLocalID(e.LocalID))
	f.store.Replace("alice", &other, []domain.Entry{fresh})
	release()

	require.ErrorIs(t, <-errc, domain.ErrStaleSave)
	got, ok := f.store.Get(e.LocalID)
	require.True(t, ok)
	assert.False(t, got.Persisted(), "identifiers from the old period are not written back")
	assert.Equal(t, "new period", got.Content)
	assert.True(t, f.engine.Dirty())
}

func TestAutosave_EditDuringSaveStaysDirty(t *testing.T) {
	var entered chan domain.Date
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	f := newEngineFixture(t, func(c backend.Client) backend.Client {
		ec := &enteredClient{Client: c, entered: make(chan domain.Date, 2)}
		entered = ec.entered
		return ec
	}, e)
	release := f.fb.HoldSubmits()

	done := make(chan SaveResult, 1)
	go func() {
		res, _ := f.engine.SubmitAll(context.Background())
		done <- res
	}()
	<-entered
	_, err := f.store.UpdateContent(e.LocalID, "x edited")
	require.NoError(t, err)
	release()

	res := <-done
	assert.False(t, res.Clean)
	assert.True(t, f.engine.Dirty())

	res, err = f.engine.SubmitAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Date{e.Date}, res.Saved)
	assert.False(t, f.engine.Dirty())
}

func TestAutosave_RebaseTreatsLoadedContentAsSaved(t *testing.T) {
	f := newEngineFixture(t, nil,
		testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x")))
	f.engine.Rebase()

	res, err := f.engine.SubmitAll(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 0, f.fb.SubmitCount())
}

func TestAutosave_RestoreResubmitsMissingDates(t *testing.T) {
	a := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	b := testutil.NewTestEntry("2025-01-15", domain.StageD1, testutil.WithContent("y"))
	f := newEngineFixture(t, nil, a, b)
	f.engine.Restore("stale", map[domain.Date]string{
		a.Date: DayFingerprint(a.Date, []domain.Entry{a}),
	})

	res, err := f.engine.SubmitAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Date{b.Date}, res.Saved)
	assert.True(t, res.Clean)
}

func TestAutosave_SaveNowWritesEvenWhenClean(t *testing.T) {
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	f := newEngineFixture(t, nil, e)
	f.engine.Rebase()

	res, err := f.engine.SaveNow(context.Background(), e.Date)
	require.NoError(t, err)
	assert.Equal(t, []domain.Date{e.Date}, res.Saved)
	assert.Equal(t, 1, f.fb.SubmitCount())
}

func TestAutosave_FlushWithoutPendingSaveDoesNothing(t *testing.T) {
	f := newEngineFixture(t, nil,
		testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x")))

	res, err := f.engine.Flush(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 0, f.fb.SubmitCount())

	f.engine.ScheduleSave()
	_, err = f.engine.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.fb.SubmitCount())
	assert.Equal(t, 0, f.timers.FireAll(), "flush disarms the timer")
}

func TestAutosave_NoScheduleIsReported(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.store.Replace("alice", nil, []domain.Entry{
		testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x")),
	})

	_, err := f.engine.SubmitAll(context.Background())
	require.ErrorIs(t, err, domain.ErrNoSchedule)
	assert.Equal(t, 0, f.fb.SubmitCount())
}

func TestAutosave_OnSavedSeesEveryWritingPass(t *testing.T) {
	f := newEngineFixture(t, nil,
		testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x")))
	ctx := context.Background()

	_, err := f.engine.SubmitAll(ctx)
	require.NoError(t, err)
	_, err = f.engine.SubmitAll(ctx)
	require.NoError(t, err)

	results := f.results()
	require.Len(t, results, 1, "a skipped pass is not reported")
	assert.Equal(t, int64(42), results[0].ScheduleID)
	assert.Equal(t, "alice", results[0].Username)
	assert.Len(t, results[0].DayFingerprints, 1)
	assert.NotEmpty(t, results[0].GlobalFingerprint)
}
