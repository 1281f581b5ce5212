package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/testutil"
)

func assertFallbackSet(t *testing.T, entries []domain.Entry) {
	t.Helper()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, domain.StageD1, e.Stage)
		assert.Equal(t, domain.DateOf(testNow), e.Date)
		assert.False(t, e.HasContent())
		assert.False(t, e.Persisted())
	}
}

func TestEntryStore_LoadWithoutScheduleFallsBack(t *testing.T) {
	store := NewEntryStore(testutil.NewFakeBackend(), fixedNow)

	entries, err := store.Load(context.Background(), "alice", nil, "Sales")
	require.ErrorIs(t, err, domain.ErrNoSchedule)
	assertFallbackSet(t, entries)
	assertFallbackSet(t, store.List())
	assert.Nil(t, store.Schedule())
}

func TestEntryStore_LoadFailureFallsBackButKeepsSchedule(t *testing.T) {
	fb := testutil.NewFakeBackend()
	fb.FailListEntries(backend.ErrUnavailable)
	sched := testutil.NewTestSchedule(42, "alice", 1)
	store := NewEntryStore(fb, fixedNow)

	_, err := store.Load(context.Background(), "alice", &sched, "Sales")
	require.ErrorIs(t, err, backend.ErrUnavailable)
	assertFallbackSet(t, store.List())
	require.NotNil(t, store.Schedule())
	assert.Equal(t, int64(42), store.Schedule().ID)
}

func TestEntryStore_LoadQueriesThePeriod(t *testing.T) {
	fb := testutil.NewFakeBackend()
	sched := testutil.NewTestSchedule(42, "alice", 1, testutil.WithQuarterLabel("Q4"))
	fb.AddSchedule(sched)
	fb.AddRecord(42, dayRecord(0, "2025-01-14", "a | b", domain.StatusPending))
	store := NewEntryStore(fb, fixedNow)

	entries, err := store.Load(context.Background(), "alice", &sched, "Sales")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	queries := fb.EntryQueries()
	require.Len(t, queries, 1)
	assert.Equal(t, backend.EntryQuery{
		Quarter: "Q4", Month: 1, Department: "Sales", Username: "alice", ScheduleID: 42,
	}, queries[0])
}

func TestEntryStore_OverlappingLoadsKeepTheNewest(t *testing.T) {
	fb := testutil.NewFakeBackend()
	first := testutil.NewTestSchedule(1, "alice", 1)
	second := testutil.NewTestSchedule(2, "bob", 2)
	fb.AddSchedule(first)
	fb.AddSchedule(second)
	fb.AddRecord(1, dayRecord(0, "2025-01-14", "alice's", domain.StatusPending))
	fb.AddRecord(2, dayRecord(0, "2025-02-03", "bob's", domain.StatusPending))

	held := &heldEntriesClient{Client: fb, user: "alice", entered: make(chan struct{}), release: make(chan struct{})}
	store := NewEntryStore(held, fixedNow)

	errc := make(chan error, 1)
	go func() {
		_, err := store.Load(context.Background(), "alice", &first, "")
		errc <- err
	}()
	<-held.entered

	_, err := store.Load(context.Background(), "bob", &second, "")
	require.NoError(t, err)
	close(held.release)

	require.ErrorIs(t, <-errc, domain.ErrStaleLoad)
	entries := store.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "bob's", entries[0].Content)
	assert.Equal(t, int64(2), store.Schedule().ID)
}

func TestEntryStore_UpsertNeverMergesDistinctRows(t *testing.T) {
	sched := testutil.NewTestSchedule(42, "alice", 1)
	store := NewEntryStore(testutil.NewFakeBackend(), fixedNow)
	store.Replace("alice", &sched, nil)
	date := domain.MustParseDate("2025-01-14")

	a := store.Add(date, domain.StageD1)
	b := store.Add(date, domain.StageD1)
	require.NotEqual(t, a.LocalID, b.LocalID)
	assert.Less(t, a.Seq, b.Seq)

	a.Content = "updated"
	store.Upsert(a)

	entries := store.List()
	require.Len(t, entries, 2)
	assert.Equal(t, a.LocalID, entries[0].LocalID)
	assert.Equal(t, "updated", entries[0].Content)
	assert.Equal(t, b.LocalID, entries[1].LocalID)
}

func TestEntryStore_AssignServerIDsRejectsStaleGeneration(t *testing.T) {
	sched := testutil.NewTestSchedule(42, "alice", 1)
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	store := NewEntryStore(testutil.NewFakeBackend(), fixedNow)
	gen := store.Replace("alice", &sched, []domain.Entry{e})

	n, err := store.AssignServerIDs(gen, map[string]int64{e.LocalID: 5})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	store.Replace("alice", &sched, []domain.Entry{e})
	_, err = store.AssignServerIDs(gen, map[string]int64{e.LocalID: 6})
	require.ErrorIs(t, err, domain.ErrStaleSave)
}

func TestEntryStore_MutationsOnUnknownEntry(t *testing.T) {
	store := NewEntryStore(testutil.NewFakeBackend(), fixedNow)

	_, err := store.UpdateContent("nope", "x")
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
	assert.ErrorIs(t, store.Remove("nope"), domain.ErrEntryNotFound)
	_, err = store.SetStatus("nope", domain.StatusCompleted)
	assert.True(t, errors.Is(err, domain.ErrEntryNotFound))
}

func TestEntryStore_ListIsACopy(t *testing.T) {
	sched := testutil.NewTestSchedule(42, "alice", 1)
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"), testutil.WithServerID(3))
	store := NewEntryStore(testutil.NewFakeBackend(), fixedNow)
	store.Replace("alice", &sched, []domain.Entry{e})

	list := store.List()
	list[0].Content = "changed"
	*list[0].ServerID = 99

	got, ok := store.Get(e.LocalID)
	require.True(t, ok)
	assert.Equal(t, "x", got.Content)
	assert.Equal(t, int64(3), *got.ServerID)
}
