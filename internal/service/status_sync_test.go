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

func newStatusFixture(t *testing.T, wrap func(backend.Client) backend.Client, entries ...domain.Entry) (*engineFixture, *StatusSynchronizer) {
	t.Helper()
	var client backend.Client
	f := newEngineFixture(t, func(c backend.Client) backend.Client {
		client = c
		if wrap != nil {
			client = wrap(c)
		}
		return client
	}, entries...)
	return f, NewStatusSynchronizer(f.store, f.engine, client, StatusOptions{})
}

func TestChangeStatus_DraftIsPersistedBeforeStatusCall(t *testing.T) {
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	f, sync := newStatusFixture(t, nil, e)

	require.NoError(t, sync.ChangeStatus(context.Background(), e.LocalID, domain.StatusCompleted))

	got, _ := f.store.Get(e.LocalID)
	require.True(t, got.Persisted())
	assert.Equal(t, domain.StatusCompleted, got.Status)

	require.Equal(t, 1, f.fb.SubmitCount(), "the draft is saved first")
	calls := f.fb.StatusCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, *got.ServerID, calls[0].EntryID)
	assert.Equal(t, domain.StatusCompleted, calls[0].Status)

	records := f.fb.Records(42)
	require.Len(t, records, 1)
	assert.Equal(t, domain.StatusCompleted, records[0].Status)
}

func TestChangeStatus_RejectedDraftLeavesBackendOnPreviousStatus(t *testing.T) {
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	f, sync := newStatusFixture(t, nil, e)
	f.fb.FailStatus(&backend.StatusError{StatusCode: 422, Body: "nope"})

	err := sync.ChangeStatus(context.Background(), e.LocalID, domain.StatusCompleted)
	require.ErrorIs(t, err, backend.ErrRejected)

	got, _ := f.store.Get(e.LocalID)
	require.True(t, got.Persisted(), "the save-first write still happened")
	assert.Equal(t, domain.StatusPending, got.Status)

	records := f.fb.Records(42)
	require.Len(t, records, 1)
	assert.Equal(t, got.Status, records[0].Status)
}

func TestChangeStatus_PersistedEntrySkipsSave(t *testing.T) {
	f, sync := newStatusFixture(t, nil)
	id := f.fb.AddRecord(42, dayRecord(0, "2025-01-14", "x", domain.StatusPending))
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"), testutil.WithServerID(id))
	f.store.Replace("alice", &f.schedule, []domain.Entry{e})

	require.NoError(t, sync.ChangeStatus(context.Background(), e.LocalID, domain.StatusInProgress))

	assert.Equal(t, 0, f.fb.SubmitCount())
	require.Len(t, f.fb.StatusCalls(), 1)
	assert.Equal(t, id, f.fb.StatusCalls()[0].EntryID)
}

func TestChangeStatus_EmptyDraftNeedsContent(t *testing.T) {
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1)
	f, sync := newStatusFixture(t, nil, e)

	err := sync.ChangeStatus(context.Background(), e.LocalID, domain.StatusCompleted)
	require.ErrorIs(t, err, domain.ErrIdentifierMissing)

	got, _ := f.store.Get(e.LocalID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, 0, f.fb.SubmitCount())
	assert.Empty(t, f.fb.StatusCalls())
}

func TestChangeStatus_RollsBackOnRejection(t *testing.T) {
	f, sync := newStatusFixture(t, nil)
	id := f.fb.AddRecord(42, dayRecord(0, "2025-01-14", "x", domain.StatusPending))
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"),
		testutil.WithServerID(id), testutil.WithStatus(domain.StatusInProgress))
	f.store.Replace("alice", &f.schedule, []domain.Entry{e})
	f.fb.FailStatus(&backend.StatusError{StatusCode: 422, Body: "nope"})

	err := sync.ChangeStatus(context.Background(), e.LocalID, domain.StatusCompleted)
	require.ErrorIs(t, err, backend.ErrRejected)

	got, _ := f.store.Get(e.LocalID)
	assert.Equal(t, domain.StatusInProgress, got.Status)
}

func TestChangeStatus_RollsBackWhenSaveFails(t *testing.T) {
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"))
	f, sync := newStatusFixture(t, nil, e)
	f.fb.FailSubmits(backend.ErrTimeout)

	err := sync.ChangeStatus(context.Background(), e.LocalID, domain.StatusCompleted)
	require.ErrorIs(t, err, backend.ErrTimeout)
	assert.NotErrorIs(t, err, backend.ErrRejected)

	got, _ := f.store.Get(e.LocalID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.False(t, got.Persisted())
	assert.Empty(t, f.fb.StatusCalls())
}

func TestChangeStatus_SecondChangeWhileInFlightIsRejected(t *testing.T) {
	var held *heldStatusClient
	f, sync := newStatusFixture(t, func(c backend.Client) backend.Client {
		held = &heldStatusClient{Client: c, entered: make(chan int64, 1), release: make(chan struct{})}
		return held
	})
	id := f.fb.AddRecord(42, dayRecord(0, "2025-01-14", "x", domain.StatusPending))
	e := testutil.NewTestEntry("2025-01-14", domain.StageD1, testutil.WithContent("x"), testutil.WithServerID(id))
	f.store.Replace("alice", &f.schedule, []domain.Entry{e})

	errc := make(chan error, 1)
	go func() {
		errc <- sync.ChangeStatus(context.Background(), e.LocalID, domain.StatusInProgress)
	}()
	<-held.entered

	got, _ := f.store.Get(e.LocalID)
	assert.Equal(t, domain.StatusInProgress, got.Status, "the change shows before the backend answers")

	err := sync.ChangeStatus(context.Background(), e.LocalID, domain.StatusCompleted)
	require.ErrorIs(t, err, domain.ErrStatusChangeInFlight)

	close(held.release)
	require.NoError(t, <-errc)
	got, _ = f.store.Get(e.LocalID)
	assert.Equal(t, domain.StatusInProgress, got.Status)
}

func TestChangeStatus_UnknownEntry(t *testing.T) {
	_, sync := newStatusFixture(t, nil)
	err := sync.ChangeStatus(context.Background(), "missing", domain.StatusCompleted)
	assert.ErrorIs(t, err, domain.ErrEntryNotFound)
}
