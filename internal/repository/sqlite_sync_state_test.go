package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncStateRepo_GetMissing(t *testing.T) {
	repo := NewSQLiteSyncStateRepo(testutil.NewTestDB(t))
	_, err := repo.Get(context.Background(), Scope{Username: "alice", ScheduleID: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncStateRepo_DirtyThenSynced(t *testing.T) {
	repo := NewSQLiteSyncStateRepo(testutil.NewTestDB(t))
	ctx := context.Background()
	scope := Scope{Username: "alice", ScheduleID: 1}

	require.NoError(t, repo.MarkDirty(ctx, scope))
	st, err := repo.Get(ctx, scope)
	require.NoError(t, err)
	assert.True(t, st.Dirty)
	assert.Nil(t, st.LastSyncedAt)

	require.NoError(t, repo.RecordError(ctx, scope, "backend unavailable"))
	st, err = repo.Get(ctx, scope)
	require.NoError(t, err)
	assert.True(t, st.Dirty)
	assert.Equal(t, "backend unavailable", st.LastError)

	at := time.Date(2025, 1, 14, 9, 30, 0, 0, time.UTC)
	require.NoError(t, repo.MarkSynced(ctx, scope, "fp-1", at))
	st, err = repo.Get(ctx, scope)
	require.NoError(t, err)
	assert.False(t, st.Dirty)
	assert.Equal(t, "fp-1", st.GlobalFingerprint)
	assert.Equal(t, "", st.LastError)
	require.NotNil(t, st.LastSyncedAt)
	assert.True(t, at.Equal(*st.LastSyncedAt))
}

func TestSyncStateRepo_DayFingerprints(t *testing.T) {
	repo := NewSQLiteSyncStateRepo(testutil.NewTestDB(t))
	ctx := context.Background()
	scope := Scope{Username: "alice", ScheduleID: 1}

	d1 := domain.MustParseDate("2025-01-14")
	d2 := domain.MustParseDate("2025-01-15")
	require.NoError(t, repo.ReplaceDayFingerprints(ctx, scope, map[domain.Date]string{d1: "a", d2: "b"}))
	require.NoError(t, repo.ReplaceDayFingerprints(ctx, scope, map[domain.Date]string{d2: "c"}))

	fps, err := repo.DayFingerprints(ctx, scope)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Date]string{d2: "c"}, fps)

	other, err := repo.DayFingerprints(ctx, Scope{Username: "bob", ScheduleID: 1})
	require.NoError(t, err)
	assert.Empty(t, other)
}
