package repository

import (
	"context"
	"time"

	"github.com/alexanderramin/milestones/internal/domain"
)

// Scope identifies one user's entry set for one reporting period.
type Scope struct {
	Username   string
	ScheduleID int64
}

// SyncState records whether the local journal holds edits the backend has
// not accepted yet.
type SyncState struct {
	Scope             Scope
	Dirty             bool
	GlobalFingerprint string
	LastSyncedAt      *time.Time
	LastError         string
	UpdatedAt         time.Time
}

// PeriodSelection is the last period a user picked.
type PeriodSelection struct {
	Username   string
	Department string
	Quarter    int
	Month      int
	ScheduleID *int64
	UpdatedAt  time.Time
}

type DraftRepo interface {
	ListByScope(ctx context.Context, scope Scope) ([]domain.Entry, error)
	GetByID(ctx context.Context, localID string) (*domain.Entry, error)
	ReplaceScope(ctx context.Context, scope Scope, entries []domain.Entry) error
	Upsert(ctx context.Context, scope Scope, e domain.Entry) error
	Delete(ctx context.Context, localID string) error
}

type SyncStateRepo interface {
	Get(ctx context.Context, scope Scope) (*SyncState, error)
	MarkDirty(ctx context.Context, scope Scope) error
	MarkSynced(ctx context.Context, scope Scope, globalFingerprint string, at time.Time) error
	RecordError(ctx context.Context, scope Scope, msg string) error
	DayFingerprints(ctx context.Context, scope Scope) (map[domain.Date]string, error)
	ReplaceDayFingerprints(ctx context.Context, scope Scope, fps map[domain.Date]string) error
}

type SelectionRepo interface {
	Get(ctx context.Context, username string) (*PeriodSelection, error)
	Upsert(ctx context.Context, sel PeriodSelection) error
}
