package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/milestones/internal/db"
	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/repository"
)

// JournalState is what the local journal knows about one scope.
type JournalState struct {
	Entries           []domain.Entry
	Dirty             bool
	GlobalFingerprint string
	DayFingerprints   map[domain.Date]string
	LastSyncedAt      *time.Time
	LastError         string
}

// Journal keeps a crash-safe local copy of the entry set and the
// fingerprints of the last successful save, so unsent edits survive a
// restart.
type Journal struct {
	drafts     repository.DraftRepo
	syncs      repository.SyncStateRepo
	selections repository.SelectionRepo
	uow        db.UnitOfWork
	now        func() time.Time
}

func NewJournal(drafts repository.DraftRepo, syncs repository.SyncStateRepo, selections repository.SelectionRepo, uow db.UnitOfWork) *Journal {
	return &Journal{drafts: drafts, syncs: syncs, selections: selections, uow: uow, now: time.Now}
}

// NewSQLiteJournal wires a Journal to the SQLite repositories of conn.
func NewSQLiteJournal(conn db.DBTX, uow db.UnitOfWork) *Journal {
	return NewJournal(
		repository.NewSQLiteDraftRepo(conn),
		repository.NewSQLiteSyncStateRepo(conn),
		repository.NewSQLiteSelectionRepo(conn),
		uow,
	)
}

// Load returns the journal state of scope. A scope never written before
// comes back clean and empty.
func (j *Journal) Load(ctx context.Context, scope repository.Scope) (JournalState, error) {
	var st JournalState
	entries, err := j.drafts.ListByScope(ctx, scope)
	if err != nil {
		return st, err
	}
	st.Entries = entries

	sync, err := j.syncs.Get(ctx, scope)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return st, nil
	case err != nil:
		return st, err
	}
	st.Dirty = sync.Dirty
	st.GlobalFingerprint = sync.GlobalFingerprint
	st.LastSyncedAt = sync.LastSyncedAt
	st.LastError = sync.LastError

	st.DayFingerprints, err = j.syncs.DayFingerprints(ctx, scope)
	if err != nil {
		return st, err
	}
	return st, nil
}

// SaveDraft records entries as the local set of scope and flags it dirty.
func (j *Journal) SaveDraft(ctx context.Context, scope repository.Scope, entries []domain.Entry) error {
	return j.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := repository.NewSQLiteDraftRepo(tx).ReplaceScope(ctx, scope, entries); err != nil {
			return err
		}
		return repository.NewSQLiteSyncStateRepo(tx).MarkDirty(ctx, scope)
	})
}

// Adopt records a freshly fetched set as clean: the drafts mirror the
// backend and the fingerprints describe what the backend holds.
func (j *Journal) Adopt(ctx context.Context, scope repository.Scope, entries []domain.Entry) error {
	return j.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := repository.NewSQLiteDraftRepo(tx).ReplaceScope(ctx, scope, entries); err != nil {
			return err
		}
		syncs := repository.NewSQLiteSyncStateRepo(tx)
		if err := syncs.ReplaceDayFingerprints(ctx, scope, DayFingerprints(entries)); err != nil {
			return err
		}
		return syncs.MarkSynced(ctx, scope, SaveFingerprint(entries), j.now())
	})
}

// RecordSave stores the outcome of a save pass together with the entry set
// it produced. Failed dates keep the scope dirty.
func (j *Journal) RecordSave(ctx context.Context, scope repository.Scope, res SaveResult, entries []domain.Entry) error {
	return j.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		if err := repository.NewSQLiteDraftRepo(tx).ReplaceScope(ctx, scope, entries); err != nil {
			return err
		}
		syncs := repository.NewSQLiteSyncStateRepo(tx)
		if res.DayFingerprints != nil {
			if err := syncs.ReplaceDayFingerprints(ctx, scope, res.DayFingerprints); err != nil {
				return err
			}
		}
		if len(res.Failed) > 0 {
			return syncs.RecordError(ctx, scope, (&SaveError{Failed: res.Failed}).Error())
		}
		if !res.Clean {
			return syncs.MarkDirty(ctx, scope)
		}
		return syncs.MarkSynced(ctx, scope, res.GlobalFingerprint, j.now())
	})
}

// ReuseLocalIDs gives fetched entries the local identifiers the journal
// already knows them by, matched on server identifier, so references
// stay stable across restarts.
func (j *Journal) ReuseLocalIDs(ctx context.Context, scope repository.Scope, entries []domain.Entry) ([]domain.Entry, error) {
	known, err := j.drafts.ListByScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	byServer := make(map[int64]string, len(known))
	for _, e := range known {
		if e.Persisted() {
			byServer[*e.ServerID] = e.LocalID
		}
	}
	out := cloneEntries(entries)
	for i := range out {
		if !out[i].Persisted() {
			continue
		}
		if id, ok := byServer[*out[i].ServerID]; ok {
			out[i].LocalID = id
		}
	}
	return out, nil
}

// SaveSelection remembers the period the user last picked.
func (j *Journal) SaveSelection(ctx context.Context, sel repository.PeriodSelection) error {
	if sel.Username == "" {
		return fmt.Errorf("saving period selection: no user given")
	}
	return j.selections.Upsert(ctx, sel)
}

// LastSelection returns the remembered period, or nil.
func (j *Journal) LastSelection(ctx context.Context, username string) (*repository.PeriodSelection, error) {
	sel, err := j.selections.Get(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return sel, err
}
