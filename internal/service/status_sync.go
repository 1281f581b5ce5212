package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/domain"
)

// DefaultStatusSaveTimeout bounds the save a status change may need first.
const DefaultStatusSaveTimeout = 10 * time.Second

// dateSaver is the save primitive the synchronizer depends on.
type dateSaver interface {
	SaveNow(ctx context.Context, date domain.Date) (SaveResult, error)
	PinStatus(localID string, status domain.EntryStatus) (unpin func())
}

// StatusSynchronizer applies status changes optimistically and reconciles
// them with the backend, which only accepts changes on persisted entries.
type StatusSynchronizer struct {
	store       *EntryStore
	saver       dateSaver
	client      backend.Client
	saveTimeout time.Duration
	logger      logrus.FieldLogger
	observer    UseCaseObserver

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// StatusOptions configures a StatusSynchronizer.
type StatusOptions struct {
	SaveTimeout time.Duration
	Logger      logrus.FieldLogger
	Observer    UseCaseObserver
}

// NewStatusSynchronizer creates a synchronizer. saver is normally the
// AutosaveEngine bound to the same store.
func NewStatusSynchronizer(store *EntryStore, saver dateSaver, client backend.Client, opts StatusOptions) *StatusSynchronizer {
	s := &StatusSynchronizer{
		store:       store,
		saver:       saver,
		client:      client,
		saveTimeout: opts.SaveTimeout,
		logger:      opts.Logger,
		observer:    useCaseObserverOrNoop(opts.Observer),
		inFlight:    make(map[string]struct{}),
	}
	if s.saveTimeout <= 0 {
		s.saveTimeout = DefaultStatusSaveTimeout
	}
	if s.logger == nil {
		s.logger = discardLogger()
	}
	return s
}

// ChangeStatus sets the status of one entry. The new status shows in the
// store at once; a draft with content is saved first to obtain its server
// identifier. Day saves made meanwhile carry the previous status, so only
// the status endpoint moves the backend. On any failure the entry is put
// back to its previous status.
// A second change for the same entry while one is running fails with
// ErrStatusChangeInFlight.
func (s *StatusSynchronizer) ChangeStatus(ctx context.Context, localID string, status domain.EntryStatus) error {
	if !s.acquire(localID) {
		return fmt.Errorf("entry %s: %w", localID, domain.ErrStatusChangeInFlight)
	}
	defer s.release(localID)

	return observe(ctx, s.observer, "status.change", map[string]any{
		"local_id": localID,
		"status":   string(status),
	}, func() error {
		return s.changeStatus(ctx, localID, status)
	})
}

func (s *StatusSynchronizer) changeStatus(ctx context.Context, localID string, status domain.EntryStatus) error {
	entry, ok := s.store.Get(localID)
	if !ok {
		return fmt.Errorf("entry %s: %w", localID, domain.ErrEntryNotFound)
	}
	generation := s.store.Generation()

	unpin := s.saver.PinStatus(localID, entry.EffectiveStatus())
	defer unpin()

	prev, err := s.store.SetStatus(localID, status)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		s.rollback(localID, prev, generation, err)
		return err
	}

	if !entry.Persisted() {
		if !entry.HasContent() {
			return fail(fmt.Errorf("entry %s: %w", localID, domain.ErrIdentifierMissing))
		}

		saveCtx, cancel := context.WithTimeout(ctx, s.saveTimeout)
		_, err := s.saver.SaveNow(saveCtx, entry.Date)
		cancel()
		if err != nil {
			return fail(fmt.Errorf("saving entry before status change: %w", err))
		}

		entry, ok = s.store.Get(localID)
		if !ok || !entry.Persisted() {
			return fail(fmt.Errorf("entry %s: save returned no identifier: %w", localID, domain.ErrIdentifierMissing))
		}
	}

	if err := s.client.ChangeEntryStatus(ctx, *entry.ServerID, status); err != nil {
		return fail(fmt.Errorf("changing status of entry %d: %w", *entry.ServerID, err))
	}
	return nil
}

// rollback restores prev unless the set was reloaded in the meantime, in
// which case the entry already reflects the backend.
func (s *StatusSynchronizer) rollback(localID string, prev domain.EntryStatus, generation uint64, cause error) {
	if s.store.Generation() != generation {
		return
	}
	if _, err := s.store.SetStatus(localID, prev); err != nil {
		return
	}
	entry := s.logger.WithFields(logrus.Fields{
		"local_id": localID,
		"status":   string(prev),
	}).WithError(cause)
	if errors.Is(cause, domain.ErrIdentifierMissing) {
		entry.Info("status change rolled back")
		return
	}
	entry.Error("status change rolled back")
}

func (s *StatusSynchronizer) acquire(localID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[localID]; busy {
		return false
	}
	s.inFlight[localID] = struct{}{}
	return true
}

func (s *StatusSynchronizer) release(localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, localID)
}

// IsRejection reports whether err came from the backend refusing a request
// rather than from the transport.
func IsRejection(err error) bool {
	return errors.Is(err, backend.ErrRejected)
}
