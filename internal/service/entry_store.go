package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/progression"
)

// fallbackRows is the number of empty D1 rows offered when no entry set
// could be loaded.
const fallbackRows = 3

// StoreSnapshot is a consistent copy of the store taken under one lock.
type StoreSnapshot struct {
	Username   string
	Schedule   *domain.Schedule
	Generation uint64
	Entries    []domain.Entry
}

// EntryStore holds the ordered entry set of the active (user, schedule).
// Every load or replace bumps Generation; saves bound to an older
// generation are discarded.
type EntryStore struct {
	client backend.Client
	now    func() time.Time

	mu         sync.RWMutex
	username   string
	schedule   *domain.Schedule
	entries    []domain.Entry
	generation uint64
	nextSeq    int64
	loadSeq    uint64
}

// NewEntryStore creates an empty store. now defaults to time.Now.
func NewEntryStore(client backend.Client, now func() time.Time) *EntryStore {
	if now == nil {
		now = time.Now
	}
	return &EntryStore{client: client, now: now}
}

// Load fetches the entry set of username for schedule and replaces the
// store contents. The store is always usable afterwards: without a schedule,
// or when the fetch fails, it holds three empty D1 rows dated today and the
// error is returned for the caller to report.
func (s *EntryStore) Load(ctx context.Context, username string, schedule *domain.Schedule, department string) ([]domain.Entry, error) {
	s.mu.Lock()
	s.loadSeq++
	token := s.loadSeq
	s.mu.Unlock()

	if schedule == nil {
		entries := s.fallbackEntries()
		if err := s.commitLoad(token, username, nil, entries); err != nil {
			return nil, err
		}
		return cloneEntries(entries), domain.ErrNoSchedule
	}

	records, err := s.client.ListEntries(ctx, backend.EntryQuery{
		Quarter:    schedule.QuarterParam(),
		Month:      schedule.Month,
		Department: department,
		Username:   username,
		ScheduleID: schedule.ID,
	})
	if err != nil {
		entries := s.fallbackEntries()
		if cerr := s.commitLoad(token, username, schedule, entries); cerr != nil {
			return nil, cerr
		}
		return cloneEntries(entries), fmt.Errorf("loading entries: %w", err)
	}

	entries := EntriesFromRecords(records)
	if err := s.commitLoad(token, username, schedule, entries); err != nil {
		return nil, err
	}
	return cloneEntries(entries), nil
}

func (s *EntryStore) commitLoad(token uint64, username string, schedule *domain.Schedule, entries []domain.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.loadSeq {
		return domain.ErrStaleLoad
	}
	s.replaceLocked(username, schedule, entries)
	return nil
}

// Replace installs entries as the set of (username, schedule) without a
// fetch, e.g. when restoring a dirty local journal. Returns the new
// generation.
func (s *EntryStore) Replace(username string, schedule *domain.Schedule, entries []domain.Entry) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadSeq++
	s.replaceLocked(username, schedule, cloneEntries(entries))
	return s.generation
}

func (s *EntryStore) replaceLocked(username string, schedule *domain.Schedule, entries []domain.Entry) {
	var maxSeq int64
	for _, e := range entries {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
	}
	domain.SortEntries(entries)
	s.username = username
	if schedule != nil {
		sc := *schedule
		s.schedule = &sc
	} else {
		s.schedule = nil
	}
	s.entries = entries
	s.nextSeq = maxSeq
	s.generation++
}

func (s *EntryStore) fallbackEntries() []domain.Entry {
	today := domain.DateOf(s.now())
	entries := make([]domain.Entry, 0, fallbackRows)
	for i := 0; i < fallbackRows; i++ {
		e := domain.NewEntry(today, domain.StageD1)
		e.Seq = int64(i + 1)
		entries = append(entries, e)
	}
	return entries
}

// Add appends an empty entry for (date, stage). The stage is supplied by
// the caller; the store keeps no notion of an active tab.
func (s *EntryStore) Add(date domain.Date, stage domain.Stage) domain.Entry {
	return s.Upsert(domain.NewEntry(date, stage))
}

// Upsert replaces the entry with the same LocalID, or appends it. Entries
// with different LocalIDs are never merged, even on the same date and stage.
func (s *EntryStore) Upsert(e domain.Entry) domain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Status == "" {
		e.Status = domain.StatusPending
	}
	for i := range s.entries {
		if s.entries[i].LocalID != e.LocalID {
			continue
		}
		if e.Seq == 0 {
			e.Seq = s.entries[i].Seq
		}
		s.entries[i] = e
		domain.SortEntries(s.entries)
		return e
	}
	if e.Seq == 0 || e.Seq <= s.nextSeq {
		s.nextSeq++
		e.Seq = s.nextSeq
	} else {
		s.nextSeq = e.Seq
	}
	s.entries = append(s.entries, e)
	domain.SortEntries(s.entries)
	return e
}

// UpdateContent sets the content of one entry.
func (s *EntryStore) UpdateContent(localID, content string) (domain.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(localID)
	if i < 0 {
		return domain.Entry{}, fmt.Errorf("entry %s: %w", localID, domain.ErrEntryNotFound)
	}
	s.entries[i].Content = content
	return s.entries[i], nil
}

// Remove drops an entry from the local set. The backend is not touched.
func (s *EntryStore) Remove(localID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(localID)
	if i < 0 {
		return fmt.Errorf("entry %s: %w", localID, domain.ErrEntryNotFound)
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return nil
}

// SetStatus sets the status of one entry and returns the previous one.
func (s *EntryStore) SetStatus(localID string, status domain.EntryStatus) (domain.EntryStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(localID)
	if i < 0 {
		return "", fmt.Errorf("entry %s: %w", localID, domain.ErrEntryNotFound)
	}
	prev := s.entries[i].EffectiveStatus()
	s.entries[i].Status = status
	return prev, nil
}

// AssignServerIDs writes identifiers returned by a save bound to
// generation. It fails with ErrStaleSave when the set has been reloaded
// since; entries removed in the meantime are skipped. Returns the number of
// entries updated.
func (s *EntryStore) AssignServerIDs(generation uint64, ids map[string]int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return 0, domain.ErrStaleSave
	}
	n := 0
	for i := range s.entries {
		id, ok := ids[s.entries[i].LocalID]
		if !ok {
			continue
		}
		s.entries[i].ServerID = domain.ServerIDPtr(id)
		n++
	}
	return n, nil
}

// Get returns a copy of one entry.
func (s *EntryStore) Get(localID string) (domain.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(localID)
	if i < 0 {
		return domain.Entry{}, false
	}
	return s.entries[i], true
}

// List returns the entries ordered by date, stage, then insertion order.
func (s *EntryStore) List() []domain.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.entries)
}

// Snapshot returns the entries together with the scope they belong to.
func (s *EntryStore) Snapshot() StoreSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := StoreSnapshot{
		Username:   s.username,
		Generation: s.generation,
		Entries:    cloneEntries(s.entries),
	}
	if s.schedule != nil {
		sc := *s.schedule
		snap.Schedule = &sc
	}
	return snap
}

// Schedule returns the schedule the set is bound to, or nil.
func (s *EntryStore) Schedule() *domain.Schedule {
	return s.Snapshot().Schedule
}

// Generation returns the current load generation.
func (s *EntryStore) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Progress evaluates the progression gate over the current set.
func (s *EntryStore) Progress() progression.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return progression.Evaluate(s.entries)
}

func (s *EntryStore) indexLocked(localID string) int {
	for i := range s.entries {
		if s.entries[i].LocalID == localID {
			return i
		}
	}
	return -1
}

func cloneEntries(entries []domain.Entry) []domain.Entry {
	out := make([]domain.Entry, len(entries))
	for i, e := range entries {
		if e.ServerID != nil {
			id := *e.ServerID
			e.ServerID = &id
		}
		out[i] = e
	}
	return out
}
