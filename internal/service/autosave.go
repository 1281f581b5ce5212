package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/domain"
)

// DefaultDebounce is the autosave debounce window.
const DefaultDebounce = 2000 * time.Millisecond

// Timer is the part of *time.Timer the engine needs.
type Timer interface {
	Stop() bool
}

// AfterFunc runs f once d has elapsed. time.AfterFunc satisfies it once
// wrapped; tests substitute a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SaveResult describes one save pass.
type SaveResult struct {
	Username   string
	ScheduleID int64
	Generation uint64

	// Saved lists the dates written, in submission order.
	Saved []domain.Date
	// Failed holds the error per date that could not be written.
	Failed map[domain.Date]error
	// Assigned counts entries that received a server identifier.
	Assigned int
	// Skipped is set when the fingerprint showed nothing to write.
	Skipped bool
	// Clean is set when every date with content matches its last
	// successful save.
	Clean bool

	GlobalFingerprint string
	DayFingerprints   map[domain.Date]string
}

// Writes returns the number of day submissions that succeeded.
func (r SaveResult) Writes() int { return len(r.Saved) }

// SaveError aggregates per-date save failures.
type SaveError struct {
	Failed map[domain.Date]error
}

func (e *SaveError) Error() string {
	dates := sortedDates(e.Failed)
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		parts = append(parts, fmt.Sprintf("%s: %v", d, e.Failed[d]))
	}
	return fmt.Sprintf("saving %d day(s) failed: %s", len(dates), strings.Join(parts, "; "))
}

// Unwrap exposes every per-date error to errors.Is and errors.As.
func (e *SaveError) Unwrap() []error {
	out := make([]error, 0, len(e.Failed))
	for _, d := range sortedDates(e.Failed) {
		out = append(out, e.Failed[d])
	}
	return out
}

// AutosaveOptions configures an AutosaveEngine. Zero values pick defaults.
type AutosaveOptions struct {
	Debounce  time.Duration
	AfterFunc AfterFunc
	Logger    logrus.FieldLogger
	Observer  UseCaseObserver

	// OnSaved is called after every save pass that wrote or tried to write,
	// including partially failed ones. It runs on the saving goroutine.
	OnSaved func(SaveResult)
}

// AutosaveEngine debounces edits, suppresses redundant writes by
// fingerprint, and writes day submissions back into the EntryStore. Every
// save path (debounced, manual submit, status-triggered) goes through the
// same per-date grouping and is serialized by saveMu.
type AutosaveEngine struct {
	store     *EntryStore
	client    backend.Client
	debounce  time.Duration
	afterFunc AfterFunc
	logger    logrus.FieldLogger
	observer  UseCaseObserver
	onSaved   func(SaveResult)

	saveMu sync.Mutex

	mu           sync.Mutex
	timer        Timer
	timerSeq     uint64
	lastGlobal   string
	lastDay      map[domain.Date]string
	fpGeneration uint64
	lastErr      error
	pinned       map[string]domain.EntryStatus
}

// NewAutosaveEngine creates an engine bound to store.
func NewAutosaveEngine(store *EntryStore, client backend.Client, opts AutosaveOptions) *AutosaveEngine {
	e := &AutosaveEngine{
		store:     store,
		client:    client,
		debounce:  opts.Debounce,
		afterFunc: opts.AfterFunc,
		logger:    opts.Logger,
		observer:  useCaseObserverOrNoop(opts.Observer),
		onSaved:   opts.OnSaved,
		lastDay:   make(map[domain.Date]string),
		pinned:    make(map[string]domain.EntryStatus),
	}
	if e.debounce <= 0 {
		e.debounce = DefaultDebounce
	}
	if e.afterFunc == nil {
		e.afterFunc = realAfterFunc
	}
	if e.logger == nil {
		e.logger = discardLogger()
	}
	return e
}

// ScheduleSave (re)arms the debounce timer. Only the last call within the
// window leads to a save.
func (e *AutosaveEngine) ScheduleSave() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timerSeq++
	seq := e.timerSeq
	e.timer = e.afterFunc(e.debounce, func() { e.fire(seq) })
}

// PinStatus makes every save pass submit status for localID, whatever the
// store shows, until the returned func is called.
func (e *AutosaveEngine) PinStatus(localID string, status domain.EntryStatus) (unpin func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned[localID] = status
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.pinned, localID)
	}
}

// Pending reports whether a debounced save is armed.
func (e *AutosaveEngine) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timer != nil
}

// cancelTimer disarms the debounce timer and reports whether one was armed.
func (e *AutosaveEngine) cancelTimer() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timer == nil {
		return false
	}
	e.timer.Stop()
	e.timer = nil
	e.timerSeq++
	return true
}

func (e *AutosaveEngine) fire(seq uint64) {
	e.mu.Lock()
	if seq != e.timerSeq {
		// Superseded by a later ScheduleSave or a cancel.
		e.mu.Unlock()
		return
	}
	e.timer = nil
	e.mu.Unlock()

	res, err := e.SaveDirty(context.Background())
	if err != nil && !errors.Is(err, domain.ErrNoSchedule) && !errors.Is(err, domain.ErrStaleSave) {
		// Silent retry on the next edit; the user is told on submit.
		e.logger.WithFields(logrus.Fields{
			"schedule_id": res.ScheduleID,
			"failed_days": len(res.Failed),
		}).WithError(err).Warn("autosave failed")
	}
}

// Flush runs the armed debounced save immediately. Without a pending save
// it does nothing.
func (e *AutosaveEngine) Flush(ctx context.Context) (SaveResult, error) {
	if !e.cancelTimer() {
		return SaveResult{Skipped: true}, nil
	}
	return e.SaveDirty(ctx)
}

// SaveDirty writes every date whose content differs from its last
// successful save. When the set fingerprint is unchanged it writes nothing.
func (e *AutosaveEngine) SaveDirty(ctx context.Context) (SaveResult, error) {
	var res SaveResult
	err := observe(ctx, e.observer, "autosave.save_dirty", nil, func() error {
		var err error
		res, err = e.save(ctx, nil)
		return err
	})
	return res, err
}

// SubmitAll is the manual submit: it cancels any armed debounce and saves
// all dirty dates now, through the same path as autosave.
func (e *AutosaveEngine) SubmitAll(ctx context.Context) (SaveResult, error) {
	e.cancelTimer()
	var res SaveResult
	err := observe(ctx, e.observer, "autosave.submit_all", nil, func() error {
		var err error
		res, err = e.save(ctx, nil)
		return err
	})
	return res, err
}

// SaveNow writes the entries of date immediately, regardless of
// fingerprints. Used when a status change needs a server identifier.
func (e *AutosaveEngine) SaveNow(ctx context.Context, date domain.Date) (SaveResult, error) {
	var res SaveResult
	err := observe(ctx, e.observer, "autosave.save_now", map[string]any{"date": date.String()}, func() error {
		var err error
		res, err = e.save(ctx, []domain.Date{date})
		return err
	})
	return res, err
}

// save performs one pass. With forced dates it writes exactly those;
// otherwise it diffs against the recorded fingerprints.
func (e *AutosaveEngine) save(ctx context.Context, forced []domain.Date) (SaveResult, error) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	snap := e.store.Snapshot()
	res := SaveResult{Username: snap.Username, Generation: snap.Generation}
	if snap.Schedule == nil {
		return res, domain.ErrNoSchedule
	}
	res.ScheduleID = snap.Schedule.ID

	global := SaveFingerprint(snap.Entries)
	current := DayFingerprints(snap.Entries)

	e.mu.Lock()
	if e.fpGeneration != snap.Generation {
		// Nothing of this generation has been saved yet.
		e.lastGlobal = ""
		e.lastDay = make(map[domain.Date]string)
		e.fpGeneration = snap.Generation
	}
	lastGlobal, lastDay := e.lastGlobal, e.lastDay
	pinned := make(map[string]domain.EntryStatus, len(e.pinned))
	for id, st := range e.pinned {
		pinned[id] = st
	}
	targets := forced
	if forced == nil {
		if global == lastGlobal {
			res.Skipped = true
			res.Clean = true
			res.GlobalFingerprint = lastGlobal
			e.mu.Unlock()
			return res, nil
		}
		for _, d := range sortedDates(current) {
			if current[d] != lastDay[d] {
				targets = append(targets, d)
			}
		}
	}
	e.mu.Unlock()

	res.Failed = make(map[domain.Date]error)
	for _, d := range targets {
		dr, ok := buildDayRequest(d, snap.Schedule.ID, snap.Entries, pinned)
		if !ok {
			continue
		}
		resp, err := e.client.SubmitDayEntries(ctx, dr.req)
		if err != nil {
			res.Failed[d] = err
			continue
		}
		if len(resp.CreatedEntryIDs) != len(dr.localIDs) {
			res.Failed[d] = fmt.Errorf("%w: %d identifiers for %d entries",
				backend.ErrInvalidResponse, len(resp.CreatedEntryIDs), len(dr.localIDs))
			continue
		}

		ids := make(map[string]int64, len(dr.localIDs))
		for i, localID := range dr.localIDs {
			ids[localID] = resp.CreatedEntryIDs[i]
		}
		n, err := e.store.AssignServerIDs(snap.Generation, ids)
		if err != nil {
			e.logger.WithField("date", d.String()).Info("discarding save result for a replaced period")
			return res, err
		}
		res.Assigned += n
		res.Saved = append(res.Saved, d)

		e.mu.Lock()
		if e.fpGeneration == snap.Generation {
			e.lastDay[d] = current[d]
		}
		e.mu.Unlock()
	}

	// Edits made while the requests were in flight keep the set dirty.
	latest := e.store.Snapshot()
	e.mu.Lock()
	if e.fpGeneration == snap.Generation && latest.Generation == snap.Generation {
		clean := true
		for d, fp := range DayFingerprints(latest.Entries) {
			if e.lastDay[d] != fp {
				clean = false
				break
			}
		}
		if clean {
			e.lastGlobal = SaveFingerprint(latest.Entries)
		}
		res.Clean = clean
		res.GlobalFingerprint = e.lastGlobal
		res.DayFingerprints = copyFingerprints(e.lastDay)
	}
	var err error
	if len(res.Failed) > 0 {
		err = &SaveError{Failed: res.Failed}
	}
	e.lastErr = err
	e.mu.Unlock()

	if e.onSaved != nil && (len(res.Saved) > 0 || len(res.Failed) > 0 || res.Clean) {
		e.onSaved(res)
	}
	return res, err
}

// Rebase records the current store contents as saved. Called after every
// fetch-replace of the entry set, so freshly loaded content is not
// written straight back.
func (e *AutosaveEngine) Rebase() {
	e.cancelTimer()
	snap := e.store.Snapshot()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastGlobal = SaveFingerprint(snap.Entries)
	e.lastDay = DayFingerprints(snap.Entries)
	e.fpGeneration = snap.Generation
	e.lastErr = nil
}

// Restore installs fingerprints persisted by an earlier process for the
// store's current generation. Dates missing from dayFPs count as dirty.
func (e *AutosaveEngine) Restore(global string, dayFPs map[domain.Date]string) {
	e.cancelTimer()
	gen := e.store.Generation()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastGlobal = global
	e.lastDay = copyFingerprints(dayFPs)
	e.fpGeneration = gen
	e.lastErr = nil
}

// Dirty reports whether the store differs from the last successful save.
func (e *AutosaveEngine) Dirty() bool {
	snap := e.store.Snapshot()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fpGeneration != snap.Generation {
		return true
	}
	return SaveFingerprint(snap.Entries) != e.lastGlobal
}

// LastError returns the error of the most recent save pass, if any.
func (e *AutosaveEngine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func copyFingerprints(in map[domain.Date]string) map[domain.Date]string {
	out := make(map[domain.Date]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sortedDates[V any](m map[domain.Date]V) []domain.Date {
	dates := make([]domain.Date, 0, len(m))
	for d := range m {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}
