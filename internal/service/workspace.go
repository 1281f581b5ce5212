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
	"github.com/alexanderramin/milestones/internal/progression"
	"github.com/alexanderramin/milestones/internal/repository"
)

// WorkspaceOptions configures OpenWorkspace. Caller and Client are
// required; everything else has a usable zero value.
type WorkspaceOptions struct {
	Caller     string
	Subject    string
	Department string
	Quarter    int
	Month      int

	Client    backend.Client
	Journal   *Journal
	Templates *TemplateCatalog

	Debounce          time.Duration
	StatusSaveTimeout time.Duration
	AfterFunc         AfterFunc
	Logger            logrus.FieldLogger
	Observer          UseCaseObserver
	Now               func() time.Time
}

// Workspace binds the schedule resolver, entry store, autosave engine and
// status synchronizer for one user's active reporting period.
type Workspace struct {
	caller     string
	subject    string
	department string

	journal  *Journal
	resolver *ScheduleResolver
	store    *EntryStore
	autosave *AutosaveEngine
	status   *StatusSynchronizer
	logger   logrus.FieldLogger

	loadMu     sync.Mutex
	mu         sync.RWMutex
	resolution Resolution
	loadErr    error
}

// OpenWorkspace resolves the period and loads its entries. A backend that
// is down does not fail the call: the workspace falls back to an empty set
// and LoadError reports why.
func OpenWorkspace(ctx context.Context, opts WorkspaceOptions) (*Workspace, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("opening workspace: no backend client")
	}
	if opts.Caller == "" {
		return nil, fmt.Errorf("opening workspace: no user given")
	}
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}

	ws := &Workspace{
		caller:     opts.Caller,
		subject:    opts.Subject,
		department: opts.Department,
		journal:    opts.Journal,
		logger:     logger.WithField("user", domain.CoalesceStr(opts.Subject, opts.Caller)),
	}
	ws.resolver = NewScheduleResolver(opts.Client, opts.Templates, opts.Now)
	ws.store = NewEntryStore(opts.Client, opts.Now)
	ws.autosave = NewAutosaveEngine(ws.store, opts.Client, AutosaveOptions{
		Debounce:  opts.Debounce,
		AfterFunc: opts.AfterFunc,
		Logger:    ws.logger,
		Observer:  opts.Observer,
		OnSaved:   ws.recordSave,
	})
	ws.status = NewStatusSynchronizer(ws.store, ws.autosave, opts.Client, StatusOptions{
		SaveTimeout: opts.StatusSaveTimeout,
		Logger:      ws.logger,
		Observer:    opts.Observer,
	})

	quarter, month := opts.Quarter, opts.Month
	if quarter == 0 && month == 0 && ws.journal != nil {
		sel, err := ws.journal.LastSelection(ctx, ws.Owner())
		if err != nil {
			ws.logger.WithError(err).Warn("reading last period selection")
		} else if sel != nil {
			quarter, month = sel.Quarter, sel.Month
		}
	}
	_ = ws.load(ctx, quarter, month)
	return ws, nil
}

// Caller is the acting user.
func (w *Workspace) Caller() string {
	return w.caller
}

// Owner is the user whose period is shown and written.
func (w *Workspace) Owner() string {
	return domain.CoalesceStr(w.subject, w.caller)
}

// Supervisory reports whether the caller is viewing someone else.
func (w *Workspace) Supervisory() bool {
	return w.subject != "" && w.subject != w.caller
}

// SelectPeriod flushes pending edits of the current period and switches to
// (quarter, month).
func (w *Workspace) SelectPeriod(ctx context.Context, quarter, month int) error {
	if _, err := w.autosave.Flush(ctx); err != nil && !errors.Is(err, domain.ErrNoSchedule) {
		w.logger.WithError(err).Warn("flushing edits before period change")
	}
	return w.load(ctx, quarter, month)
}

func (w *Workspace) load(ctx context.Context, quarter, month int) error {
	w.loadMu.Lock()
	defer w.loadMu.Unlock()

	owner := w.Owner()
	res, err := w.resolver.Resolve(ctx, ResolveRequest{
		Caller:     w.caller,
		Subject:    w.subject,
		Department: w.department,
		Quarter:    quarter,
		Month:      month,
	})
	if err != nil {
		_, _ = w.store.Load(ctx, owner, nil, w.department)
		w.autosave.Rebase()
		return w.setLoaded(res, err)
	}

	entries, lerr := w.store.Load(ctx, owner, res.Schedule, w.department)
	if errors.Is(lerr, domain.ErrStaleLoad) {
		return lerr
	}
	if res.Schedule == nil {
		w.autosave.Rebase()
		return w.setLoaded(res, domain.ErrNoSchedule)
	}

	scope := repository.Scope{Username: owner, ScheduleID: res.Schedule.ID}
	if w.journal == nil {
		w.autosave.Rebase()
		return w.setLoaded(res, lerr)
	}

	st, jerr := w.journal.Load(ctx, scope)
	switch {
	case jerr != nil:
		w.logger.WithError(jerr).Warn("reading local journal")
		w.autosave.Rebase()
	case st.Dirty && len(st.Entries) > 0:
		w.store.Replace(owner, res.Schedule, st.Entries)
		w.autosave.Restore(st.GlobalFingerprint, st.DayFingerprints)
		w.autosave.ScheduleSave()
		w.logger.WithFields(logrus.Fields{
			"schedule_id": scope.ScheduleID,
			"entries":     len(st.Entries),
		}).Info("restored unsent edits from local journal")
	case lerr == nil:
		reused, err := w.journal.ReuseLocalIDs(ctx, scope, entries)
		if err == nil {
			w.store.Replace(owner, res.Schedule, reused)
		}
		w.autosave.Rebase()
		if err := w.journal.Adopt(ctx, scope, w.store.List()); err != nil {
			w.logger.WithError(err).Warn("writing local journal")
		}
	default:
		w.autosave.Rebase()
	}

	if err := w.journal.SaveSelection(ctx, repository.PeriodSelection{
		Username:   owner,
		Department: w.department,
		Quarter:    res.Schedule.Quarter,
		Month:      res.Schedule.Month,
		ScheduleID: &scope.ScheduleID,
	}); err != nil {
		w.logger.WithError(err).Warn("saving period selection")
	}
	return w.setLoaded(res, lerr)
}

func (w *Workspace) setLoaded(res Resolution, err error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resolution = res
	w.loadErr = err
	return err
}

// LoadError reports why the last load fell back to an empty set, if it did.
func (w *Workspace) LoadError() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.loadErr
}

// Resolution returns the active schedule, template and the rule that
// picked them.
func (w *Workspace) Resolution() Resolution {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.resolution
}

// Schedule returns the active schedule, or nil.
func (w *Workspace) Schedule() *domain.Schedule {
	return w.store.Schedule()
}

// Template returns the section headings of the active period.
func (w *Workspace) Template() domain.MeetingTemplate {
	return w.Resolution().Template
}

// Entries returns the current entry set in display order.
func (w *Workspace) Entries() []domain.Entry {
	return w.store.List()
}

// Entry returns one entry by local identifier.
func (w *Workspace) Entry(localID string) (domain.Entry, bool) {
	return w.store.Get(localID)
}

// Progress evaluates the progression gate over the current set.
func (w *Workspace) Progress() progression.Progress {
	return w.store.Progress()
}

// Editable reports whether a row at (date, stage) accepts content: its
// stage tab must be unlocked and the same-date gate satisfied.
func (w *Workspace) Editable(date domain.Date, stage domain.Stage) bool {
	p := w.store.Progress()
	return p.StageUnlocked(stage) && p.Editable(date, stage)
}

// AddEntry appends an empty row under stage. The stage tab must be
// unlocked.
func (w *Workspace) AddEntry(ctx context.Context, stage domain.Stage, date domain.Date) (domain.Entry, error) {
	if stage.Index() < 0 {
		return domain.Entry{}, fmt.Errorf("adding entry: unknown stage %q", stage)
	}
	if date.IsZero() {
		return domain.Entry{}, fmt.Errorf("adding entry: no date given")
	}
	if !w.store.Progress().StageUnlocked(stage) {
		return domain.Entry{}, fmt.Errorf("adding %s entry: %w", stage, domain.ErrStageLocked)
	}
	e := w.store.Add(date, stage)
	w.touched(ctx)
	return e, nil
}

// EditContent changes the content of one row and arms autosave. Content
// holding the note separator is refused.
func (w *Workspace) EditContent(ctx context.Context, localID, content string) (domain.Entry, error) {
	if err := domain.ValidateContent(content); err != nil {
		return domain.Entry{}, fmt.Errorf("editing entry %s: %w", localID, err)
	}
	e, ok := w.store.Get(localID)
	if !ok {
		return domain.Entry{}, fmt.Errorf("entry %s: %w", localID, domain.ErrEntryNotFound)
	}
	if !w.Editable(e.Date, e.Stage) {
		return domain.Entry{}, fmt.Errorf("editing %s %s: %w", e.Date, e.Stage, domain.ErrStageLocked)
	}
	e, err := w.store.UpdateContent(localID, content)
	if err != nil {
		return domain.Entry{}, err
	}
	w.touched(ctx)
	return e, nil
}

// RemoveEntry drops a row locally. Rows already on the backend stay there.
func (w *Workspace) RemoveEntry(ctx context.Context, localID string) error {
	if err := w.store.Remove(localID); err != nil {
		return err
	}
	w.touched(ctx)
	return nil
}

// ChangeStatus changes the status of one entry.
func (w *Workspace) ChangeStatus(ctx context.Context, localID string, status domain.EntryStatus) error {
	return w.status.ChangeStatus(ctx, localID, status)
}

// Submit saves every dirty date now.
func (w *Workspace) Submit(ctx context.Context) (SaveResult, error) {
	return w.autosave.SubmitAll(ctx)
}

// Dirty reports whether there are edits the backend has not accepted.
func (w *Workspace) Dirty() bool {
	return w.autosave.Dirty()
}

// PendingSave reports whether a debounced save is armed.
func (w *Workspace) PendingSave() bool {
	return w.autosave.Pending()
}

// ExportInput returns the data an export of the current period shows.
func (w *Workspace) ExportInput() ExportInput {
	snap := w.store.Snapshot()
	return ExportInput{
		Username: snap.Username,
		Schedule: snap.Schedule,
		Template: w.Template(),
		Entries:  snap.Entries,
	}
}

// Close flushes a pending autosave.
func (w *Workspace) Close(ctx context.Context) error {
	_, err := w.autosave.Flush(ctx)
	if errors.Is(err, domain.ErrNoSchedule) {
		return nil
	}
	return err
}

func (w *Workspace) touched(ctx context.Context) {
	w.autosave.ScheduleSave()
	if w.journal == nil || !w.autosave.Dirty() {
		return
	}
	snap := w.store.Snapshot()
	if snap.Schedule == nil {
		return
	}
	scope := repository.Scope{Username: snap.Username, ScheduleID: snap.Schedule.ID}
	if err := w.journal.SaveDraft(ctx, scope, snap.Entries); err != nil {
		w.logger.WithError(err).Warn("writing local journal")
	}
}

// recordSave runs on the saving goroutine after each save pass.
func (w *Workspace) recordSave(res SaveResult) {
	if w.journal == nil || res.ScheduleID == 0 {
		return
	}
	snap := w.store.Snapshot()
	if snap.Generation != res.Generation {
		return
	}
	scope := repository.Scope{Username: res.Username, ScheduleID: res.ScheduleID}
	if err := w.journal.RecordSave(context.Background(), scope, res, snap.Entries); err != nil {
		w.logger.WithError(err).Warn("recording save in local journal")
	}
}
