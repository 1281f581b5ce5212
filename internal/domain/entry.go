package domain

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Entry is one dated, staged milestone row.
type Entry struct {
	LocalID  string
	ServerID *int64
	Date     Date
	Stage    Stage
	Content  string
	Status   EntryStatus

	// Seq records insertion order; it keeps ordering stable within a
	// (date, stage) bucket.
	Seq int64
}

// NewEntry creates a draft entry with a fresh local identifier.
func NewEntry(date Date, stage Stage) Entry {
	return Entry{
		LocalID: uuid.New().String(),
		Date:    date,
		Stage:   stage,
		Status:  StatusPending,
	}
}

// Persisted reports whether the backend has assigned an identifier.
func (e Entry) Persisted() bool {
	return e.ServerID != nil && *e.ServerID > 0
}

// HasContent reports whether the entry counts toward progression and saves.
func (e Entry) HasContent() bool {
	return strings.TrimSpace(e.Content) != ""
}

// EffectiveStatus returns the status, defaulting to PENDING when unset.
func (e Entry) EffectiveStatus() EntryStatus {
	if e.Status == "" {
		return StatusPending
	}
	return e.Status
}

// ServerIDPtr returns a pointer to id, or nil when id is not positive.
func ServerIDPtr(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

// SortEntries orders entries by date, then stage, then insertion order.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.Stage != b.Stage {
			return a.Stage.Index() < b.Stage.Index()
		}
		return a.Seq < b.Seq
	})
}

// GroupByDate returns the entries for each date, preserving the input order,
// along with the dates in first-seen order.
func GroupByDate(entries []Entry) ([]Date, map[Date][]Entry) {
	groups := make(map[Date][]Entry)
	var dates []Date
	for _, e := range entries {
		if _, ok := groups[e.Date]; !ok {
			dates = append(dates, e.Date)
		}
		groups[e.Date] = append(groups[e.Date], e)
	}
	return dates, groups
}
