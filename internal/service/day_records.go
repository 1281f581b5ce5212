package service

import (
	"strings"

	"github.com/alexanderramin/milestones/internal/backend"
	"github.com/alexanderramin/milestones/internal/domain"
)

// dayGroup is the set of records on one date that carry the same
// multi-stage note. A submitted day yields one record per non-empty stage
// row, all sharing the joined note; they collapse back into one split.
type dayGroup struct {
	note    string
	parts   []string
	records []backend.DayRecord
}

// EntriesFromRecords converts backend day records into staged entries.
// Records without a usable date are dropped. A note with several parts is
// split in stage order (part 0 to D1, 1 to D2, 2 to D3; anything further
// stays in D3), and the identifiers of the records sharing that note are
// handed to the parts by position. A single-part note goes to the first
// stage of its date that has no content yet, D1 when all are filled.
func EntriesFromRecords(records []backend.DayRecord) []domain.Entry {
	var dates []domain.Date
	groups := make(map[domain.Date][]*dayGroup)
	for _, rec := range records {
		if rec.Date.IsZero() {
			continue
		}
		parts := domain.SplitNote(rec.Note)
		list, seen := groups[rec.Date]
		if !seen {
			dates = append(dates, rec.Date)
		}
		if len(parts) > 1 {
			if g := findGroup(list, rec.Note); g != nil {
				g.records = append(g.records, rec)
				continue
			}
		}
		groups[rec.Date] = append(list, &dayGroup{note: rec.Note, parts: parts, records: []backend.DayRecord{rec}})
	}

	var (
		entries []domain.Entry
		seq     int64
	)
	add := func(e domain.Entry) {
		seq++
		e.Seq = seq
		entries = append(entries, e)
	}

	for _, d := range dates {
		var filled [3]bool
		for _, g := range groups[d] {
			if len(g.parts) <= 1 {
				content := ""
				if len(g.parts) == 1 {
					content = g.parts[0]
				}
				stage := firstEmpty(filled)
				add(entryFromRecord(d, stage, content, g.records[0]))
				if strings.TrimSpace(content) != "" {
					filled[stage.Index()] = true
				}
				continue
			}

			parts := g.parts
			if len(parts) > len(domain.Stages) {
				tail := domain.JoinNote(parts[len(domain.Stages)-1:])
				parts = append(parts[:len(domain.Stages)-1:len(domain.Stages)-1], tail)
			}
			for i, content := range parts {
				stage, _ := domain.StageAt(i)
				e := domain.NewEntry(d, stage)
				e.Content = content
				if i < len(g.records) {
					e = entryFromRecord(d, stage, content, g.records[i])
				}
				add(e)
				if strings.TrimSpace(content) != "" {
					filled[i] = true
				}
			}
		}
	}
	domain.SortEntries(entries)
	return entries
}

func findGroup(list []*dayGroup, note string) *dayGroup {
	for _, g := range list {
		if len(g.parts) > 1 && g.note == note {
			return g
		}
	}
	return nil
}

func firstEmpty(filled [3]bool) domain.Stage {
	for i, f := range filled {
		if !f {
			return domain.Stages[i]
		}
	}
	return domain.StageD1
}

func entryFromRecord(date domain.Date, stage domain.Stage, content string, rec backend.DayRecord) domain.Entry {
	e := domain.NewEntry(date, stage)
	e.Content = content
	e.Status = rec.Status
	if rec.ID != nil {
		e.ServerID = domain.ServerIDPtr(*rec.ID)
	}
	return e
}

// dayRequest is one synthesized day submission together with the local
// entries its sub-entries stand for, in submission order.
type dayRequest struct {
	date     domain.Date
	req      backend.DayEntriesRequest
	localIDs []string
}

// buildDayRequest synthesizes the submission for one date. The note joins
// the non-empty stage contents in stage order; several rows of one stage on
// the same date are joined by newlines into that stage's part. Each
// non-empty row becomes one sub-entry carrying the joined note and its own
// status (pinned overrides it), so the response holds one identifier per
// row. The first row of every part is submitted first, in part order, and
// the further rows of a stage follow; the identifiers of the leading
// sub-entries then line up with the parts EntriesFromRecords splits out.
func buildDayRequest(date domain.Date, scheduleID int64, entries []domain.Entry, pinned map[string]domain.EntryStatus) (dayRequest, bool) {
	var day []domain.Entry
	for _, e := range entries {
		if e.Date == date && e.HasContent() {
			day = append(day, e)
		}
	}
	if len(day) == 0 {
		return dayRequest{}, false
	}
	domain.SortEntries(day)

	var (
		parts   []string
		leading []domain.Entry
		extra   []domain.Entry
		current domain.Stage
	)
	for _, e := range day {
		if len(parts) > 0 && e.Stage == current {
			parts[len(parts)-1] += "\n" + e.Content
			extra = append(extra, e)
			continue
		}
		parts = append(parts, e.Content)
		leading = append(leading, e)
		current = e.Stage
	}
	note := domain.JoinNote(parts)

	dr := dayRequest{
		date: date,
		req: backend.DayEntriesRequest{
			Date:       date,
			ScheduleID: scheduleID,
			Entries:    make([]backend.DayEntry, 0, len(day)),
		},
		localIDs: make([]string, 0, len(day)),
	}
	for _, e := range append(leading, extra...) {
		status := e.EffectiveStatus()
		if p, ok := pinned[e.LocalID]; ok && p != "" {
			status = p
		}
		dr.req.Entries = append(dr.req.Entries, backend.DayEntry{Note: note, Status: status})
		dr.localIDs = append(dr.localIDs, e.LocalID)
	}
	return dr, true
}
