package backend

import "github.com/alexanderramin/milestones/internal/domain"

// DayRecord is one normalized record from the entries endpoint. Date is the
// zero Date when the backend value was missing or unparseable.
type DayRecord struct {
	ID       *int64
	Note     string
	Status   domain.EntryStatus
	Date     domain.Date
	RawDate  string
	Username string
}

// EntryQuery selects day records for one user and period.
type EntryQuery struct {
	Quarter    string
	Month      int
	Department string
	Username   string
	ScheduleID int64
}

// DayEntry is one sub-entry submitted for a calendar day.
type DayEntry struct {
	Note   string
	Status domain.EntryStatus
}

// DayEntriesRequest submits the entries of one calendar day.
type DayEntriesRequest struct {
	Entries    []DayEntry
	Date       domain.Date
	ScheduleID int64
}

// DayEntriesResponse carries the identifiers created for a submission, in
// the order the entries were submitted.
type DayEntriesResponse struct {
	Message         string
	CreatedEntryIDs []int64
}

type dayEntriesWire struct {
	Entries    []dayEntryWire `json:"entries"`
	Date       string         `json:"date"`
	ScheduleID int64          `json:"month_quater_id"`
}

type dayEntryWire struct {
	Note   string `json:"note"`
	Status string `json:"status"`
}

type dayEntriesResponseWire struct {
	Message         string `json:"message"`
	CreatedEntryIDs []any  `json:"created_entry_ids"`
}

type changeStatusWire struct {
	Status string `json:"status"`
}
