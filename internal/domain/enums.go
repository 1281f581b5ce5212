package domain

import (
	"fmt"
	"strings"
)

// Stage is one of the three sequential sections of a milestone entry.
type Stage string

const (
	StageD1 Stage = "D1"
	StageD2 Stage = "D2"
	StageD3 Stage = "D3"
)

// Stages lists every stage in unlock order.
var Stages = []Stage{StageD1, StageD2, StageD3}

// Index returns the zero-based position of the stage, or -1 if unknown.
func (s Stage) Index() int {
	switch s {
	case StageD1:
		return 0
	case StageD2:
		return 1
	case StageD3:
		return 2
	default:
		return -1
	}
}

// Previous returns the stage that must be filled before s, and false for D1.
func (s Stage) Previous() (Stage, bool) {
	i := s.Index()
	if i <= 0 {
		return "", false
	}
	return Stages[i-1], true
}

// StageAt returns the stage for a zero-based note position.
func StageAt(i int) (Stage, bool) {
	if i < 0 || i >= len(Stages) {
		return "", false
	}
	return Stages[i], true
}

// ParseStage accepts "D1", "d2", "3" and similar spellings.
func ParseStage(s string) (Stage, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "D")
	switch v {
	case "1":
		return StageD1, nil
	case "2":
		return StageD2, nil
	case "3":
		return StageD3, nil
	}
	return "", fmt.Errorf("unknown stage %q (expected D1, D2 or D3)", s)
}

// EntryStatus is the canonical in-memory status of an entry. Backend
// spellings differ per endpoint and are mapped in the backend package.
type EntryStatus string

const (
	StatusPending    EntryStatus = "PENDING"
	StatusInProgress EntryStatus = "IN_PROGRESS"
	StatusCompleted  EntryStatus = "COMPLETED"
)

// Statuses lists every status in workflow order.
var Statuses = []EntryStatus{StatusPending, StatusInProgress, StatusCompleted}

// ParseEntryStatus is tolerant of case, spaces and underscores, so
// "in progress", "INPROCESS", "In_Progress" and "Completed" all parse.
// The empty string parses as PENDING.
func ParseEntryStatus(s string) (EntryStatus, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(v)
	switch v {
	case "", "PENDING", "TODO":
		return StatusPending, nil
	case "INPROGRESS", "INPROCESS":
		return StatusInProgress, nil
	case "COMPLETED", "COMPLETE", "DONE":
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("unknown entry status %q", s)
}

// Label returns a human-readable status label.
func (s EntryStatus) Label() string {
	switch s {
	case StatusInProgress:
		return "In progress"
	case StatusCompleted:
		return "Completed"
	default:
		return "Pending"
	}
}
