package backend

import "github.com/alexanderramin/milestones/internal/domain"

// Endpoint names a backend operation whose status vocabulary differs from
// the others.
type Endpoint string

const (
	EndpointDayEntries   Endpoint = "day_entries"
	EndpointChangeStatus Endpoint = "change_entry_status"
)

// StatusFor spells status the way endpoint expects it. Both endpoints write
// "in progress" as INPROCESS; only the status endpoint title-cases
// "Completed".
func StatusFor(endpoint Endpoint, status domain.EntryStatus) string {
	switch status {
	case domain.StatusInProgress:
		return "INPROCESS"
	case domain.StatusCompleted:
		if endpoint == EndpointChangeStatus {
			return "Completed"
		}
		return "COMPLETED"
	default:
		return "PENDING"
	}
}
