package domain

import "errors"

var (
	// ErrIdentifierMissing is returned when a status change targets an entry
	// that has neither a server identifier nor content that could be saved
	// to obtain one. It is a user-input error, not a system fault.
	ErrIdentifierMissing = errors.New("entry has no content yet; write something before changing its status")

	// ErrStatusChangeInFlight rejects a second status change for an entry
	// whose previous change has not completed.
	ErrStatusChangeInFlight = errors.New("a status change for this entry is already in progress")

	// ErrNoSchedule means no reporting period exists to attach saves to.
	ErrNoSchedule = errors.New("no reporting period is available for this user")

	// ErrEntryNotFound means no entry matched the given local identifier.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrStageLocked means the stage tab or the row's content field is
	// not editable yet.
	ErrStageLocked = errors.New("stage is locked")

	// ErrNoteSeparator rejects content that would split into several stages
	// once joined into a day note.
	ErrNoteSeparator = errors.New(`content must not contain " | "`)

	// ErrStaleSave means a save finished after the active period changed;
	// its result was discarded.
	ErrStaleSave = errors.New("save result discarded: reporting period changed")

	// ErrStaleLoad means a newer load started before this one finished.
	ErrStaleLoad = errors.New("load result discarded: a newer load is in progress")
)
