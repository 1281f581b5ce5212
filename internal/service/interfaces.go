package service

import (
	"context"

	"github.com/alexanderramin/milestones/internal/domain"
	"github.com/alexanderramin/milestones/internal/progression"
)

// EntryWorkspace is the editing session the CLI and TUI drive.
type EntryWorkspace interface {
	Caller() string
	Owner() string
	Supervisory() bool
	SelectPeriod(ctx context.Context, quarter, month int) error
	LoadError() error
	Resolution() Resolution
	Schedule() *domain.Schedule
	Template() domain.MeetingTemplate

	Entries() []domain.Entry
	Entry(localID string) (domain.Entry, bool)
	Progress() progression.Progress
	Editable(date domain.Date, stage domain.Stage) bool

	AddEntry(ctx context.Context, stage domain.Stage, date domain.Date) (domain.Entry, error)
	EditContent(ctx context.Context, localID, content string) (domain.Entry, error)
	RemoveEntry(ctx context.Context, localID string) error
	ChangeStatus(ctx context.Context, localID string, status domain.EntryStatus) error
	Submit(ctx context.Context) (SaveResult, error)
	Dirty() bool
	PendingSave() bool

	ExportInput() ExportInput
	Close(ctx context.Context) error
}

// IdentityResolver maps a user reference to a directory identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, department, ref string) (domain.Identity, error)
}

var (
	_ EntryWorkspace   = (*Workspace)(nil)
	_ IdentityResolver = (*DirectoryResolver)(nil)
)
