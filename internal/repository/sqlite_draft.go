package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/milestones/internal/db"
	"github.com/alexanderramin/milestones/internal/domain"
)

// SQLiteDraftRepo implements DraftRepo using a SQLite database.
type SQLiteDraftRepo struct {
	db db.DBTX
}

// NewSQLiteDraftRepo creates a new SQLiteDraftRepo.
func NewSQLiteDraftRepo(conn db.DBTX) *SQLiteDraftRepo {
	return &SQLiteDraftRepo{db: conn}
}

const draftColumns = `local_id, server_id, entry_date, stage, content, status, seq`

func (r *SQLiteDraftRepo) ListByScope(ctx context.Context, scope Scope) ([]domain.Entry, error) {
	query := `SELECT ` + draftColumns + ` FROM entry_drafts
		WHERE username = ? AND schedule_id = ?
		ORDER BY entry_date, stage, seq`
	rows, err := r.db.QueryContext(ctx, query, scope.Username, scope.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("listing drafts: %w", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		e, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating drafts: %w", err)
	}
	domain.SortEntries(entries)
	return entries, nil
}

func (r *SQLiteDraftRepo) GetByID(ctx context.Context, localID string) (*domain.Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM entry_drafts WHERE local_id = ?`, localID)
	e, err := scanDraft(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("draft %s: %w", localID, ErrNotFound)
		}
		return nil, err
	}
	return &e, nil
}

// ReplaceScope swaps the whole entry set of scope. Callers run it inside a
// unit of work so readers never see a half-written set.
func (r *SQLiteDraftRepo) ReplaceScope(ctx context.Context, scope Scope, entries []domain.Entry) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM entry_drafts WHERE username = ? AND schedule_id = ?`,
		scope.Username, scope.ScheduleID); err != nil {
		return fmt.Errorf("clearing drafts: %w", err)
	}
	for _, e := range entries {
		if err := r.Upsert(ctx, scope, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteDraftRepo) Upsert(ctx context.Context, scope Scope, e domain.Entry) error {
	query := `INSERT INTO entry_drafts
		(local_id, username, schedule_id, server_id, entry_date, stage, content, status, seq, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			username = excluded.username,
			schedule_id = excluded.schedule_id,
			server_id = excluded.server_id,
			entry_date = excluded.entry_date,
			stage = excluded.stage,
			content = excluded.content,
			status = excluded.status,
			seq = excluded.seq,
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		e.LocalID,
		scope.Username,
		scope.ScheduleID,
		nullableInt64ToValue(e.ServerID),
		e.Date.String(),
		string(e.Stage),
		e.Content,
		string(e.EffectiveStatus()),
		e.Seq,
		nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting draft: %w", err)
	}
	return nil
}

func (r *SQLiteDraftRepo) Delete(ctx context.Context, localID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM entry_drafts WHERE local_id = ?`, localID)
	if err != nil {
		return fmt.Errorf("deleting draft: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking deleted drafts: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("draft %s: %w", localID, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (domain.Entry, error) {
	var (
		e        domain.Entry
		serverID sql.NullInt64
		dateStr  string
		stage    string
		status   string
	)
	if err := row.Scan(&e.LocalID, &serverID, &dateStr, &stage, &e.Content, &status, &e.Seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scanning draft: %w", err)
	}
	return populateDraft(e, serverID, dateStr, stage, status)
}

func populateDraft(e domain.Entry, serverID sql.NullInt64, dateStr, stage, status string) (domain.Entry, error) {
	var err error
	e.ServerID = nullInt64ToPtr(serverID)
	if e.Date, err = domain.ParseDate(dateStr); err != nil {
		return e, fmt.Errorf("parsing draft date: %w", err)
	}
	if e.Stage, err = domain.ParseStage(stage); err != nil {
		return e, fmt.Errorf("parsing draft stage: %w", err)
	}
	if e.Status, err = domain.ParseEntryStatus(status); err != nil {
		return e, fmt.Errorf("parsing draft status: %w", err)
	}
	return e, nil
}
