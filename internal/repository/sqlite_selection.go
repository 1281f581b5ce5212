package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/milestones/internal/db"
)

// SQLiteSelectionRepo implements SelectionRepo using a SQLite database.
type SQLiteSelectionRepo struct {
	db db.DBTX
}

// NewSQLiteSelectionRepo creates a new SQLiteSelectionRepo.
func NewSQLiteSelectionRepo(conn db.DBTX) *SQLiteSelectionRepo {
	return &SQLiteSelectionRepo{db: conn}
}

func (r *SQLiteSelectionRepo) Get(ctx context.Context, username string) (*PeriodSelection, error) {
	query := `SELECT username, department, quarter, month, schedule_id, updated_at
		FROM period_selections WHERE username = ?`
	var (
		sel          PeriodSelection
		scheduleID   sql.NullInt64
		updatedAtStr string
	)
	err := r.db.QueryRowContext(ctx, query, username).Scan(
		&sel.Username, &sel.Department, &sel.Quarter, &sel.Month, &scheduleID, &updatedAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("period selection: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning period selection: %w", err)
	}
	sel.ScheduleID = nullInt64ToPtr(scheduleID)
	if sel.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr); err != nil {
		return nil, fmt.Errorf("parsing period selection updated_at: %w", err)
	}
	return &sel, nil
}

func (r *SQLiteSelectionRepo) Upsert(ctx context.Context, sel PeriodSelection) error {
	query := `INSERT OR REPLACE INTO period_selections
		(username, department, quarter, month, schedule_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		sel.Username,
		sel.Department,
		sel.Quarter,
		sel.Month,
		nullableInt64ToValue(sel.ScheduleID),
		nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting period selection: %w", err)
	}
	return nil
}
