package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/milestones/internal/db"
	"github.com/alexanderramin/milestones/internal/domain"
)

// SQLiteSyncStateRepo implements SyncStateRepo using a SQLite database.
type SQLiteSyncStateRepo struct {
	db db.DBTX
}

// NewSQLiteSyncStateRepo creates a new SQLiteSyncStateRepo.
func NewSQLiteSyncStateRepo(conn db.DBTX) *SQLiteSyncStateRepo {
	return &SQLiteSyncStateRepo{db: conn}
}

func (r *SQLiteSyncStateRepo) Get(ctx context.Context, scope Scope) (*SyncState, error) {
	query := `SELECT dirty, global_fingerprint, last_synced_at, last_error, updated_at
		FROM sync_state WHERE username = ? AND schedule_id = ?`
	row := r.db.QueryRowContext(ctx, query, scope.Username, scope.ScheduleID)

	var (
		st           = SyncState{Scope: scope}
		dirty        int
		lastSynced   sql.NullString
		updatedAtStr string
	)
	if err := row.Scan(&dirty, &st.GlobalFingerprint, &lastSynced, &st.LastError, &updatedAtStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sync state: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scanning sync state: %w", err)
	}
	st.Dirty = intToBool(dirty)
	st.LastSyncedAt = parseNullableTime(lastSynced, time.RFC3339)
	updatedAt, err := time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing sync state updated_at: %w", err)
	}
	st.UpdatedAt = updatedAt
	return &st, nil
}

func (r *SQLiteSyncStateRepo) MarkDirty(ctx context.Context, scope Scope) error {
	query := `INSERT INTO sync_state (username, schedule_id, dirty, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(username, schedule_id) DO UPDATE SET dirty = 1, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, scope.Username, scope.ScheduleID, nowUTC()); err != nil {
		return fmt.Errorf("marking sync state dirty: %w", err)
	}
	return nil
}

func (r *SQLiteSyncStateRepo) MarkSynced(ctx context.Context, scope Scope, globalFingerprint string, at time.Time) error {
	query := `INSERT INTO sync_state (username, schedule_id, dirty, global_fingerprint, last_synced_at, last_error, updated_at)
		VALUES (?, ?, 0, ?, ?, '', ?)
		ON CONFLICT(username, schedule_id) DO UPDATE SET
			dirty = 0,
			global_fingerprint = excluded.global_fingerprint,
			last_synced_at = excluded.last_synced_at,
			last_error = '',
			updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		scope.Username, scope.ScheduleID, globalFingerprint, at.UTC().Format(time.RFC3339), nowUTC())
	if err != nil {
		return fmt.Errorf("marking sync state synced: %w", err)
	}
	return nil
}

// RecordError keeps the dirty flag set and stores msg for display.
func (r *SQLiteSyncStateRepo) RecordError(ctx context.Context, scope Scope, msg string) error {
	query := `INSERT INTO sync_state (username, schedule_id, dirty, last_error, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(username, schedule_id) DO UPDATE SET
			dirty = 1, last_error = excluded.last_error, updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query, scope.Username, scope.ScheduleID, msg, nowUTC()); err != nil {
		return fmt.Errorf("recording sync error: %w", err)
	}
	return nil
}

func (r *SQLiteSyncStateRepo) DayFingerprints(ctx context.Context, scope Scope) (map[domain.Date]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT entry_date, fingerprint FROM day_fingerprints WHERE username = ? AND schedule_id = ?`,
		scope.Username, scope.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("listing day fingerprints: %w", err)
	}
	defer rows.Close()

	fps := make(map[domain.Date]string)
	for rows.Next() {
		var dateStr, fp string
		if err := rows.Scan(&dateStr, &fp); err != nil {
			return nil, fmt.Errorf("scanning day fingerprint: %w", err)
		}
		d, err := domain.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("parsing day fingerprint date: %w", err)
		}
		fps[d] = fp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating day fingerprints: %w", err)
	}
	return fps, nil
}

func (r *SQLiteSyncStateRepo) ReplaceDayFingerprints(ctx context.Context, scope Scope, fps map[domain.Date]string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM day_fingerprints WHERE username = ? AND schedule_id = ?`,
		scope.Username, scope.ScheduleID); err != nil {
		return fmt.Errorf("clearing day fingerprints: %w", err)
	}
	for d, fp := range fps {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO day_fingerprints (username, schedule_id, entry_date, fingerprint) VALUES (?, ?, ?, ?)`,
			scope.Username, scope.ScheduleID, d.String(), fp); err != nil {
			return fmt.Errorf("inserting day fingerprint: %w", err)
		}
	}
	return nil
}
