package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// ALTER TABLE statements are re-run on every open.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	if err := migrateBackfillDraftSeq(db); err != nil {
		return fmt.Errorf("backfilling draft seq values: %w", err)
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS entry_drafts (
		local_id    TEXT PRIMARY KEY,
		username    TEXT NOT NULL,
		schedule_id INTEGER NOT NULL,
		server_id   INTEGER,
		entry_date  TEXT NOT NULL,
		stage       TEXT NOT NULL CHECK(stage IN ('D1','D2','D3')),
		content     TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'PENDING'
		            CHECK(status IN ('PENDING','IN_PROGRESS','COMPLETED')),
		updated_at  TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_entry_drafts_scope ON entry_drafts(username, schedule_id)`,

	`CREATE TABLE IF NOT EXISTS sync_state (
		username           TEXT NOT NULL,
		schedule_id        INTEGER NOT NULL,
		dirty              INTEGER NOT NULL DEFAULT 0,
		global_fingerprint TEXT NOT NULL DEFAULT '',
		last_synced_at     TEXT,
		updated_at         TEXT NOT NULL,
		PRIMARY KEY (username, schedule_id)
	)`,

	`CREATE TABLE IF NOT EXISTS day_fingerprints (
		username    TEXT NOT NULL,
		schedule_id INTEGER NOT NULL,
		entry_date  TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		PRIMARY KEY (username, schedule_id, entry_date)
	)`,

	`CREATE TABLE IF NOT EXISTS period_selections (
		username    TEXT PRIMARY KEY,
		department  TEXT NOT NULL DEFAULT '',
		quarter     INTEGER NOT NULL CHECK(quarter BETWEEN 1 AND 4),
		month       INTEGER NOT NULL CHECK(month BETWEEN 1 AND 12),
		schedule_id INTEGER,
		updated_at  TEXT NOT NULL
	)`,

	// Insertion order within a (date, stage) bucket.
	`ALTER TABLE entry_drafts ADD COLUMN seq INTEGER NOT NULL DEFAULT 0`,

	// Last failed save, shown by the CLI until the next successful one.
	`ALTER TABLE sync_state ADD COLUMN last_error TEXT NOT NULL DEFAULT ''`,
}

// migrateBackfillDraftSeq numbers drafts that predate the seq column, per
// (username, schedule_id) scope, in rowid order. Idempotent: only rows with
// seq = 0 are touched.
func migrateBackfillDraftSeq(db *sql.DB) error {
	ctx := context.Background()

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entry_drafts WHERE seq = 0`).Scan(&count); err != nil {
		return fmt.Errorf("checking entry_drafts seq: %w", err)
	}
	if count == 0 {
		return nil
	}

	type scope struct {
		username   string
		scheduleID int64
	}
	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT username, schedule_id FROM entry_drafts WHERE seq = 0 ORDER BY username, schedule_id`)
	if err != nil {
		return fmt.Errorf("listing draft scopes: %w", err)
	}
	var scopes []scope
	for rows.Next() {
		var s scope
		if err := rows.Scan(&s.username, &s.scheduleID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning draft scope: %w", err)
		}
		scopes = append(scopes, s)
	}
	rows.Close()

	for _, s := range scopes {
		if err := backfillScopeSeq(ctx, db, s.username, s.scheduleID); err != nil {
			return fmt.Errorf("backfilling seq for %s/%d: %w", s.username, s.scheduleID, err)
		}
	}
	return nil
}

func backfillScopeSeq(ctx context.Context, db *sql.DB, username string, scheduleID int64) error {
	var next int64
	if err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM entry_drafts WHERE username = ? AND schedule_id = ?`,
		username, scheduleID).Scan(&next); err != nil {
		return fmt.Errorf("reading max seq: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT local_id FROM entry_drafts WHERE username = ? AND schedule_id = ? AND seq = 0 ORDER BY rowid`,
		username, scheduleID)
	if err != nil {
		return fmt.Errorf("listing drafts: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()

	for _, id := range ids {
		next++
		if _, err := db.ExecContext(ctx,
			`UPDATE entry_drafts SET seq = ? WHERE local_id = ? AND seq = 0`, next, id); err != nil {
			return fmt.Errorf("updating draft seq: %w", err)
		}
	}
	return nil
}
