package repository

import (
	"database/sql"
	"time"
)

// parseNullableTime parses a sql.NullString into a *time.Time using the given layout.
// Returns nil if the value is NULL, empty, or fails to parse.
func parseNullableTime(s sql.NullString, layout string) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(layout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullableInt64ToValue converts a *int64 to a value suitable for SQLite storage.
// Returns nil (SQL NULL) if the pointer is nil.
func nullableInt64ToValue(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64ToPtr(v sql.NullInt64) *int64 {
	if !v.Valid || v.Int64 <= 0 {
		return nil
	}
	id := v.Int64
	return &id
}

func intToBool(i int) bool {
	return i != 0
}

// nowUTC returns the current UTC time formatted as RFC3339.
func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}
