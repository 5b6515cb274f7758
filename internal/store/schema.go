package store

import (
	"context"
	"database/sql"
)

// Migrate applies the schema. Statements are idempotent so repeated startups
// are safe. The unique index on (employee_id, work_date) is load-bearing:
// the clock-in path and the sweep both rely on it to keep a single primary
// attendance record per employee per day.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			device_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			token TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS employees (
			id UUID PRIMARY KEY,
			employee_id TEXT NOT NULL UNIQUE,
			name TEXT,
			department TEXT,
			position TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS schedule_assignments (
			id BIGSERIAL PRIMARY KEY,
			employee_id TEXT NOT NULL REFERENCES employees (employee_id),
			shift_name TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			weekdays JSONB,
			dates JSONB,
			legacy_day TEXT,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_records (
			id UUID PRIMARY KEY,
			employee_id TEXT NOT NULL REFERENCES employees (employee_id),
			work_date DATE NOT NULL,
			clock_in TIMESTAMPTZ,
			clock_out TIMESTAMPTZ,
			status TEXT NOT NULL,
			overtime_hours DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (employee_id, work_date)
		)`,
		`CREATE TABLE IF NOT EXISTS clock_events (
			id UUID PRIMARY KEY,
			employee_id TEXT NOT NULL,
			device_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			occurred_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attendance_work_date ON attendance_records (work_date)`,
		`CREATE INDEX IF NOT EXISTS idx_schedule_employee ON schedule_assignments (employee_id) WHERE active`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
