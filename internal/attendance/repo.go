package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"attendance/internal/roster"
)

// Store is what the resolver's write paths need from persistence. Kept as an
// interface so the sweep and service are testable against in-memory fakes.
type Store interface {
	Get(ctx context.Context, employeeID string, date time.Time) (*Record, error)
	// InsertAbsent creates an absent record with null clocks. Returns false
	// without error when a record already exists for the day.
	InsertAbsent(ctx context.Context, employeeID string, date time.Time) (bool, error)
	// MarkMissedClockOut closes an open clock-in as missed. Returns false
	// when the record is no longer in an open, non-terminal state.
	MarkMissedClockOut(ctx context.Context, employeeID string, date time.Time) (bool, error)
	// InsertClockIn creates an open record. Returns false when a record
	// already exists for the day.
	InsertClockIn(ctx context.Context, employeeID string, date, at time.Time) (bool, error)
	// CloseClockOut finalizes an open record with the given status. Returns
	// false when no open record was there to close.
	CloseClockOut(ctx context.Context, employeeID string, date, at time.Time, status Status) (bool, error)
	// SetOvertime promotes a present/late record to overtime. Returns false
	// when the record's current status forbids the transition.
	SetOvertime(ctx context.Context, employeeID string, date time.Time, hours float64) (bool, error)
	RecordClockEvent(ctx context.Context, ev ClockEvent) error
	// RecentClockEvent reports whether the same kind of punch for the
	// employee already arrived inside the window.
	RecentClockEvent(ctx context.Context, employeeID, kind string, window time.Duration) (bool, error)
}

// ScheduleStore is the read-only schedule collaborator.
type ScheduleStore interface {
	ActiveSchedulesForEmployee(ctx context.Context, employeeID string) ([]roster.ScheduleAssignment, error)
	ActiveAssignmentsByEmployee(ctx context.Context) (map[string][]roster.ScheduleAssignment, error)
}

// ClockEvent is one biometric device punch, kept for audit.
type ClockEvent struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	DeviceID   string    `json:"device_id"`
	Kind       string    `json:"kind"` // "in" or "out"
	At         time.Time `json:"at"`
}

// Repository persists attendance records in Postgres. All mutating queries
// are conditional on the current row state so overlapping sweeps and device
// events cannot race each other into duplicate or demoted rows.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

const recordColumns = `id, employee_id, work_date, clock_in, clock_out, status, overtime_hours, created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var (
		rec    Record
		status string
	)
	if err := row.Scan(&rec.ID, &rec.EmployeeID, &rec.WorkDate, &rec.ClockIn, &rec.ClockOut,
		&status, &rec.OvertimeHours, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Status = NormalizeStatus(status)
	return &rec, nil
}

// Get returns the primary record for (employee, date), nil when absent.
func (r *Repository) Get(ctx context.Context, employeeID string, date time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE employee_id = $1 AND work_date = $2
	`, employeeID, date.Format(roster.DateLayout))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// InsertAbsent writes the sweep's absent marking. ON CONFLICT DO NOTHING
// makes it lose gracefully to a concurrent clock-in.
func (r *Repository) InsertAbsent(ctx context.Context, employeeID string, date time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, employee_id, work_date, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (employee_id, work_date) DO NOTHING
	`, uuid.NewString(), employeeID, date.Format(roster.DateLayout), StatusAbsent)
	if err != nil {
		return false, mapPgError(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// MarkMissedClockOut transitions an open clock-in to missed. Conditional on
// the row still being open so repeated sweeps are no-ops.
func (r *Repository) MarkMissedClockOut(ctx context.Context, employeeID string, date time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET status = $3, updated_at = NOW()
		WHERE employee_id = $1 AND work_date = $2
		  AND clock_in IS NOT NULL AND clock_out IS NULL
		  AND status IN ($4, 'IN', 'Clocked In')
	`, employeeID, date.Format(roster.DateLayout), StatusMissedClockOut, StatusClockedIn)
	if err != nil {
		return false, mapPgError(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertClockIn opens the day's record from a device event.
func (r *Repository) InsertClockIn(ctx context.Context, employeeID string, date, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, employee_id, work_date, clock_in, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (employee_id, work_date) DO NOTHING
	`, uuid.NewString(), employeeID, date.Format(roster.DateLayout), at, StatusClockedIn)
	if err != nil {
		return false, mapPgError(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CloseClockOut finalizes an open record as present or late.
func (r *Repository) CloseClockOut(ctx context.Context, employeeID string, date, at time.Time, status Status) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET clock_out = $3, status = $4, updated_at = NOW()
		WHERE employee_id = $1 AND work_date = $2
		  AND clock_in IS NOT NULL AND clock_out IS NULL
		  AND status IN ($5, 'IN', 'Clocked In')
	`, employeeID, date.Format(roster.DateLayout), at, status, StatusClockedIn)
	if err != nil {
		return false, mapPgError(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SetOvertime promotes a finished day to overtime, once.
func (r *Repository) SetOvertime(ctx context.Context, employeeID string, date time.Time, hours float64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET status = $3, overtime_hours = $4, updated_at = NOW()
		WHERE employee_id = $1 AND work_date = $2
		  AND clock_in IS NOT NULL
		  AND status IN ($5, $6, 'Present', 'Late', 'COMPLETED')
	`, employeeID, date.Format(roster.DateLayout), StatusOvertime, hours, StatusPresent, StatusLate)
	if err != nil {
		return false, mapPgError(err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RecordClockEvent appends to the device punch audit trail.
func (r *Repository) RecordClockEvent(ctx context.Context, ev ClockEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clock_events (id, employee_id, device_id, kind, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.EmployeeID, ev.DeviceID, ev.Kind, ev.At)
	return err
}

// ListForDate returns every record for one work date, for day views.
func (r *Repository) ListForDate(ctx context.Context, date time.Time) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE work_date = $1
		ORDER BY employee_id
	`, date.Format(roster.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// ListRange returns records in [from, to] inclusive, for reports.
func (r *Repository) ListRange(ctx context.Context, from, to time.Time) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE work_date BETWEEN $1 AND $2
		ORDER BY employee_id, work_date
	`, from.Format(roster.DateLayout), to.Format(roster.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *rec)
	}
	return res, rows.Err()
}

// RecentClockEvent reports whether the device already delivered the same
// kind of punch for the employee within the window. Duplicate punches from
// jittery devices must not reopen or reclose a day.
func (r *Repository) RecentClockEvent(ctx context.Context, employeeID, kind string, window time.Duration) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM clock_events
			WHERE employee_id = $1 AND kind = $2
			  AND occurred_at >= NOW() - ($3 * interval '1 second')
		)
	`, employeeID, kind, window.Seconds())
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// mapPgError folds the unique-violation SQLSTATE into ErrConflict so callers
// see the taxonomy, not driver internals.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return conflictf("duplicate primary record (%s)", pgErr.ConstraintName)
	}
	return err
}
