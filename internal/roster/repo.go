package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// Repository persists roster data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// UpsertEmployee creates or updates an employee keyed by the business id.
func (r *Repository) UpsertEmployee(ctx context.Context, e Employee) (Employee, error) {
	if e.EmployeeID == "" {
		return Employee{}, errors.New("employee id required")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO employees (id, employee_id, name, department, position, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (employee_id) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, employees.name),
			department = COALESCE(EXCLUDED.department, employees.department),
			position = COALESCE(EXCLUDED.position, employees.position),
			updated_at = NOW()
		RETURNING id, active, created_at
	`, e.ID, e.EmployeeID, e.Name, e.Department, e.Position)
	if err := row.Scan(&e.ID, &e.Active, &e.CreatedAt); err != nil {
		return Employee{}, err
	}
	return e, nil
}

// GetEmployee returns a single employee by business id, nil when absent.
func (r *Repository) GetEmployee(ctx context.Context, employeeID string) (*Employee, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, employee_id, name, department, position, active, created_at
		FROM employees WHERE employee_id = $1
	`, employeeID)
	var e Employee
	if err := row.Scan(&e.ID, &e.EmployeeID, &e.Name, &e.Department, &e.Position, &e.Active, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// ListEmployees returns employees, optionally restricted to active ones.
func (r *Repository) ListEmployees(ctx context.Context, activeOnly bool) ([]Employee, error) {
	query := `
		SELECT id, employee_id, name, department, position, active, created_at
		FROM employees`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY employee_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.EmployeeID, &e.Name, &e.Department, &e.Position, &e.Active, &e.CreatedAt); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// DeactivateEmployee soft-excludes an employee from scheduling and sweeps.
func (r *Repository) DeactivateEmployee(ctx context.Context, employeeID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE employees SET active = FALSE, updated_at = NOW() WHERE employee_id = $1
	`, employeeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateAssignment stores a schedule assignment. Recurrence fields are kept
// as JSON so rows written by the legacy system remain readable.
func (r *Repository) CreateAssignment(ctx context.Context, employeeID string, shift Shift, weekdays, dates []string) (ScheduleAssignment, error) {
	if _, err := ParseClock(shift.Start); err != nil {
		return ScheduleAssignment{}, err
	}
	if _, err := ParseClock(shift.End); err != nil {
		return ScheduleAssignment{}, err
	}
	weekdaysJSON, _ := json.Marshal(weekdays)
	datesJSON, _ := json.Marshal(dates)
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO schedule_assignments (employee_id, shift_name, start_time, end_time, weekdays, dates, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING id, created_at
	`, employeeID, shift.Name, shift.Start, shift.End, weekdaysJSON, datesJSON)
	a := ScheduleAssignment{EmployeeID: employeeID, Shift: shift, Active: true}
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		return ScheduleAssignment{}, err
	}
	a.Recurrence, _ = ParseRecurrence(weekdaysJSON, datesJSON, "")
	return a, nil
}

// DeactivateAssignment retires an assignment without deleting history.
func (r *Repository) DeactivateAssignment(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedule_assignments SET active = FALSE WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const assignmentColumns = `id, employee_id, shift_name, start_time, end_time, weekdays, dates, legacy_day, active, created_at`

// ActiveSchedulesForEmployee returns the active assignments for one employee.
func (r *Repository) ActiveSchedulesForEmployee(ctx context.Context, employeeID string) ([]ScheduleAssignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM schedule_assignments
		WHERE employee_id = $1 AND active
		ORDER BY id
	`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAssignments(rows)
}

// ActiveAssignmentsByEmployee returns all active assignments for active
// employees, grouped by business id. This is the sweep's working set.
func (r *Repository) ActiveAssignmentsByEmployee(ctx context.Context) (map[string][]ScheduleAssignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM schedule_assignments s
		WHERE s.active AND EXISTS (
			SELECT 1 FROM employees e WHERE e.employee_id = s.employee_id AND e.active
		)
		ORDER BY s.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	assignments, err := scanAssignments(rows)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]ScheduleAssignment)
	for _, a := range assignments {
		grouped[a.EmployeeID] = append(grouped[a.EmployeeID], a)
	}
	return grouped, nil
}

func scanAssignments(rows *sql.Rows) ([]ScheduleAssignment, error) {
	var res []ScheduleAssignment
	for rows.Next() {
		var (
			a            ScheduleAssignment
			weekdaysJSON []byte
			datesJSON    []byte
			legacyDay    sql.NullString
			createdAt    time.Time
		)
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.Shift.Name, &a.Shift.Start, &a.Shift.End,
			&weekdaysJSON, &datesJSON, &legacyDay, &a.Active, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = createdAt
		rec, err := ParseRecurrence(weekdaysJSON, datesJSON, legacyDay.String)
		if err != nil {
			// Malformed recurrence data must not block the batch; the
			// assignment simply never matches.
			log.Printf("assignment %d: malformed recurrence, treating as never scheduled: %v", a.ID, err)
			rec = Recurrence{}
		}
		a.Recurrence = rec
		res = append(res, a)
	}
	return res, rows.Err()
}
