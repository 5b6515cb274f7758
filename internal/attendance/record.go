package attendance

import (
	"errors"
	"fmt"
	"time"
)

// Status is the per-day attendance outcome for one employee.
type Status string

const (
	StatusClockedIn      Status = "clocked_in"
	StatusPresent        Status = "present"
	StatusLate           Status = "late"
	StatusAbsent         Status = "absent"
	StatusMissedClockOut Status = "missed_clockout"
	StatusOvertime       Status = "overtime"
)

// NormalizeStatus maps legacy status spellings written by the previous
// system ("IN", "COMPLETED", title-cased names) onto the canonical set.
// Unknown values pass through unchanged so they stay visible in queries.
func NormalizeStatus(raw string) Status {
	switch raw {
	case "IN", "in", "Clocked In":
		return StatusClockedIn
	case "COMPLETED", "Present":
		return StatusPresent
	case "Late":
		return StatusLate
	case "Absent":
		return StatusAbsent
	case "Missed Clock-out", "Missed Clockout":
		return StatusMissedClockOut
	case "Overtime":
		return StatusOvertime
	}
	return Status(raw)
}

// Terminal reports whether the status closes the day. Terminal statuses are
// never demoted automatically; corrections are a manual operation.
func (s Status) Terminal() bool {
	switch s {
	case StatusPresent, StatusLate, StatusAbsent, StatusMissedClockOut, StatusOvertime:
		return true
	}
	return false
}

// Record is the single primary attendance row for one employee on one
// calendar date. WorkDate carries only its year/month/day.
type Record struct {
	ID            string     `json:"id"`
	EmployeeID    string     `json:"employee_id"`
	WorkDate      time.Time  `json:"work_date"`
	ClockIn       *time.Time `json:"clock_in,omitempty"`
	ClockOut      *time.Time `json:"clock_out,omitempty"`
	Status        Status     `json:"status"`
	OvertimeHours *float64   `json:"overtime_hours,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Open reports whether the record has a clock-in awaiting a clock-out.
func (r *Record) Open() bool {
	return r != nil && r.ClockIn != nil && r.ClockOut == nil
}

// WorkedHours returns elapsed hours from clock-in, using clock-out when set
// and now otherwise. Display-only; nothing is finalized from it.
func (r *Record) WorkedHours(now time.Time) float64 {
	if r == nil || r.ClockIn == nil {
		return 0
	}
	end := now
	if r.ClockOut != nil {
		end = *r.ClockOut
	}
	return end.Sub(*r.ClockIn).Hours()
}

// Sentinel errors for the taxonomy callers branch on. Wrapped variants carry
// per-case detail; use errors.Is against these.
var (
	// ErrData marks malformed schedule or event payloads. Recovered locally
	// (the offending assignment stops matching); never aborts a batch.
	ErrData = errors.New("malformed attendance data")
	// ErrNotFound marks an update aimed at an employee or record that does
	// not exist.
	ErrNotFound = errors.New("attendance record not found")
	// ErrConflict marks a write that would violate the one-record-per-day
	// invariant or repeat a terminal transition.
	ErrConflict = errors.New("attendance state conflict")
)

func conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

func notFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}
