package roster

import (
	"fmt"
	"time"
)

// Employee is a member of the roster. EmployeeID is the business-facing
// identifier punched into the biometric device (e.g. "TSI00123"); ID is the
// storage key. Employees are deactivated, never hard-deleted.
type Employee struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employee_id"`
	Name       *string   `json:"name,omitempty"`
	Department *string   `json:"department,omitempty"`
	Position   *string   `json:"position,omitempty"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Shift is a named working window. Times are wall-clock "HH:MM" strings in
// the business timezone. A shift is overnight when its end is numerically at
// or before its start (22:00-06:00 spans midnight into the next day).
type Shift struct {
	Name  string `json:"name"`
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// Overnight reports whether the shift crosses midnight.
func (s Shift) Overnight() bool {
	start, err1 := ParseClock(s.Start)
	end, err2 := ParseClock(s.End)
	if err1 != nil || err2 != nil {
		return false
	}
	return end <= start
}

// ParseClock converts an "HH:MM" wall-clock string to minutes past midnight.
func ParseClock(s string) (int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("bad clock value %q: %w", s, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return hh*60 + mm, nil
}

// ScheduleAssignment links an employee to a shift with a recurrence. The
// assignment ID is a monotonically increasing storage key; it doubles as the
// deterministic tie-break when several assignments match the same date.
type ScheduleAssignment struct {
	ID         int64      `json:"id"`
	EmployeeID string     `json:"employee_id"`
	Shift      Shift      `json:"shift"`
	Recurrence Recurrence `json:"recurrence"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
}
