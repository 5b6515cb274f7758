package attendance

import (
	"time"

	"attendance/internal/roster"
)

// Options are the tunables for status derivation. Zero values fall back to
// the business defaults; Location defaults to UTC and should be set to the
// configured business timezone by the caller.
type Options struct {
	GracePeriod       time.Duration
	LatenessTolerance time.Duration
	Location          *time.Location
}

func (o Options) withDefaults() Options {
	if o.GracePeriod <= 0 {
		o.GracePeriod = 30 * time.Minute
	}
	if o.LatenessTolerance < 0 {
		o.LatenessTolerance = 0
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// State is the derived per-day position of an employee, including the
// transient positions that never get stored.
type State string

const (
	StateUnscheduled       State = "unscheduled"
	StateScheduledNoRecord State = "scheduled_no_record"
	StateClockedInOpen     State = "clocked_in_open"
	StatePresent           State = "present"
	StateLate              State = "late"
	StateAbsent            State = "absent"
	StateMissedClockOut    State = "missed_clockout"
	StateOvertime          State = "overtime"
)

// PatchKind names the write a decision calls for.
type PatchKind int

const (
	PatchNone PatchKind = iota
	// PatchCreateAbsent creates a record with null clocks and status absent.
	PatchCreateAbsent
	// PatchMarkMissedClockOut closes an open clock-in as missed.
	PatchMarkMissedClockOut
)

// Decision is the outcome of one resolver evaluation. Patch is PatchNone for
// read-only outcomes; WorkedHours is display-only.
type Decision struct {
	State       State
	Patch       PatchKind
	Assignment  *roster.ScheduleAssignment
	WorkedHours float64
}

// ShiftWindow anchors a shift's wall-clock times onto targetDate in the
// given location. Overnight shifts roll the end into the following calendar
// day; the scheduled date stays the start date.
func ShiftWindow(shift roster.Shift, targetDate time.Time, loc *time.Location) (start, end time.Time, err error) {
	startMin, err := roster.ParseClock(shift.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endMin, err := roster.ParseClock(shift.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	y, m, d := targetDate.Date()
	start = time.Date(y, m, d, startMin/60, startMin%60, 0, 0, loc)
	end = time.Date(y, m, d, endMin/60, endMin%60, 0, 0, loc)
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// ResolveStatus derives the attendance state for one employee on one date.
// Pure: it never touches storage. The returned Patch tells the sweep which
// transition (if any) is due at `now`; callers that only display states
// ignore it.
//
// An unscheduled employee with no record stays invisible: the sweep never
// writes phantom absences. Malformed shift times degrade the assignment to
// "not scheduled" so one bad row cannot abort a batch.
func ResolveStatus(assignments []roster.ScheduleAssignment, rec *Record, targetDate, now time.Time, opts Options) Decision {
	opts = opts.withDefaults()

	match := roster.MatchSchedule(assignments, targetDate)
	var absentCutoff, missedCutoff, shiftStart time.Time
	if match != nil {
		start, end, err := ShiftWindow(match.Shift, targetDate, opts.Location)
		if err != nil {
			match = nil
		} else {
			shiftStart = start
			// No clock-in within the grace window after shift start means
			// absent; an open clock-in past shift end plus grace means the
			// clock-out was missed.
			absentCutoff = start.Add(opts.GracePeriod)
			missedCutoff = end.Add(opts.GracePeriod)
		}
	}

	if match == nil {
		if rec == nil {
			return Decision{State: StateUnscheduled}
		}
		return Decision{State: stateFromRecord(rec, shiftStart, opts), WorkedHours: rec.WorkedHours(now)}
	}

	if rec == nil {
		if !now.Before(absentCutoff) {
			return Decision{State: StateAbsent, Patch: PatchCreateAbsent, Assignment: match}
		}
		return Decision{State: StateScheduledNoRecord, Assignment: match}
	}

	if rec.Open() && !NormalizeStatus(string(rec.Status)).Terminal() {
		if !now.Before(missedCutoff) {
			return Decision{
				State:       StateMissedClockOut,
				Patch:       PatchMarkMissedClockOut,
				Assignment:  match,
				WorkedHours: rec.WorkedHours(now),
			}
		}
		return Decision{State: StateClockedInOpen, Assignment: match, WorkedHours: rec.WorkedHours(now)}
	}

	return Decision{
		State:       stateFromRecord(rec, shiftStart, opts),
		Assignment:  match,
		WorkedHours: rec.WorkedHours(now),
	}
}

// Punctuality classifies a completed clock-in against the shift start. Used
// both at clock-out time and when re-deriving legacy rows whose stored
// status predates the tolerance setting.
func Punctuality(clockIn, shiftStart time.Time, tolerance time.Duration) Status {
	if clockIn.After(shiftStart.Add(tolerance)) {
		return StatusLate
	}
	return StatusPresent
}

func stateFromRecord(rec *Record, shiftStart time.Time, opts Options) State {
	switch NormalizeStatus(string(rec.Status)) {
	case StatusOvertime:
		return StateOvertime
	case StatusAbsent:
		return StateAbsent
	case StatusMissedClockOut:
		return StateMissedClockOut
	case StatusLate:
		return StateLate
	case StatusPresent:
		return StatePresent
	case StatusClockedIn:
		if rec.ClockIn != nil && rec.ClockOut != nil {
			// Closed pair whose status was never finalized (legacy rows).
			if !shiftStart.IsZero() {
				if Punctuality(*rec.ClockIn, shiftStart, opts.LatenessTolerance) == StatusLate {
					return StateLate
				}
			}
			return StatePresent
		}
		return StateClockedInOpen
	}
	return StateClockedInOpen
}
