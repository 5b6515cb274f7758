package attendance

import (
	"context"
	"fmt"
	"time"

	"attendance/internal/roster"
)

// Service coordinates clock-event application and overtime assignment on top
// of the record store. It is the only writer besides the sweep; both go
// through the store's conditional operations, so their interleavings cannot
// produce a second primary record for a day.
type Service struct {
	records     Store
	schedules   ScheduleStore
	opts        Options
	dedupWindow time.Duration

	// Now is swappable in tests.
	Now func() time.Time
}

// NewService creates a service.
func NewService(records Store, schedules ScheduleStore, opts Options, dedupWindow time.Duration) *Service {
	if dedupWindow <= 0 {
		dedupWindow = 2 * time.Minute
	}
	return &Service{
		records:     records,
		schedules:   schedules,
		opts:        opts.withDefaults(),
		dedupWindow: dedupWindow,
		Now:         time.Now,
	}
}

// Options exposes the resolver settings the service was built with.
func (s *Service) Options() Options { return s.opts }

// workDate truncates a punch instant to its business-timezone calendar day.
func (s *Service) workDate(at time.Time) time.Time {
	local := at.In(s.opts.Location)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.opts.Location)
}

// ApplyClockEvent folds one device punch into the day's record. Duplicate
// punches inside the dedup window are dropped. A clock-out with no open
// record on its own date falls back to the previous date, which is how
// overnight shifts close after midnight.
func (s *Service) ApplyClockEvent(ctx context.Context, ev ClockEvent) (*Record, error) {
	if ev.EmployeeID == "" {
		return nil, fmt.Errorf("employee id required: %w", ErrData)
	}
	if ev.Kind != "in" && ev.Kind != "out" {
		return nil, fmt.Errorf("unknown clock event kind %q: %w", ev.Kind, ErrData)
	}
	if ev.At.IsZero() {
		ev.At = s.Now()
	}

	dup, err := s.records.RecentClockEvent(ctx, ev.EmployeeID, ev.Kind, s.dedupWindow)
	if err != nil {
		return nil, err
	}
	if dup {
		metricDuplicatePunches.Inc()
		return s.records.Get(ctx, ev.EmployeeID, s.workDate(ev.At))
	}

	var rec *Record
	switch ev.Kind {
	case "in":
		rec, err = s.applyClockIn(ctx, ev)
	case "out":
		rec, err = s.applyClockOut(ctx, ev)
	}
	if err != nil {
		return nil, err
	}
	if aerr := s.records.RecordClockEvent(ctx, ev); aerr != nil {
		return rec, aerr
	}
	metricClockEvents.WithLabelValues(ev.Kind).Inc()
	return rec, nil
}

func (s *Service) applyClockIn(ctx context.Context, ev ClockEvent) (*Record, error) {
	date := s.workDate(ev.At)
	inserted, err := s.records.InsertClockIn(ctx, ev.EmployeeID, date, ev.At)
	if err != nil {
		return nil, err
	}
	if inserted {
		return s.records.Get(ctx, ev.EmployeeID, date)
	}

	existing, err := s.records.Get(ctx, ev.EmployeeID, date)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, conflictf("clock-in for %s on %s lost insert race and record vanished",
			ev.EmployeeID, date.Format(roster.DateLayout))
	}
	if existing.ClockIn != nil {
		// Same-day repeat punch beyond the dedup window; keep the first.
		return existing, nil
	}
	// The day is already closed without a clock-in, i.e. the sweep marked it
	// absent first. Terminal statuses are never demoted automatically, so
	// this surfaces for manual correction.
	return nil, conflictf("clock-in for %s on %s arrived after the day was marked %s",
		ev.EmployeeID, date.Format(roster.DateLayout), existing.Status)
}

func (s *Service) applyClockOut(ctx context.Context, ev ClockEvent) (*Record, error) {
	date := s.workDate(ev.At)
	rec, err := s.records.Get(ctx, ev.EmployeeID, date)
	if err != nil {
		return nil, err
	}
	if !rec.Open() {
		// Overnight shifts clock out on the calendar day after their
		// scheduled date; the open record lives on the previous day.
		prev := date.AddDate(0, 0, -1)
		prevRec, err := s.records.Get(ctx, ev.EmployeeID, prev)
		if err != nil {
			return nil, err
		}
		if !prevRec.Open() {
			if rec != nil && rec.ClockOut != nil {
				return rec, nil // repeat clock-out, keep the first
			}
			return nil, notFoundf("no open clock-in for %s around %s",
				ev.EmployeeID, date.Format(roster.DateLayout))
		}
		rec, date = prevRec, prev
	}

	status, err := s.punctualityFor(ctx, ev.EmployeeID, date, *rec.ClockIn)
	if err != nil {
		return nil, err
	}
	ok, err := s.records.CloseClockOut(ctx, ev.EmployeeID, date, ev.At, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conflictf("record for %s on %s was closed concurrently",
			ev.EmployeeID, date.Format(roster.DateLayout))
	}
	return s.records.Get(ctx, ev.EmployeeID, date)
}

// punctualityFor classifies the clock-in against the governing shift's start.
// With no matching schedule the day counts as present; there is no shift
// start to be late against.
func (s *Service) punctualityFor(ctx context.Context, employeeID string, date time.Time, clockIn time.Time) (Status, error) {
	assignments, err := s.schedules.ActiveSchedulesForEmployee(ctx, employeeID)
	if err != nil {
		return "", err
	}
	match := roster.MatchSchedule(assignments, date)
	if match == nil {
		return StatusPresent, nil
	}
	start, _, err := ShiftWindow(match.Shift, date, s.opts.Location)
	if err != nil {
		return StatusPresent, nil
	}
	return Punctuality(clockIn, start, s.opts.LatenessTolerance), nil
}

// AssignOvertime is the explicit admin action promoting a finished day to
// overtime. Eligibility: scheduled that day, clocked in, status present or
// late, and not already overtime. A repeat request is a conflict, not a
// silent success.
func (s *Service) AssignOvertime(ctx context.Context, employeeID string, date time.Time, hours float64) (*Record, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("overtime hours must be positive: %w", ErrData)
	}
	rec, err := s.records.Get(ctx, employeeID, date)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFoundf("no attendance record for %s on %s", employeeID, date.Format(roster.DateLayout))
	}
	switch rec.Status {
	case StatusOvertime:
		return nil, conflictf("%s already has overtime on %s", employeeID, date.Format(roster.DateLayout))
	case StatusPresent, StatusLate:
	default:
		return nil, conflictf("status %s is not overtime-eligible", rec.Status)
	}
	if rec.ClockIn == nil {
		return nil, conflictf("no clock-in on %s", date.Format(roster.DateLayout))
	}

	assignments, err := s.schedules.ActiveSchedulesForEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if roster.MatchSchedule(assignments, date) == nil {
		return nil, conflictf("%s was not scheduled on %s", employeeID, date.Format(roster.DateLayout))
	}

	ok, err := s.records.SetOvertime(ctx, employeeID, date, hours)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conflictf("record for %s on %s changed concurrently", employeeID, date.Format(roster.DateLayout))
	}
	metricOvertimeAssigned.Inc()
	return s.records.Get(ctx, employeeID, date)
}

// ResolveDay evaluates one employee's state for a date without writing.
func (s *Service) ResolveDay(ctx context.Context, employeeID string, date time.Time) (Decision, *Record, error) {
	assignments, err := s.schedules.ActiveSchedulesForEmployee(ctx, employeeID)
	if err != nil {
		return Decision{}, nil, err
	}
	rec, err := s.records.Get(ctx, employeeID, date)
	if err != nil {
		return Decision{}, nil, err
	}
	return ResolveStatus(assignments, rec, date, s.Now(), s.opts), rec, nil
}
