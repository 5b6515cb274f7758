package attendance

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"attendance/internal/roster"
)

// Sweep is the periodic batch pass that writes the two time-driven
// transitions: scheduled-but-never-clocked-in becomes absent, and an open
// clock-in past the grace window becomes missed clock-out. Each run only
// writes transitions the state machine permits, so overlapping or repeated
// runs converge on the same stored rows.
type Sweep struct {
	records   Store
	schedules ScheduleStore
	opts      Options
}

// NewSweep creates a sweep driver.
func NewSweep(records Store, schedules ScheduleStore, opts Options) *Sweep {
	return &Sweep{records: records, schedules: schedules, opts: opts.withDefaults()}
}

// Summary is the outcome of one sweep run. Errors carry per-employee
// failures; one employee's bad data never aborts the rest of the batch.
type Summary struct {
	TargetDate           string   `json:"target_date"`
	Scheduled            int      `json:"scheduled"`
	MarkedAbsent         int      `json:"marked_absent"`
	MarkedMissedClockOut int      `json:"marked_missed_clockout"`
	Unchanged            int      `json:"unchanged"`
	Errors               []string `json:"errors,omitempty"`
}

// Run evaluates every employee with an active assignment matching targetDate
// and applies due transitions as of now.
func (s *Sweep) Run(ctx context.Context, targetDate, now time.Time) (Summary, error) {
	started := time.Now()
	defer func() { metricSweepDuration.Observe(time.Since(started).Seconds()) }()

	sum := Summary{TargetDate: targetDate.Format(roster.DateLayout)}

	byEmployee, err := s.schedules.ActiveAssignmentsByEmployee(ctx)
	if err != nil {
		return sum, err
	}

	// Deterministic order makes runs comparable in logs.
	ids := make([]string, 0, len(byEmployee))
	for id := range byEmployee {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, employeeID := range ids {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		changed, err := s.sweepEmployee(ctx, employeeID, byEmployee[employeeID], targetDate, now, &sum)
		if err != nil {
			metricSweepErrors.Inc()
			log.Printf("sweep %s: employee %s: %v", sum.TargetDate, employeeID, err)
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", employeeID, err))
			continue
		}
		if !changed {
			sum.Unchanged++
		}
	}
	return sum, nil
}

func (s *Sweep) sweepEmployee(ctx context.Context, employeeID string, assignments []roster.ScheduleAssignment, targetDate, now time.Time, sum *Summary) (bool, error) {
	if roster.MatchSchedule(assignments, targetDate) == nil {
		return false, nil
	}
	sum.Scheduled++

	rec, err := s.records.Get(ctx, employeeID, targetDate)
	if err != nil {
		return false, err
	}

	decision := ResolveStatus(assignments, rec, targetDate, now, s.opts)
	switch decision.Patch {
	case PatchCreateAbsent:
		inserted, err := s.records.InsertAbsent(ctx, employeeID, targetDate)
		if err != nil {
			return false, err
		}
		if !inserted {
			// A clock-in won the race between our read and write. Leave it.
			return false, nil
		}
		metricSweepAbsent.Inc()
		sum.MarkedAbsent++
		return true, nil
	case PatchMarkMissedClockOut:
		ok, err := s.records.MarkMissedClockOut(ctx, employeeID, targetDate)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		metricSweepMissedClockOut.Inc()
		sum.MarkedMissedClockOut++
		return true, nil
	}
	return false, nil
}

// RunWindow sweeps targetDate and the preceding date. Overnight shifts keyed
// to yesterday only pass their grace window after midnight, so a sweep that
// looked at today alone would never close them.
func (s *Sweep) RunWindow(ctx context.Context, targetDate, now time.Time) (Summary, Summary, error) {
	yesterday, err := s.Run(ctx, targetDate.AddDate(0, 0, -1), now)
	if err != nil {
		return Summary{}, yesterday, err
	}
	today, err := s.Run(ctx, targetDate, now)
	return today, yesterday, err
}
