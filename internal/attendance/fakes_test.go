package attendance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"attendance/internal/roster"
)

// fakeStore is an in-memory Store honoring the same conditional-write
// semantics as the Postgres repository.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*Record // keyed employee|date
	events  []ClockEvent
	failFor map[string]error // employee ids whose reads fail
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]*Record),
		failFor: make(map[string]error),
	}
}

func recKey(employeeID string, date time.Time) string {
	return employeeID + "|" + date.Format(roster.DateLayout)
}

func (f *fakeStore) Get(_ context.Context, employeeID string, date time.Time) (*Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[employeeID]; err != nil {
		return nil, err
	}
	rec, ok := f.records[recKey(employeeID, date)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) InsertAbsent(_ context.Context, employeeID string, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := recKey(employeeID, date)
	if _, exists := f.records[key]; exists {
		return false, nil
	}
	f.records[key] = &Record{
		ID: uuid.NewString(), EmployeeID: employeeID, WorkDate: date, Status: StatusAbsent,
	}
	return true, nil
}

func (f *fakeStore) MarkMissedClockOut(_ context.Context, employeeID string, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[recKey(employeeID, date)]
	if !ok || rec.ClockIn == nil || rec.ClockOut != nil || rec.Status != StatusClockedIn {
		return false, nil
	}
	rec.Status = StatusMissedClockOut
	return true, nil
}

func (f *fakeStore) InsertClockIn(_ context.Context, employeeID string, date, punchAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := recKey(employeeID, date)
	if _, exists := f.records[key]; exists {
		return false, nil
	}
	in := punchAt
	f.records[key] = &Record{
		ID: uuid.NewString(), EmployeeID: employeeID, WorkDate: date,
		ClockIn: &in, Status: StatusClockedIn,
	}
	return true, nil
}

func (f *fakeStore) CloseClockOut(_ context.Context, employeeID string, date, punchAt time.Time, status Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[recKey(employeeID, date)]
	if !ok || rec.ClockIn == nil || rec.ClockOut != nil || rec.Status != StatusClockedIn {
		return false, nil
	}
	out := punchAt
	rec.ClockOut = &out
	rec.Status = status
	return true, nil
}

func (f *fakeStore) SetOvertime(_ context.Context, employeeID string, date time.Time, hours float64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[recKey(employeeID, date)]
	if !ok || rec.ClockIn == nil || (rec.Status != StatusPresent && rec.Status != StatusLate) {
		return false, nil
	}
	rec.Status = StatusOvertime
	rec.OvertimeHours = &hours
	return true, nil
}

func (f *fakeStore) RecordClockEvent(_ context.Context, ev ClockEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) RecentClockEvent(_ context.Context, employeeID, kind string, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range f.events {
		if ev.EmployeeID == employeeID && ev.Kind == kind && time.Since(ev.At) <= window {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) snapshot() map[string]Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]Record, len(f.records))
	for k, v := range f.records {
		out[k] = *v
	}
	return out
}

// fakeSchedules is an in-memory ScheduleStore.
type fakeSchedules struct {
	byEmployee map[string][]roster.ScheduleAssignment
}

func newFakeSchedules() *fakeSchedules {
	return &fakeSchedules{byEmployee: make(map[string][]roster.ScheduleAssignment)}
}

func (f *fakeSchedules) add(a roster.ScheduleAssignment) {
	f.byEmployee[a.EmployeeID] = append(f.byEmployee[a.EmployeeID], a)
}

func (f *fakeSchedules) ActiveSchedulesForEmployee(_ context.Context, employeeID string) ([]roster.ScheduleAssignment, error) {
	return f.byEmployee[employeeID], nil
}

func (f *fakeSchedules) ActiveAssignmentsByEmployee(_ context.Context) (map[string][]roster.ScheduleAssignment, error) {
	return f.byEmployee, nil
}

var _ Store = (*fakeStore)(nil)
var _ ScheduleStore = (*fakeSchedules)(nil)

func assignmentFor(employeeID string, id int64, start, end string, weekdays ...time.Weekday) roster.ScheduleAssignment {
	a := weekdayShift(id, start, end, weekdays...)
	a.EmployeeID = employeeID
	return a
}

func fmtKey(employeeID string, date time.Time) string {
	return fmt.Sprintf("%s|%s", employeeID, date.Format(roster.DateLayout))
}
