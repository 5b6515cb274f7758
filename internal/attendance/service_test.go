package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(store *fakeStore, schedules *fakeSchedules) *Service {
	return NewService(store, schedules, testOpts(), 2*time.Minute)
}

func TestApplyClockInOpensTheDay(t *testing.T) {
	store := newFakeStore()
	schedules := newFakeSchedules()
	svc := newTestService(store, schedules)

	punch := at("2026-08-24 08:58")
	rec, err := svc.ApplyClockEvent(context.Background(), ClockEvent{
		EmployeeID: "TSI00123", DeviceID: "dev-1", Kind: "in", At: punch,
	})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StatusClockedIn, rec.Status)
	require.NotNil(t, rec.ClockIn)
	assert.True(t, rec.ClockIn.Equal(punch))
	assert.Nil(t, rec.ClockOut)
	assert.Len(t, store.events, 1)
}

func TestDuplicatePunchInsideWindowIsDropped(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeSchedules())

	first := time.Now().In(manila).Add(-30 * time.Second)
	_, err := svc.ApplyClockEvent(context.Background(), ClockEvent{
		EmployeeID: "TSI00123", DeviceID: "dev-1", Kind: "in", At: first,
	})
	require.NoError(t, err)

	_, err = svc.ApplyClockEvent(context.Background(), ClockEvent{
		EmployeeID: "TSI00123", DeviceID: "dev-1", Kind: "in", At: first.Add(20 * time.Second),
	})
	require.NoError(t, err)
	assert.Len(t, store.events, 1, "second punch must not be recorded")
}

func TestClockInAfterAbsentMarkIsAConflict(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, newFakeSchedules())

	monday := day("2026-08-24")
	_, err := store.InsertAbsent(context.Background(), "TSI00123", monday)
	require.NoError(t, err)

	_, err = svc.ApplyClockEvent(context.Background(), ClockEvent{
		EmployeeID: "TSI00123", DeviceID: "dev-1", Kind: "in", At: at("2026-08-24 10:00"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	// The absent row is untouched.
	rec, err := store.Get(context.Background(), "TSI00123", monday)
	require.NoError(t, err)
	assert.Equal(t, StatusAbsent, rec.Status)
	assert.Nil(t, rec.ClockIn)
}

func TestClockOutClosesPresentOrLate(t *testing.T) {
	store := newFakeStore()
	schedules := newFakeSchedules()
	schedules.add(assignmentFor("TSI00123", 1, "09:00", "18:00", time.Monday))
	svc := newTestService(store, schedules)
	ctx := context.Background()

	_, err := svc.ApplyClockEvent(ctx, ClockEvent{
		EmployeeID: "TSI00123", DeviceID: "dev-1", Kind: "in", At: at("2026-08-24 09:20"),
	})
	require.NoError(t, err)

	rec, err := svc.ApplyClockEvent(ctx, ClockEvent{
		EmployeeID: "TSI00123", DeviceID: "dev-1", Kind: "out", At: at("2026-08-24 18:05"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusLate, rec.Status, "09:20 clock-in on a 09:00 shift is late")
	require.NotNil(t, rec.ClockOut)

	// On-time employee on the same shift.
	_, err = svc.ApplyClockEvent(ctx, ClockEvent{
		EmployeeID: "TSI00456", DeviceID: "dev-1", Kind: "in", At: at("2026-08-24 08:45"),
	})
	require.NoError(t, err)
	schedules.add(assignmentFor("TSI00456", 2, "09:00", "18:00", time.Monday))
	rec, err = svc.ApplyClockEvent(ctx, ClockEvent{
		EmployeeID: "TSI00456", DeviceID: "dev-1", Kind: "out", At: at("2026-08-24 18:01"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPresent, rec.Status)
}

func TestOvernightClockOutClosesPreviousDay(t *testing.T) {
	store := newFakeStore()
	schedules := newFakeSchedules()
	schedules.add(assignmentFor("TSI00123", 1, "22:00", "06:00", time.Monday))
	svc := newTestService(store, schedules)
	ctx := context.Background()

	_, err := svc.ApplyClockEvent(ctx, ClockEvent{
		EmployeeID: "TSI00123", DeviceID: "dev-1", Kind: "in", At: at("2026-08-24 21:55"),
	})
	require.NoError(t, err)

	rec, err := svc.ApplyClockEvent(ctx, ClockEvent{
		EmployeeID: "TSI00123", DeviceID: "dev-1", Kind: "out", At: at("2026-08-25 06:10"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-08-24", rec.WorkDate.Format("2006-01-02"), "record stays keyed to the shift's start date")
	assert.Equal(t, StatusPresent, rec.Status)
}

func TestClockOutWithoutOpenRecordIsNotFound(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeSchedules())

	_, err := svc.ApplyClockEvent(context.Background(), ClockEvent{
		EmployeeID: "TSI00123", DeviceID: "dev-1", Kind: "out", At: at("2026-08-24 18:00"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyClockEventRejectsBadInput(t *testing.T) {
	svc := newTestService(newFakeStore(), newFakeSchedules())
	ctx := context.Background()

	_, err := svc.ApplyClockEvent(ctx, ClockEvent{DeviceID: "dev-1", Kind: "in"})
	assert.ErrorIs(t, err, ErrData)

	_, err = svc.ApplyClockEvent(ctx, ClockEvent{EmployeeID: "TSI00123", DeviceID: "dev-1", Kind: "sideways"})
	assert.ErrorIs(t, err, ErrData)
}

func TestAssignOvertime(t *testing.T) {
	store := newFakeStore()
	schedules := newFakeSchedules()
	schedules.add(assignmentFor("TSI00123", 1, "09:00", "18:00", time.Monday))
	svc := newTestService(store, schedules)
	ctx := context.Background()
	monday := day("2026-08-24")

	// Build a completed present day.
	_, err := svc.ApplyClockEvent(ctx, ClockEvent{
		EmployeeID: "TSI00123", DeviceID: "dev-1", Kind: "in", At: at("2026-08-24 08:55"),
	})
	require.NoError(t, err)
	_, err = svc.ApplyClockEvent(ctx, ClockEvent{
		EmployeeID: "TSI00123", DeviceID: "dev-1", Kind: "out", At: at("2026-08-24 20:00"),
	})
	require.NoError(t, err)

	rec, err := svc.AssignOvertime(ctx, "TSI00123", monday, 2.0)
	require.NoError(t, err)
	assert.Equal(t, StatusOvertime, rec.Status)
	require.NotNil(t, rec.OvertimeHours)
	assert.Equal(t, 2.0, *rec.OvertimeHours)

	// A second identical request is rejected.
	_, err = svc.AssignOvertime(ctx, "TSI00123", monday, 2.0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAssignOvertimeRejectsIneligible(t *testing.T) {
	store := newFakeStore()
	schedules := newFakeSchedules()
	schedules.add(assignmentFor("TSI00123", 1, "09:00", "18:00", time.Monday))
	svc := newTestService(store, schedules)
	ctx := context.Background()
	monday := day("2026-08-24")

	// No record at all.
	_, err := svc.AssignOvertime(ctx, "TSI00123", monday, 1.0)
	assert.ErrorIs(t, err, ErrNotFound)

	// Absent day.
	_, err = store.InsertAbsent(ctx, "TSI00123", monday)
	require.NoError(t, err)
	_, err = svc.AssignOvertime(ctx, "TSI00123", monday, 1.0)
	assert.ErrorIs(t, err, ErrConflict)

	// Present but unscheduled day (Tuesday).
	tuesday := day("2026-08-25")
	_, err = store.InsertClockIn(ctx, "TSI00123", tuesday, at("2026-08-25 09:00"))
	require.NoError(t, err)
	_, err = store.CloseClockOut(ctx, "TSI00123", tuesday, at("2026-08-25 18:00"), StatusPresent)
	require.NoError(t, err)
	_, err = svc.AssignOvertime(ctx, "TSI00123", tuesday, 1.0)
	assert.ErrorIs(t, err, ErrConflict)

	// Non-positive hours.
	_, err = svc.AssignOvertime(ctx, "TSI00123", monday, 0)
	assert.ErrorIs(t, err, ErrData)
}
