package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/attendance"
	"attendance/internal/roster"
)

func ts(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr[T any](v T) *T { return &v }

func TestMonthlyXLSX(t *testing.T) {
	month := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	employees := []roster.Employee{
		{EmployeeID: "TSI00123", Name: ptr("Ana Cruz"), Department: ptr("Ops"), Active: true},
		{EmployeeID: "TSI00456", Name: ptr("Ben Reyes"), Active: true},
	}
	records := []attendance.Record{
		{
			EmployeeID: "TSI00123",
			WorkDate:   time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			ClockIn:    ptr(ts("2026-08-24 08:58")),
			ClockOut:   ptr(ts("2026-08-24 18:02")),
			Status:     attendance.StatusPresent,
		},
		{
			EmployeeID:    "TSI00123",
			WorkDate:      time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC),
			ClockIn:       ptr(ts("2026-08-25 08:55")),
			ClockOut:      ptr(ts("2026-08-25 20:10")),
			Status:        attendance.StatusOvertime,
			OvertimeHours: ptr(2.0),
		},
		{
			EmployeeID: "TSI00456",
			WorkDate:   time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
			Status:     attendance.StatusAbsent,
		},
		{
			// Outside the requested month; must be skipped.
			EmployeeID: "TSI00456",
			WorkDate:   time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
			Status:     attendance.StatusPresent,
		},
	}

	f, err := MonthlyXLSX(records, employees, month)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue("Attendance", "A2")
	require.NoError(t, err)
	assert.Equal(t, "TSI00123", got)

	got, err = f.GetCellValue("Attendance", "B2")
	require.NoError(t, err)
	assert.Equal(t, "Ana Cruz", got)

	got, err = f.GetCellValue("Attendance", "E2")
	require.NoError(t, err)
	assert.Equal(t, "08:58", got)

	got, err = f.GetCellValue("Attendance", "G3")
	require.NoError(t, err)
	assert.Equal(t, "overtime", got)

	// Absent row has empty clock cells.
	got, err = f.GetCellValue("Attendance", "E4")
	require.NoError(t, err)
	assert.Empty(t, got)

	// July record skipped: row 5 is empty.
	got, err = f.GetCellValue("Attendance", "A5")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Summary totals.
	got, err = f.GetCellValue("Summary", "A2")
	require.NoError(t, err)
	assert.Equal(t, "TSI00123", got)
	got, err = f.GetCellValue("Summary", "C2") // present days
	require.NoError(t, err)
	assert.Equal(t, "1", got)
	got, err = f.GetCellValue("Summary", "H2") // overtime hours
	require.NoError(t, err)
	assert.Equal(t, "2", got)
	got, err = f.GetCellValue("Summary", "E3") // absences for second employee
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestFilename(t *testing.T) {
	month := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "attendance-2026-08.xlsx", Filename(month))
}
