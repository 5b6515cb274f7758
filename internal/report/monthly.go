package report

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"attendance/internal/attendance"
	"attendance/internal/roster"
)

const (
	detailSheet  = "Attendance"
	summarySheet = "Summary"
	timeLayout   = "15:04"
)

// MonthlyXLSX renders one month of attendance records as a workbook: a
// detail sheet with one row per (employee, date) and a summary sheet with
// per-employee status totals. Records outside the month are ignored so
// callers can pass an over-fetched range.
func MonthlyXLSX(records []attendance.Record, employees []roster.Employee, month time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", detailSheet)
	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, err
	}

	names := make(map[string]string, len(employees))
	departments := make(map[string]string, len(employees))
	for _, e := range employees {
		if e.Name != nil {
			names[e.EmployeeID] = *e.Name
		}
		if e.Department != nil {
			departments[e.EmployeeID] = *e.Department
		}
	}

	headers := []string{"Employee ID", "Name", "Department", "Date", "Clock In", "Clock Out", "Status", "Overtime Hours"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(detailSheet, cell, h); err != nil {
			return nil, err
		}
	}

	type totals struct {
		present, late, absent, missed, overtime int
		overtimeHours                           float64
	}
	perEmployee := make(map[string]*totals)
	order := []string{}

	row := 2
	for _, rec := range records {
		if rec.WorkDate.Year() != month.Year() || rec.WorkDate.Month() != month.Month() {
			continue
		}
		t, ok := perEmployee[rec.EmployeeID]
		if !ok {
			t = &totals{}
			perEmployee[rec.EmployeeID] = t
			order = append(order, rec.EmployeeID)
		}
		switch rec.Status {
		case attendance.StatusPresent:
			t.present++
		case attendance.StatusLate:
			t.late++
		case attendance.StatusAbsent:
			t.absent++
		case attendance.StatusMissedClockOut:
			t.missed++
		case attendance.StatusOvertime:
			t.overtime++
			if rec.OvertimeHours != nil {
				t.overtimeHours += *rec.OvertimeHours
			}
		}

		values := []any{
			rec.EmployeeID,
			names[rec.EmployeeID],
			departments[rec.EmployeeID],
			rec.WorkDate.Format(roster.DateLayout),
			clockCell(rec.ClockIn),
			clockCell(rec.ClockOut),
			string(rec.Status),
			overtimeCell(rec.OvertimeHours),
		}
		for i, v := range values {
			cell, err := excelize.CoordinatesToCellName(i+1, row)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(detailSheet, cell, v); err != nil {
				return nil, err
			}
		}
		row++
	}

	summaryHeaders := []string{"Employee ID", "Name", "Present", "Late", "Absent", "Missed Clock-out", "Overtime Days", "Overtime Hours"}
	for i, h := range summaryHeaders {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(summarySheet, cell, h); err != nil {
			return nil, err
		}
	}
	for i, employeeID := range order {
		t := perEmployee[employeeID]
		values := []any{
			employeeID, names[employeeID],
			t.present, t.late, t.absent, t.missed, t.overtime, t.overtimeHours,
		}
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(summarySheet, cell, v); err != nil {
				return nil, err
			}
		}
	}

	return f, nil
}

// Filename builds the download name for a monthly report.
func Filename(month time.Time) string {
	return fmt.Sprintf("attendance-%s.xlsx", month.Format("2006-01"))
}

func clockCell(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}

func overtimeCell(h *float64) any {
	if h == nil {
		return ""
	}
	return *h
}
