package roster

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// DateLayout is the civil-date format used everywhere a calendar day is
// compared or stored.
const DateLayout = "2006-01-02"

// Recurrence says on which calendar dates an assignment expects the employee
// to work. It is built once at ingestion; the resolver never sees the raw
// upstream payload shapes. When an explicit date list is present it governs
// alone and the weekday set is ignored.
type Recurrence struct {
	Weekdays map[time.Weekday]bool `json:"weekdays,omitempty"`
	Dates    map[string]bool       `json:"dates,omitempty"`
}

// MatchKind ranks how an assignment matched a date. Explicit-date matches
// outrank weekday matches when picking the governing assignment.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchWeekday
	MatchDate
)

// Match reports whether and how the recurrence covers the given date.
func (r Recurrence) Match(d time.Time) MatchKind {
	if len(r.Dates) > 0 {
		if r.Dates[d.Format(DateLayout)] {
			return MatchDate
		}
		return MatchNone
	}
	if r.Weekdays[d.Weekday()] {
		return MatchWeekday
	}
	return MatchNone
}

// WeekdayNames returns the weekday set in week order, for API responses.
func (r Recurrence) WeekdayNames() []string {
	var names []string
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if r.Weekdays[wd] {
			names = append(names, wd.String())
		}
	}
	return names
}

// DateList returns the explicit dates sorted ascending.
func (r Recurrence) DateList() []string {
	var dates []string
	for d := range r.Dates {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

var weekdayByName = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday,
	"friday": time.Friday, "saturday": time.Saturday,
}

// ParseRecurrence normalizes the three upstream representations (weekday
// name array, explicit date array, deprecated single "day" field) into one
// Recurrence. A non-nil error means the payload was malformed; callers are
// expected to log it and treat the assignment as never matching rather than
// fail the whole batch. Individual entries that do not parse are skipped.
func ParseRecurrence(weekdaysJSON, datesJSON []byte, legacyDay string) (Recurrence, error) {
	rec := Recurrence{}

	if len(datesJSON) > 0 && string(datesJSON) != "null" {
		var raw []string
		if err := json.Unmarshal(datesJSON, &raw); err != nil {
			return Recurrence{}, err
		}
		for _, d := range raw {
			d = strings.TrimSpace(d)
			if _, err := time.Parse(DateLayout, d); err != nil {
				continue
			}
			if rec.Dates == nil {
				rec.Dates = make(map[string]bool)
			}
			rec.Dates[d] = true
		}
	}

	if len(weekdaysJSON) > 0 && string(weekdaysJSON) != "null" {
		var raw []string
		if err := json.Unmarshal(weekdaysJSON, &raw); err != nil {
			return Recurrence{}, err
		}
		for _, name := range raw {
			if wd, ok := weekdayByName[strings.ToLower(strings.TrimSpace(name))]; ok {
				if rec.Weekdays == nil {
					rec.Weekdays = make(map[time.Weekday]bool)
				}
				rec.Weekdays[wd] = true
			}
		}
	}

	// The deprecated per-template single-day field folds into the weekday set.
	if legacyDay != "" {
		if wd, ok := weekdayByName[strings.ToLower(strings.TrimSpace(legacyDay))]; ok {
			if rec.Weekdays == nil {
				rec.Weekdays = make(map[time.Weekday]bool)
			}
			rec.Weekdays[wd] = true
		}
	}

	return rec, nil
}

// MatchSchedule picks the assignment governing targetDate, or nil when the
// employee is not scheduled. Explicit-date matches take precedence over
// weekday matches; the lowest assignment ID breaks remaining ties, so the
// result is deterministic regardless of input order. Inactive assignments
// never match.
func MatchSchedule(assignments []ScheduleAssignment, targetDate time.Time) *ScheduleAssignment {
	var best *ScheduleAssignment
	var bestKind MatchKind
	for i := range assignments {
		a := &assignments[i]
		if !a.Active {
			continue
		}
		kind := a.Recurrence.Match(targetDate)
		if kind == MatchNone {
			continue
		}
		if best == nil || kind > bestKind || (kind == bestKind && a.ID < best.ID) {
			best, bestKind = a, kind
		}
	}
	return best
}
