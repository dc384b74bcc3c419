package policy

import (
	"fmt"
	"time"
)

// Violation names why an interval falls outside the bookable calendar.
type Violation string

const (
	ViolationWeekend             Violation = "WEEKEND"
	ViolationHoliday             Violation = "HOLIDAY"
	ViolationOutsideWorkingHours Violation = "OUTSIDE_WORKING_HOURS"
)

func (v Violation) Message() string {
	switch v {
	case ViolationWeekend:
		return "bookings cannot be scheduled on non-working days"
	case ViolationHoliday:
		return "bookings cannot be scheduled on holidays"
	case ViolationOutsideWorkingHours:
		return "booking falls outside working hours"
	default:
		return "booking rejected by scheduling policy"
	}
}

// Rules describes the bookable calendar. Hours are fractional hours of the
// day (9.5 means 09:30) so half-hour opening times work without a separate
// minutes field.
type Rules struct {
	WorkStartHour float64
	WorkEndHour   float64
	workDays      map[time.Weekday]struct{}
	holidays      map[string]struct{}
}

func NewRules(startHour, endHour float64, workDays []time.Weekday, holidays []string) (*Rules, error) {
	if startHour < 0 || startHour >= 24 {
		return nil, fmt.Errorf("work start hour must be in [0, 24), got %v", startHour)
	}
	if endHour <= 0 || endHour > 24 {
		return nil, fmt.Errorf("work end hour must be in (0, 24], got %v", endHour)
	}
	if startHour >= endHour {
		return nil, fmt.Errorf("work start hour %v must be before end hour %v", startHour, endHour)
	}
	if len(workDays) == 0 {
		return nil, fmt.Errorf("at least one working day is required")
	}

	r := &Rules{
		WorkStartHour: startHour,
		WorkEndHour:   endHour,
		workDays:      make(map[time.Weekday]struct{}, len(workDays)),
		holidays:      make(map[string]struct{}, len(holidays)),
	}
	for _, d := range workDays {
		r.workDays[d] = struct{}{}
	}
	for _, h := range holidays {
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return nil, fmt.Errorf("invalid holiday date %q, want YYYY-MM-DD", h)
		}
		r.holidays[h] = struct{}{}
	}
	return r, nil
}

// WithHolidays returns a copy of the rules carrying the given holiday dates,
// leaving the receiver untouched. Used when a professional maintains their
// own holiday list on top of the shared calendar.
func (r *Rules) WithHolidays(holidays []string) (*Rules, error) {
	days := make([]time.Weekday, 0, len(r.workDays))
	for d := range r.workDays {
		days = append(days, d)
	}
	merged := make([]string, 0, len(r.holidays)+len(holidays))
	for h := range r.holidays {
		merged = append(merged, h)
	}
	merged = append(merged, holidays...)
	return NewRules(r.WorkStartHour, r.WorkEndHour, days, merged)
}

// Check evaluates the half-open interval [start, end) against the calendar.
// The zero Violation return means the interval is bookable.
//
// Intervals spanning midnight are rejected by the working-hours check since
// no working window crosses a day boundary; only the start date is consulted
// for the weekday and holiday checks.
func (r *Rules) Check(start, end time.Time) (Violation, bool) {
	if _, working := r.workDays[start.Weekday()]; !working {
		return ViolationWeekend, false
	}

	if _, holiday := r.holidays[start.Format("2006-01-02")]; holiday {
		return ViolationHoliday, false
	}

	// No working window crosses midnight, so an interval ending on a later
	// calendar day can never fit. end is exclusive, back up a nanosecond
	// before comparing dates so an end at exactly midnight still counts as
	// closing the start day.
	last := end.Add(-time.Nanosecond)
	sy, sm, sd := start.Date()
	ey, em, ed := last.Date()
	if sy != ey || sm != em || sd != ed {
		return ViolationOutsideWorkingHours, false
	}

	startHour := fractionalHour(start)
	endHour := fractionalHour(end)
	if endHour == 0 {
		endHour = 24
	}

	if startHour < r.WorkStartHour || endHour > r.WorkEndHour {
		return ViolationOutsideWorkingHours, false
	}

	return "", true
}

func fractionalHour(t time.Time) float64 {
	return float64(t.Hour()) +
		float64(t.Minute())/60 +
		float64(t.Second())/3600
}
