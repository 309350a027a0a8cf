package scheduling

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation marks malformed input: bad time format, non-positive
// duration, booking in the past. Operations failing validation have no side
// effects.
var ErrValidation = errors.New("validation failed")

// BusinessHours is the bookable window of a working day.
type BusinessHours struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Calendar computes bookable slots and detects conflicts. It is stateless:
// every call works from the appointment list it is handed, so results are
// recomputed from scratch and never cached.
type Calendar struct {
	Hours          BusinessHours
	GranularityMin int
}

// AvailableSlots returns the ordered start times within business hours at
// which an appointment of the given duration would not overlap any active
// appointment in existing. Candidates march the window at the configured
// granularity regardless of the requested duration; a candidate whose end
// would exceed the window end is not emitted.
func (c Calendar) AvailableSlots(durationMin int, existing []Appointment) ([]TimeOfDay, error) {
	if durationMin <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %d", ErrValidation, durationMin)
	}

	var slots []TimeOfDay
	for start := c.Hours.Start; start.Add(durationMin) <= c.Hours.End; start = start.Add(c.GranularityMin) {
		if !HasConflict(start, durationMin, existing) {
			slots = append(slots, start)
		}
	}
	return slots, nil
}

// HasConflict reports whether [start, start+duration) intersects the interval
// of any active appointment in existing. Intervals are half-open, so an
// appointment ending exactly when another starts is not a conflict, and an
// empty interval on either side conflicts with nothing.
func HasConflict(start TimeOfDay, durationMin int, existing []Appointment) bool {
	if durationMin <= 0 {
		return false
	}
	end := start.Add(durationMin)
	for i := range existing {
		a := &existing[i]
		if !a.Status.Active() {
			continue
		}
		if a.DurationMin <= 0 {
			continue
		}
		if start < a.End() && a.Start < end {
			return true
		}
	}
	return false
}

// NormalizeDate truncates t to its calendar day in UTC.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateBookingDate rejects dates before the calendar day containing now.
func ValidateBookingDate(date, now time.Time) error {
	if NormalizeDate(date).Before(NormalizeDate(now)) {
		return fmt.Errorf("%w: date %s is in the past", ErrValidation, date.Format("2006-01-02"))
	}
	return nil
}
