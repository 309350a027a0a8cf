package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func testCalendar() Calendar {
	return Calendar{
		Hours:          BusinessHours{Start: mustTime("09:00"), End: mustTime("17:00")},
		GranularityMin: 30,
	}
}

func mustTime(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func appt(start string, durationMin int, status Status) Appointment {
	return Appointment{
		ID:          uuid.New(),
		Start:       mustTime(start),
		DurationMin: durationMin,
		Status:      status,
	}
}

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    int // minutes since midnight
		wantErr bool
	}{
		{in: "09:00", want: 540},
		{in: "00:00", want: 0},
		{in: "23:59", want: 1439},
		{in: "17:30", want: 1050},
		{in: "9am", wantErr: true},
		{in: "24:00", wantErr: true},
		{in: "09:60", wantErr: true},
		{in: "", wantErr: true},
		{in: "09", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseTimeOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error, got %v", tc.in, got)
			} else if !errors.Is(err, ErrValidation) {
				t.Errorf("ParseTimeOfDay(%q): error is not ErrValidation: %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if int(got) != tc.want {
			t.Errorf("ParseTimeOfDay(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestTimeOfDayRoundTrip(t *testing.T) {
	for _, s := range []string{"00:05", "09:00", "12:45", "23:30"} {
		parsed := mustTime(s)
		if parsed.String() != s {
			t.Errorf("round trip %q -> %q", s, parsed.String())
		}
	}
}

func TestHasConflict_Overlap(t *testing.T) {
	existing := []Appointment{appt("09:00", 30, StatusScheduled)}

	cases := []struct {
		name     string
		start    string
		duration int
		want     bool
	}{
		{name: "inside existing", start: "09:15", duration: 30, want: true},
		{name: "same interval", start: "09:00", duration: 30, want: true},
		{name: "covers existing", start: "08:45", duration: 60, want: true},
		{name: "back to back after", start: "09:30", duration: 30, want: false},
		{name: "back to back before", start: "08:30", duration: 30, want: false},
		{name: "well clear", start: "11:00", duration: 30, want: false},
		{name: "zero duration", start: "09:15", duration: 0, want: false},
		{name: "zero duration at start", start: "09:00", duration: 0, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := HasConflict(mustTime(tc.start), tc.duration, existing)
			if got != tc.want {
				t.Errorf("HasConflict(%s, %dm) = %v, want %v", tc.start, tc.duration, got, tc.want)
			}
		})
	}
}

func TestHasConflict_OnlyActiveStatusesCount(t *testing.T) {
	for _, status := range []Status{StatusCancelled, StatusNoShow, StatusCompleted, StatusInProgress} {
		existing := []Appointment{appt("09:00", 30, status)}
		if HasConflict(mustTime("09:00"), 30, existing) {
			t.Errorf("status %s should not count toward conflicts", status)
		}
	}

	for _, status := range []Status{StatusScheduled, StatusConfirmed} {
		existing := []Appointment{appt("09:00", 30, status)}
		if !HasConflict(mustTime("09:00"), 30, existing) {
			t.Errorf("status %s should count toward conflicts", status)
		}
	}
}

func TestHasConflict_EmptyExistingInterval(t *testing.T) {
	existing := []Appointment{appt("09:15", 0, StatusScheduled)}
	if HasConflict(mustTime("09:00"), 30, existing) {
		t.Error("an empty existing interval should not block bookings")
	}
}

func TestAvailableSlots_EmptyDay(t *testing.T) {
	cal := testCalendar()

	slots, err := cal.AvailableSlots(30, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 09:00 through 16:30 inclusive on a 30-minute grid.
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	if slots[0].String() != "09:00" {
		t.Errorf("first slot = %s, want 09:00", slots[0])
	}
	if slots[len(slots)-1].String() != "16:30" {
		t.Errorf("last slot = %s, want 16:30", slots[len(slots)-1])
	}
}

func TestAvailableSlots_LongerDurationShrinksTail(t *testing.T) {
	cal := testCalendar()

	slots, err := cal.AvailableSlots(60, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A 60-minute appointment cannot start at 16:30: it would end past 17:00.
	if slots[len(slots)-1].String() != "16:00" {
		t.Errorf("last slot = %s, want 16:00", slots[len(slots)-1])
	}
}

func TestAvailableSlots_FiltersBookedIntervals(t *testing.T) {
	cal := testCalendar()
	existing := []Appointment{
		appt("09:00", 30, StatusScheduled),
		appt("10:00", 60, StatusConfirmed),
	}

	slots, err := cal.AvailableSlots(30, existing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	booked := map[string]bool{"09:00": true, "10:00": true, "10:30": true}
	for _, s := range slots {
		if booked[s.String()] {
			t.Errorf("slot %s should be filtered out", s)
		}
	}
	// 09:30 sits exactly between the two bookings and must survive.
	found := false
	for _, s := range slots {
		if s.String() == "09:30" {
			found = true
		}
	}
	if !found {
		t.Error("slot 09:30 should be available between back-to-back bookings")
	}
}

// A start time appears in AvailableSlots exactly when HasConflict rejects it,
// for every candidate on the grid.
func TestSlotConflictDuality(t *testing.T) {
	cal := testCalendar()
	existing := []Appointment{
		appt("09:00", 45, StatusScheduled),
		appt("11:30", 30, StatusConfirmed),
		appt("13:00", 90, StatusScheduled),
		appt("15:00", 30, StatusCancelled),
	}

	for _, duration := range []int{15, 30, 60} {
		slots, err := cal.AvailableSlots(duration, existing)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		available := make(map[TimeOfDay]bool, len(slots))
		for _, s := range slots {
			available[s] = true
		}

		for start := cal.Hours.Start; start.Add(duration) <= cal.Hours.End; start = start.Add(cal.GranularityMin) {
			conflict := HasConflict(start, duration, existing)
			if available[start] == conflict {
				t.Errorf("duration %dm: slot %s available=%v conflict=%v", duration, start, available[start], conflict)
			}
		}
	}
}

func TestAvailableSlots_InvalidDuration(t *testing.T) {
	cal := testCalendar()

	for _, d := range []int{0, -30} {
		_, err := cal.AvailableSlots(d, nil)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("duration %d: expected ErrValidation, got %v", d, err)
		}
	}
}

func TestValidateBookingDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	if err := ValidateBookingDate(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), now); err != nil {
		t.Errorf("same day should be bookable: %v", err)
	}
	if err := ValidateBookingDate(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), now); err != nil {
		t.Errorf("tomorrow should be bookable: %v", err)
	}
	if err := ValidateBookingDate(time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC), now); !errors.Is(err, ErrValidation) {
		t.Errorf("yesterday should be rejected, got %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusScheduled, StatusConfirmed},
		{StatusScheduled, StatusCancelled},
		{StatusScheduled, StatusNoShow},
		{StatusConfirmed, StatusInProgress},
		{StatusConfirmed, StatusCancelled},
		{StatusConfirmed, StatusNoShow},
		{StatusInProgress, StatusCompleted},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusScheduled, StatusCompleted},
		{StatusScheduled, StatusInProgress},
		{StatusInProgress, StatusCancelled},
		{StatusCompleted, StatusScheduled},
		{StatusCancelled, StatusConfirmed},
		{StatusNoShow, StatusScheduled},
		{StatusCompleted, StatusCompleted},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}
