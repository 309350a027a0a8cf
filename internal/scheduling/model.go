package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// transitions is the full appointment state machine. Terminal states have no
// entry. Nothing transitions automatically: a stale scheduled appointment
// stays scheduled until an actor moves it.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is one of the known appointment statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether the status counts toward doctor conflicts.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

type Appointment struct {
	ID           uuid.UUID
	Number       string // display identifier, e.g. APT000123; the UUID is authoritative
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	DepartmentID uuid.UUID
	Date         time.Time // calendar day, midnight UTC
	Start        TimeOfDay
	DurationMin  int
	Status       Status
	Reason       string
	Notes        *string
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// End is the exclusive end of the appointment's interval.
func (a *Appointment) End() TimeOfDay {
	return a.Start.Add(a.DurationMin)
}
