package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wardline/hospital-ops/internal/hospital"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// Repository contains all DB interactions needed by the scheduler.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListByDoctorAndDate returns every appointment (any status) for the
	// doctor on the given calendar day. Conflict checks filter to active
	// statuses themselves.
	ListByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error)

	// NextAppointmentNumber draws the next value of the display-number
	// sequence. Numbers are never reused even when a create later fails.
	NextAppointmentNumber(ctx context.Context) (int64, error)

	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	// UpdateAppointmentStatus is a compare-and-set: it only applies when the
	// stored status still equals from, and returns ErrAppointmentNotFound
	// when no row matches.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	InsertEvent(ctx context.Context, ev hospital.EventLog) error
}
