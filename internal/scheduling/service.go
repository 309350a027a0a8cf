package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/wardline/hospital-ops/internal/hospital"
	redisclient "github.com/wardline/hospital-ops/internal/redis"
)

const (
	EventAppointmentCreated = "APPOINTMENT_CREATED"
	EventStatusChanged      = "APPOINTMENT_STATUS_CHANGED"
)

var (
	ErrSlotConflict      = errors.New("requested time overlaps an existing appointment")
	ErrScheduleBusy      = errors.New("doctor schedule is being modified, please retry")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAccessDenied      = errors.New("actor may not perform this operation")
	ErrNotADoctor        = errors.New("referenced user is not a doctor")
)

// statusRetries bounds how often a raced compare-and-set is re-attempted
// before the outcome is surfaced to the caller.
const statusRetries = 3

type Service struct {
	repo               Repository
	people             hospital.Repository
	locker             redisclient.Locker
	cal                Calendar
	defaultDurationMin int
	now                func() time.Time
}

func NewService(repo Repository, people hospital.Repository, locker redisclient.Locker, cal Calendar, defaultDurationMin int) *Service {
	return &Service{
		repo:               repo,
		people:             people,
		locker:             locker,
		cal:                cal,
		defaultDurationMin: defaultDurationMin,
		now:                time.Now,
	}
}

type CreateInput struct {
	PatientID    uuid.UUID
	DoctorID     uuid.UUID
	DepartmentID uuid.UUID
	Date         time.Time
	Start        TimeOfDay
	DurationMin  int
	Reason       string
}

// Create books a new appointment. The conflict check and the insert run under
// a per doctor+date lock, so two concurrent requests for overlapping times on
// the same doctor produce exactly one appointment.
func (s *Service) Create(ctx context.Context, in CreateInput, actor hospital.Actor) (*Appointment, error) {
	if actor.Role == hospital.RolePatient {
		// Appointments are created by staff or doctors on a patient's behalf.
		return nil, ErrAccessDenied
	}

	durationMin := in.DurationMin
	if durationMin == 0 {
		durationMin = s.defaultDurationMin
	}
	if durationMin < 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %d", ErrValidation, in.DurationMin)
	}
	if err := ValidateBookingDate(in.Date, s.now()); err != nil {
		return nil, err
	}

	if _, err := s.people.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, hospital.ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.people.GetUserByID(ctx, in.DoctorID)
	if err != nil {
		if errors.Is(err, hospital.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if doctor.Role != hospital.RoleDoctor {
		return nil, ErrNotADoctor
	}

	date := NormalizeDate(in.Date)

	var created *Appointment

	err = s.locker.WithLock(ctx, doctorDayKey(in.DoctorID, date), func(lockCtx context.Context) error {
		// Inside the critical section, re-read the doctor's day and check the
		// proposed interval against every active appointment.
		existing, err := s.repo.ListByDoctorAndDate(lockCtx, in.DoctorID, date)
		if err != nil {
			return fmt.Errorf("list doctor appointments: %w", err)
		}
		if HasConflict(in.Start, durationMin, existing) {
			return ErrSlotConflict
		}

		seq, err := s.repo.NextAppointmentNumber(lockCtx)
		if err != nil {
			return err
		}

		appt := &Appointment{
			ID:           uuid.New(),
			Number:       FormatAppointmentNumber(seq),
			PatientID:    in.PatientID,
			DoctorID:     in.DoctorID,
			DepartmentID: in.DepartmentID,
			Date:         date,
			Start:        in.Start,
			DurationMin:  durationMin,
			Status:       StatusScheduled,
			Reason:       in.Reason,
		}

		created, err = s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		s.logEvent(lockCtx, created.ID, EventAppointmentCreated, map[string]any{
			"number":    created.Number,
			"doctor_id": in.DoctorID.String(),
			"date":      date.Format("2006-01-02"),
			"start":     in.Start.String(),
			"actor_id":  actor.ID.String(),
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrScheduleBusy
		}
		return nil, err
	}

	return created, nil
}

// AvailableSlots lists the start times still bookable for the doctor on the
// given day.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, durationMin int) ([]TimeOfDay, error) {
	if durationMin == 0 {
		durationMin = s.defaultDurationMin
	}
	if err := ValidateBookingDate(date, s.now()); err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByDoctorAndDate(ctx, doctorID, NormalizeDate(date))
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}

	return s.cal.AvailableSlots(durationMin, existing)
}

// UpdateStatus applies a status transition on behalf of actor. Only the
// assigned doctor, an admin, or (for cancellation) the owning patient may
// transition an appointment.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status, actor hospital.Actor) (*Appointment, error) {
	if !ValidStatus(to) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}

	for attempt := 0; attempt < statusRetries; attempt++ {
		appt, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if err := authorizeTransition(appt, to, actor); err != nil {
			return nil, err
		}
		if !CanTransition(appt.Status, to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
		}

		updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, to)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				// The status moved under us; re-read and re-validate.
				continue
			}
			return nil, fmt.Errorf("update appointment status: %w", err)
		}

		s.logEvent(ctx, updated.ID, EventStatusChanged, map[string]any{
			"from":     string(appt.Status),
			"to":       string(to),
			"actor_id": actor.ID.String(),
		})

		return updated, nil
	}

	return nil, fmt.Errorf("%w: concurrent status changes", ErrInvalidTransition)
}

// Cancel moves a scheduled or confirmed appointment to cancelled. The record
// is kept; nothing is ever deleted.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor hospital.Actor) (*Appointment, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled, actor)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// ListDoctorDay returns the doctor's appointments for a calendar day, any
// status, ordered by start time.
func (s *Service) ListDoctorDay(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Appointment, error) {
	return s.repo.ListByDoctorAndDate(ctx, doctorID, NormalizeDate(date))
}

func authorizeTransition(appt *Appointment, to Status, actor hospital.Actor) error {
	switch actor.Role {
	case hospital.RoleAdmin:
		return nil
	case hospital.RoleDoctor:
		if actor.ID == appt.DoctorID {
			return nil
		}
	case hospital.RolePatient:
		if actor.ID == appt.PatientID && to == StatusCancelled {
			return nil
		}
	}
	return ErrAccessDenied
}

// FormatAppointmentNumber renders a sequence value as a display number.
func FormatAppointmentNumber(seq int64) string {
	return fmt.Sprintf("APT%06d", seq)
}

func doctorDayKey(doctorID uuid.UUID, date time.Time) string {
	return fmt.Sprintf("doctor:%s:%s", doctorID, date.Format("2006-01-02"))
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := hospital.EventLog{
		EventType: eventType,
		EntityID:  &apptID,
		Payload:   data,
		CreatedAt: s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
