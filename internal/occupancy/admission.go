package occupancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/wardline/hospital-ops/internal/db"
	"github.com/wardline/hospital-ops/internal/hospital"
)

const (
	EventPatientAdmitted     = "PATIENT_ADMITTED"
	EventPatientDischarged   = "PATIENT_DISCHARGED"
	EventAdmissionRolledBack = "ADMISSION_ROLLED_BACK"
	EventDischargeRolledBack = "DISCHARGE_ROLLED_BACK"
)

var ErrPatientAlreadyAdmitted = errors.New("patient is already admitted")

// BedAllocationError marks a failure in the bed half of an admission or
// discharge. Nothing was changed.
type BedAllocationError struct {
	Err error
}

func (e *BedAllocationError) Error() string {
	return fmt.Sprintf("bed allocation failed: %v", e.Err)
}

func (e *BedAllocationError) Unwrap() error { return e.Err }

// PatientUpdateError marks a failure in the patient half after the bed half
// succeeded. The coordinator has already rolled the bed back, so the caller
// observes the pre-operation state on both records.
type PatientUpdateError struct {
	Err error
}

func (e *PatientUpdateError) Error() string {
	return fmt.Sprintf("patient update failed: %v", e.Err)
}

func (e *PatientUpdateError) Unwrap() error { return e.Err }

// AdmissionCoordinator keeps Patient.assigned_room/status and the bed's
// occupant pointer mutually consistent. The two live in different records, so
// each operation is a commit-or-rollback pair: bed first, then patient, and a
// patient-side failure undoes the bed change before the error surfaces.
// "Only one changed" is never an observable end state.
type AdmissionCoordinator struct {
	beds   *BedAllocator
	people hospital.Repository
	now    func() time.Time
}

func NewAdmissionCoordinator(beds *BedAllocator, people hospital.Repository) *AdmissionCoordinator {
	return &AdmissionCoordinator{
		beds:   beds,
		people: people,
		now:    time.Now,
	}
}

// Admit occupies the bed and marks the patient admitted as one logical unit.
func (c *AdmissionCoordinator) Admit(ctx context.Context, patientID, roomID uuid.UUID, bedNumber string, actor hospital.Actor) (*hospital.Patient, error) {
	patient, err := c.people.GetPatientByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient.Status == hospital.PatientAdmitted {
		return nil, ErrPatientAlreadyAdmitted
	}

	if _, err := c.beds.Assign(ctx, roomID, bedNumber, patientID); err != nil {
		return nil, &BedAllocationError{Err: err}
	}

	now := c.now()
	upd := hospital.PatientUpdate{
		Status:       hospital.PatientAdmitted,
		AssignedRoom: &roomID,
		AdmittedAt:   &now,
	}

	updated, err := c.updatePatient(ctx, patient, upd, func(fresh *hospital.Patient) error {
		// A raced admission may have landed between our read and the write.
		if fresh.Status == hospital.PatientAdmitted {
			return ErrPatientAlreadyAdmitted
		}
		return nil
	})
	if err != nil {
		// The bed is reserved but the patient record could not be updated:
		// undo the reservation so neither record changed.
		if _, rbErr := c.beds.Release(ctx, roomID, bedNumber, patientID); rbErr != nil {
			log.Printf("CRITICAL: admit rollback failed for patient %s bed %s/%s: %v", patientID, roomID, bedNumber, rbErr)
		}
		c.logEvent(ctx, patientID, EventAdmissionRolledBack, map[string]any{
			"room_id": roomID.String(),
			"bed":     bedNumber,
			"cause":   err.Error(),
		})
		return nil, &PatientUpdateError{Err: err}
	}

	c.logEvent(ctx, patientID, EventPatientAdmitted, map[string]any{
		"room_id":  roomID.String(),
		"bed":      bedNumber,
		"actor_id": actor.ID.String(),
	})

	return updated, nil
}

// Discharge frees the bed and marks the patient discharged as one logical
// unit, mirroring Admit's rollback discipline: a patient-side failure
// re-occupies the bed.
func (c *AdmissionCoordinator) Discharge(ctx context.Context, patientID, roomID uuid.UUID, bedNumber string, actor hospital.Actor) (*hospital.Patient, error) {
	patient, err := c.people.GetPatientByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient.Status != hospital.PatientAdmitted || patient.AssignedRoom == nil || *patient.AssignedRoom != roomID {
		return nil, fmt.Errorf("%w: patient %s is not admitted to room %s", ErrStateMismatch, patientID, roomID)
	}

	if _, err := c.beds.Release(ctx, roomID, bedNumber, patientID); err != nil {
		return nil, &BedAllocationError{Err: err}
	}

	now := c.now()
	upd := hospital.PatientUpdate{
		Status:       hospital.PatientDischarged,
		AssignedRoom: nil,
		AdmittedAt:   patient.AdmittedAt,
		DischargedAt: &now,
	}

	updated, err := c.updatePatient(ctx, patient, upd, func(fresh *hospital.Patient) error {
		if fresh.Status != hospital.PatientAdmitted || fresh.AssignedRoom == nil || *fresh.AssignedRoom != roomID {
			return fmt.Errorf("%w: patient %s is no longer admitted to room %s", ErrStateMismatch, patientID, roomID)
		}
		return nil
	})
	if err != nil {
		if _, rbErr := c.beds.reoccupy(ctx, roomID, bedNumber, patientID, patient.AdmittedAt); rbErr != nil {
			log.Printf("CRITICAL: discharge rollback failed for patient %s bed %s/%s: %v", patientID, roomID, bedNumber, rbErr)
		}
		c.logEvent(ctx, patientID, EventDischargeRolledBack, map[string]any{
			"room_id": roomID.String(),
			"bed":     bedNumber,
			"cause":   err.Error(),
		})
		return nil, &PatientUpdateError{Err: err}
	}

	c.logEvent(ctx, patientID, EventPatientDischarged, map[string]any{
		"room_id":  roomID.String(),
		"bed":      bedNumber,
		"actor_id": actor.ID.String(),
	})

	return updated, nil
}

// updatePatient applies the conditional write, re-reading on version
// conflicts a bounded number of times. A conflict means something changed the
// patient after our read, so the fresh record is re-validated before the
// retry: blindly re-submitting could commit a decision made against stale
// state (an admission racing another admission of the same patient).
func (c *AdmissionCoordinator) updatePatient(ctx context.Context, patient *hospital.Patient, upd hospital.PatientUpdate, revalidate func(fresh *hospital.Patient) error) (*hospital.Patient, error) {
	version := patient.Version
	var lastErr error

	for attempt := 0; attempt < writeRetries; attempt++ {
		updated, err := c.people.UpdatePatientAdmission(ctx, patient.ID, version, upd)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, db.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err

		fresh, err := c.people.GetPatientByID(ctx, patient.ID)
		if err != nil {
			return nil, err
		}
		if err := revalidate(fresh); err != nil {
			return nil, err
		}
		version = fresh.Version
	}

	return nil, fmt.Errorf("patient %s: %w", patient.ID, lastErr)
}

func (c *AdmissionCoordinator) logEvent(ctx context.Context, patientID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	pid := patientID

	ev := hospital.EventLog{
		EventType: eventType,
		EntityID:  &pid,
		Payload:   data,
		CreatedAt: c.now(),
	}

	if err := c.people.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for patient %s: %v", eventType, patientID, err)
	}
}

// GetRoom exposes a room with its derived availability for read endpoints.
func (c *AdmissionCoordinator) GetRoom(ctx context.Context, roomID uuid.UUID) (*Room, error) {
	return c.beds.repo.GetRoomByID(ctx, roomID)
}
