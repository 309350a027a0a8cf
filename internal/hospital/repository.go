package hospital

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrPatientNotFound = errors.New("patient not found")
)

// PatientUpdate is the full set of admission-related fields written together.
// AdmissionCoordinator is the only caller; nothing else touches these fields.
type PatientUpdate struct {
	Status       PatientStatus
	AssignedRoom *uuid.UUID
	AdmittedAt   *time.Time
	DischargedAt *time.Time
}

// Repository holds the people records shared by scheduling and occupancy.
type Repository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// UpdatePatientAdmission is a conditional write: it fails with
	// db.ErrVersionConflict if the patient's version no longer matches.
	UpdatePatientAdmission(ctx context.Context, id uuid.UUID, expectedVersion int64, upd PatientUpdate) (*Patient, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
