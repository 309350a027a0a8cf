package hospital

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
	RolePatient Role = "patient"
)

type PatientStatus string

const (
	PatientActive     PatientStatus = "active"
	PatientInactive   PatientStatus = "inactive"
	PatientAdmitted   PatientStatus = "admitted"
	PatientDischarged PatientStatus = "discharged"
)

// Actor identifies who is performing an operation. Authentication happens
// upstream; services here only check ownership and role rules against it.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

type User struct {
	ID        uuid.UUID
	Name      string
	Role      Role
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID           uuid.UUID
	Name         string
	Status       PatientStatus
	AssignedRoom *uuid.UUID
	AdmittedAt   *time.Time
	DischargedAt *time.Time
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EventLog is an audit record. Entity-changing operations append one; nothing
// in the write path reads them back.
type EventLog struct {
	ID        int64
	EventType string
	EntityID  *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
