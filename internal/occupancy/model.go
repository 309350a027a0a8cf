package occupancy

import (
	"time"

	"github.com/google/uuid"
)

// Bed is the unit of physical occupancy. Beds live inside their room's
// record and are never addressed independently: all mutation goes through
// BedAllocator under the room's lock and version.
type Bed struct {
	Number     string     `json:"number"`
	Occupied   bool       `json:"occupied"`
	PatientID  *uuid.UUID `json:"patient_id,omitempty"`
	AdmittedAt *time.Time `json:"admitted_at,omitempty"`
}

type Room struct {
	ID           uuid.UUID
	Number       string
	Type         string
	DepartmentID uuid.UUID
	Floor        int
	BedCount     int
	Beds         []Bed
	// AvailableBeds is derived: recomputed from Beds after every mutation,
	// never incremented in place, so it cannot drift from the bed list.
	AvailableBeds int
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FindBed returns a pointer into r.Beds for the given bed number, or nil.
func (r *Room) FindBed(number string) *Bed {
	for i := range r.Beds {
		if r.Beds[i].Number == number {
			return &r.Beds[i]
		}
	}
	return nil
}

// RecomputeAvailable recounts unoccupied beds from the authoritative list.
func (r *Room) RecomputeAvailable() {
	free := 0
	for i := range r.Beds {
		if !r.Beds[i].Occupied {
			free++
		}
	}
	r.AvailableBeds = free
}
