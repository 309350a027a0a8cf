package occupancy

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/wardline/hospital-ops/internal/hospital"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrBedNotFound  = errors.New("bed not found in room")

	// ErrBedOccupied means the target bed already holds a patient; the
	// caller should pick another bed.
	ErrBedOccupied = errors.New("bed is already occupied")

	// ErrStateMismatch means recorded occupancy disagrees with what the
	// caller expected (wrong patient in the bed, patient assigned to a
	// different room). Unlike ErrBedOccupied this signals a consistency bug
	// upstream, not a normal booking race.
	ErrStateMismatch = errors.New("occupancy state does not match expected")
)

// Repository contains the room/bed DB interactions needed by the allocator.
type Repository interface {
	GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error)

	// UpdateRoom writes the room's full bed list and derived counter,
	// conditional on expectedVersion; a mismatch yields db.ErrVersionConflict.
	UpdateRoom(ctx context.Context, room *Room, expectedVersion int64) (*Room, error)

	InsertEvent(ctx context.Context, ev hospital.EventLog) error
}
