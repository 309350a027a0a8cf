package occupancy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wardline/hospital-ops/internal/db"
	redisclient "github.com/wardline/hospital-ops/internal/redis"
)

// ErrRoomBusy surfaces when the room's lock could not be acquired within the
// locker's wait window.
var ErrRoomBusy = errors.New("room is being modified, please retry")

// writeRetries bounds re-reads after a version conflict inside the critical
// section before the operation gives up.
const writeRetries = 3

// BedAllocator owns bed-level occupancy inside a room. All bed mutations run
// under the room's lock and are committed with a version-conditional write,
// so two concurrent assignments of the same bed produce exactly one success.
type BedAllocator struct {
	repo   Repository
	locker redisclient.Locker
	now    func() time.Time
}

func NewBedAllocator(repo Repository, locker redisclient.Locker) *BedAllocator {
	return &BedAllocator{
		repo:   repo,
		locker: locker,
		now:    time.Now,
	}
}

// Assign marks the bed occupied by the patient. Fails with ErrBedNotFound if
// the room has no such bed, ErrBedOccupied if it already holds a patient.
func (b *BedAllocator) Assign(ctx context.Context, roomID uuid.UUID, bedNumber string, patientID uuid.UUID) (*Room, error) {
	return b.mutate(ctx, roomID, func(room *Room) error {
		bed := room.FindBed(bedNumber)
		if bed == nil {
			return fmt.Errorf("%w: %s in room %s", ErrBedNotFound, bedNumber, room.Number)
		}
		if bed.Occupied {
			return fmt.Errorf("%w: %s in room %s", ErrBedOccupied, bedNumber, room.Number)
		}

		now := b.now()
		bed.Occupied = true
		bed.PatientID = &patientID
		bed.AdmittedAt = &now
		return nil
	})
}

// Release frees the bed currently held by the patient. A bed held by someone
// else, or not held at all, is a state mismatch: the caller's view of the
// world has diverged from the room's.
func (b *BedAllocator) Release(ctx context.Context, roomID uuid.UUID, bedNumber string, patientID uuid.UUID) (*Room, error) {
	return b.mutate(ctx, roomID, func(room *Room) error {
		bed := room.FindBed(bedNumber)
		if bed == nil {
			return fmt.Errorf("%w: %s in room %s", ErrBedNotFound, bedNumber, room.Number)
		}
		if !bed.Occupied || bed.PatientID == nil || *bed.PatientID != patientID {
			return fmt.Errorf("%w: bed %s in room %s", ErrStateMismatch, bedNumber, room.Number)
		}

		bed.Occupied = false
		bed.PatientID = nil
		bed.AdmittedAt = nil
		return nil
	})
}

// reoccupy puts a bed back into its pre-release state during a discharge
// rollback, carrying the original admission timestamp instead of stamping a
// fresh one.
func (b *BedAllocator) reoccupy(ctx context.Context, roomID uuid.UUID, bedNumber string, patientID uuid.UUID, admittedAt *time.Time) (*Room, error) {
	return b.mutate(ctx, roomID, func(room *Room) error {
		bed := room.FindBed(bedNumber)
		if bed == nil {
			return fmt.Errorf("%w: %s in room %s", ErrBedNotFound, bedNumber, room.Number)
		}
		if bed.Occupied {
			return fmt.Errorf("%w: %s in room %s", ErrBedOccupied, bedNumber, room.Number)
		}

		bed.Occupied = true
		bed.PatientID = &patientID
		bed.AdmittedAt = admittedAt
		return nil
	})
}

// mutate runs change against a fresh copy of the room inside the room's
// critical section, recomputes the derived counter, and commits with a
// version-conditional write, retrying a bounded number of times on conflict.
func (b *BedAllocator) mutate(ctx context.Context, roomID uuid.UUID, change func(room *Room) error) (*Room, error) {
	var updated *Room

	err := b.locker.WithLock(ctx, roomKey(roomID), func(lockCtx context.Context) error {
		var lastErr error
		for attempt := 0; attempt < writeRetries; attempt++ {
			room, err := b.repo.GetRoomByID(lockCtx, roomID)
			if err != nil {
				return err
			}

			if err := change(room); err != nil {
				return err
			}
			room.RecomputeAvailable()

			updated, err = b.repo.UpdateRoom(lockCtx, room, room.Version)
			if err != nil {
				if errors.Is(err, db.ErrVersionConflict) {
					lastErr = err
					continue
				}
				return fmt.Errorf("update room: %w", err)
			}
			return nil
		}
		return fmt.Errorf("room %s: %w", roomID, lastErr)
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrRoomBusy
		}
		return nil, err
	}

	return updated, nil
}

func roomKey(roomID uuid.UUID) string {
	return fmt.Sprintf("room:%s", roomID)
}
