package occupancy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardline/hospital-ops/internal/db"
	"github.com/wardline/hospital-ops/internal/hospital"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanRoom(row pgx.Row) (*Room, error) {
	var r Room
	var bedsJSON []byte

	err := row.Scan(
		&r.ID,
		&r.Number,
		&r.Type,
		&r.DepartmentID,
		&r.Floor,
		&r.BedCount,
		&bedsJSON,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(bedsJSON, &r.Beds); err != nil {
		return nil, fmt.Errorf("decode beds for room %s: %w", r.Number, err)
	}
	r.RecomputeAvailable()
	return &r, nil
}

func (r *PgRepository) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, room_number, room_type, department_id, floor, bed_count, beds, version, created_at, updated_at
		FROM rooms
		WHERE id = $1
	`, id)
	return scanRoom(row)
}

func (r *PgRepository) UpdateRoom(ctx context.Context, room *Room, expectedVersion int64) (*Room, error) {
	bedsJSON, err := json.Marshal(room.Beds)
	if err != nil {
		return nil, fmt.Errorf("encode beds for room %s: %w", room.Number, err)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE rooms
		SET beds = $3,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		RETURNING id, room_number, room_type, department_id, floor, bed_count, beds, version, created_at, updated_at
	`, room.ID, expectedVersion, bedsJSON)

	updated, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			// Distinguish a stale version from a truly absent room.
			if _, getErr := r.GetRoomByID(ctx, room.ID); getErr == nil {
				return nil, db.ErrVersionConflict
			}
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	return updated, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev hospital.EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.EntityID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
