package hospital

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardline/hospital-ops/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var specialty *string

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Role,
		&specialty,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	u.Specialty = specialty
	return &u, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var assignedRoom *uuid.UUID
	var admittedAt, dischargedAt *time.Time

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Status,
		&assignedRoom,
		&admittedAt,
		&dischargedAt,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.AssignedRoom = assignedRoom
	p.AdmittedAt = admittedAt
	p.DischargedAt = dischargedAt
	return &p, nil
}

func (r *PgRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, role, specialty, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, status, assigned_room, admitted_at, discharged_at, version, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) UpdatePatientAdmission(ctx context.Context, id uuid.UUID, expectedVersion int64, upd PatientUpdate) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE patients
		SET status = $3,
		    assigned_room = $4,
		    admitted_at = $5,
		    discharged_at = $6,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		RETURNING id, name, status, assigned_room, admitted_at, discharged_at, version, created_at, updated_at
	`, id, expectedVersion, upd.Status, upd.AssignedRoom, upd.AdmittedAt, upd.DischargedAt)

	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			// Distinguish a stale version from a truly absent patient.
			if _, getErr := r.GetPatientByID(ctx, id); getErr == nil {
				return nil, db.ErrVersionConflict
			}
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return p, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
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
