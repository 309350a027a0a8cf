package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardline/hospital-ops/internal/db"
	"github.com/wardline/hospital-ops/internal/occupancy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(context.Background(), pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	departments := make([]uuid.UUID, 8)
	for i := range departments {
		departments[i] = uuid.New()
	}

	if err := seedUsers(context.Background(), pool, 60, departments); err != nil {
		log.Fatalf("seed users: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedRooms(context.Background(), pool, 80, departments); err != nil {
		log.Fatalf("seed rooms: %v", err)
	}

	log.Println("seed complete")
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, doctorCount int, departments []uuid.UUID) error {
	log.Printf("seeding %d doctors plus staff and admin", doctorCount)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < doctorCount; i++ {
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, role, specialty, created_at, updated_at)
			VALUES ($1, $2, 'doctor', $3, now(), now())
		`, uuid.New(), gofakeit.Name(), spec)
		if err != nil {
			return err
		}
	}

	for i := 0; i < 20; i++ {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, role, specialty, created_at, updated_at)
			VALUES ($1, $2, 'staff', NULL, now(), now())
		`, uuid.New(), gofakeit.Name())
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, name, role, specialty, created_at, updated_at)
		VALUES ($1, $2, 'admin', NULL, now(), now())
	`, uuid.New(), gofakeit.Name())
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("users seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, status, version, created_at, updated_at)
				VALUES ($1, $2, 'active', 1, now(), now())
			`, uuid.New(), gofakeit.Name())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

func seedRooms(ctx context.Context, pool *pgxpool.Pool, count int, departments []uuid.UUID) error {
	log.Printf("seeding %d rooms", count)

	roomTypes := []string{"general", "private", "icu", "maternity"}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		floor := i/20 + 1
		number := fmt.Sprintf("R%d%02d", floor, i%20+1)
		bedCount := gofakeit.Number(1, 4)

		beds := make([]occupancy.Bed, bedCount)
		for b := range beds {
			beds[b] = occupancy.Bed{Number: fmt.Sprintf("%s-%d", number, b+1)}
		}
		bedsJSON, err := json.Marshal(beds)
		if err != nil {
			return err
		}

		dept := departments[gofakeit.Number(0, len(departments)-1)]
		roomType := roomTypes[gofakeit.Number(0, len(roomTypes)-1)]

		_, err = tx.Exec(ctx, `
			INSERT INTO rooms (id, room_number, room_type, department_id, floor, bed_count, beds, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 1, now(), now())
		`, uuid.New(), number, roomType, dept, floor, bedCount, bedsJSON)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("rooms seeded")
	return nil
}
