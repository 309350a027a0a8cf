package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardline/hospital-ops/internal/config"
	"github.com/wardline/hospital-ops/internal/db"
)

// The simulator hammers the booking and admission endpoints with overlapping
// requests. Besides latency numbers, the conflict/success split is a live
// check of the one-winner guarantees: overlapping bookings for one doctor and
// competing assignments of one bed must each produce a single success.

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	AdmitRatio   float64
	SlotsRatio   float64
	PatientLimit int
	DoctorLimit  int
	RoomLimit    int
	PostgresDSN  string
}

type bedRef struct {
	RoomID    uuid.UUID
	BedNumber string
}

type admissionRef struct {
	PatientID uuid.UUID
	Bed       bedRef
}

type DataPool struct {
	Patients []uuid.UUID
	Doctors  []uuid.UUID
	Beds     []bedRef

	mu         sync.RWMutex
	admissions []admissionRef
	actorID    uuid.UUID
}

func (dp *DataPool) AddAdmission(ref admissionRef) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.admissions = append(dp.admissions, ref)
}

func (dp *DataPool) TakeRandomAdmission(rng *rand.Rand) (admissionRef, bool) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if len(dp.admissions) == 0 {
		return admissionRef{}, false
	}
	idx := rng.Intn(len(dp.admissions))
	ref := dp.admissions[idx]
	dp.admissions = append(dp.admissions[:idx], dp.admissions[idx+1:]...)
	return ref, true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]

	p50Idx := len(latencies) * 50 / 100
	if p50Idx >= len(latencies) {
		p50Idx = len(latencies) - 1
	}
	p50 = latencies[p50Idx]

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	p95 = latencies[p95Idx]

	return avg, min, max, p50, p95
}

type Metrics struct {
	Booking   OperationMetrics
	Admit     OperationMetrics
	Discharge OperationMetrics
	Slots     OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f admit=%.2f slots=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.AdmitRatio, cfg.SlotsRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d patients, %d doctors, %d beds",
		len(dataPool.Patients), len(dataPool.Doctors), len(dataPool.Beds))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		AdmitRatio:   getFloat("SIM_ADMIT_RATIO", 0.3),
		SlotsRatio:   getFloat("SIM_SLOTS_RATIO", 0.2),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 2000),
		DoctorLimit:  getInt("SIM_DOCTOR_LIMIT", 20),
		RoomLimit:    getInt("SIM_ROOM_LIMIT", 40),
		PostgresDSN:  baseCfg.PostgresDSN,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.AdmitRatio + cfg.SlotsRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.AdmitRatio /= total
		cfg.SlotsRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT id FROM patients WHERE status = 'active' LIMIT $1
	`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Patients = append(dataPool.Patients, id)
	}

	// A small doctor pool concentrates bookings and provokes conflicts.
	rows, err = pool.Query(ctx, `
		SELECT id FROM users WHERE role = 'doctor' LIMIT $1
	`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dataPool.Doctors = append(dataPool.Doctors, id)
	}

	rows, err = pool.Query(ctx, `
		SELECT id, beds FROM rooms LIMIT $1
	`, cfg.RoomLimit)
	if err != nil {
		return nil, fmt.Errorf("load rooms: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roomID uuid.UUID
		var bedsJSON []byte
		if err := rows.Scan(&roomID, &bedsJSON); err != nil {
			return nil, err
		}
		var beds []struct {
			Number string `json:"number"`
		}
		if err := json.Unmarshal(bedsJSON, &beds); err != nil {
			return nil, fmt.Errorf("decode beds for room %s: %w", roomID, err)
		}
		for _, b := range beds {
			dataPool.Beds = append(dataPool.Beds, bedRef{RoomID: roomID, BedNumber: b.Number})
		}
	}

	var staffID uuid.UUID
	err = pool.QueryRow(ctx, `SELECT id FROM users WHERE role = 'staff' LIMIT 1`).Scan(&staffID)
	if err != nil {
		return nil, fmt.Errorf("load staff actor: %w", err)
	}
	dataPool.actorID = staffID

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded")
	}
	if len(dataPool.Beds) == 0 {
		return nil, fmt.Errorf("no beds loaded")
	}

	return dataPool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.AdmitRatio:
				// Alternate between admitting and discharging so beds churn.
				if rng.Intn(2) == 0 {
					s.doAdmit(ctx, rng)
				} else {
					s.doDischarge(ctx, rng)
				}
			default:
				s.doListSlots(ctx, rng)
			}
		}
	}
}

func (s *Simulator) newRequest(ctx context.Context, method, url string, body []byte) *http.Request {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, _ := http.NewRequestWithContext(ctx, method, url, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Actor-ID", s.pool.actorID.String())
	req.Header.Set("X-Actor-Role", "staff")
	return req
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	// Tomorrow's grid, 16 half-hour starts: few enough that workers collide.
	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	slot := rng.Intn(16)
	startTime := fmt.Sprintf("%02d:%02d", 9+slot/2, (slot%2)*30)

	reqBody, _ := json.Marshal(map[string]any{
		"patient_id":    patientID.String(),
		"doctor_id":     doctorID.String(),
		"department_id": uuid.New().String(),
		"date":          date,
		"start_time":    startTime,
		"reason":        "load test",
	})

	start := time.Now()
	resp, err := s.client.Do(s.newRequest(ctx, "POST", s.config.APIBaseURL+"/appointments", reqBody))
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		success = resp.StatusCode == http.StatusCreated
		conflict = resp.StatusCode == http.StatusConflict
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doAdmit(ctx context.Context, rng *rand.Rand) {
	bed := s.pool.Beds[rng.Intn(len(s.pool.Beds))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	reqBody, _ := json.Marshal(map[string]string{
		"patient_id": patientID.String(),
		"room_id":    bed.RoomID.String(),
		"bed_number": bed.BedNumber,
	})

	start := time.Now()
	resp, err := s.client.Do(s.newRequest(ctx, "POST", s.config.APIBaseURL+"/admissions", reqBody))
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode == http.StatusCreated {
			success = true
			s.pool.AddAdmission(admissionRef{PatientID: patientID, Bed: bed})
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.Admit.Record(latency, success, conflict)
}

func (s *Simulator) doDischarge(ctx context.Context, rng *rand.Rand) {
	ref, ok := s.pool.TakeRandomAdmission(rng)
	if !ok {
		return
	}

	reqBody, _ := json.Marshal(map[string]string{
		"patient_id": ref.PatientID.String(),
		"room_id":    ref.Bed.RoomID.String(),
		"bed_number": ref.Bed.BedNumber,
	})

	start := time.Now()
	resp, err := s.client.Do(s.newRequest(ctx, "POST", s.config.APIBaseURL+"/discharges", reqBody))
	latency := time.Since(start)

	success := false
	conflict := false

	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
		conflict = resp.StatusCode == http.StatusConflict
	}

	s.metrics.Discharge.Record(latency, success, conflict)
}

func (s *Simulator) doListSlots(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	date := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	start := time.Now()
	resp, err := s.client.Do(s.newRequest(ctx, "GET",
		fmt.Sprintf("%s/doctors/%s/slots?date=%s", s.config.APIBaseURL, doctorID, date), nil))
	latency := time.Since(start)

	success := false
	if err == nil {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}

	s.metrics.Slots.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Admit", &s.metrics.Admit)
	printOperationReport("Discharge", &s.metrics.Discharge)
	printOperationReport("List Slots", &s.metrics.Slots)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
