package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wardline/hospital-ops/internal/occupancy"
	"github.com/wardline/hospital-ops/internal/scheduling"
)

type RouterConfig struct {
	Scheduler   *scheduling.Service
	Coordinator *occupancy.AdmissionCoordinator
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(LoggingMiddleware)

	// Health and metrics
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Appointments
	r.Post("/appointments", createAppointmentHandler(cfg.Scheduler))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Scheduler))
	r.Post("/appointments/{id}/status", transitionAppointmentHandler(cfg.Scheduler))
	r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Scheduler))
	r.Get("/doctors/{id}/slots", listSlotsHandler(cfg.Scheduler))
	r.Get("/doctors/{id}/appointments", listDoctorAppointmentsHandler(cfg.Scheduler))

	// Occupancy
	r.Post("/admissions", admitPatientHandler(cfg.Coordinator))
	r.Post("/discharges", dischargePatientHandler(cfg.Coordinator))
	r.Get("/rooms/{id}", getRoomHandler(cfg.Coordinator))

	return r
}
