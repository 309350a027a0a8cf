package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/wardline/hospital-ops/internal/api"
	"github.com/wardline/hospital-ops/internal/config"
	"github.com/wardline/hospital-ops/internal/db"
	"github.com/wardline/hospital-ops/internal/hospital"
	"github.com/wardline/hospital-ops/internal/occupancy"
	redisclient "github.com/wardline/hospital-ops/internal/redis"
	"github.com/wardline/hospital-ops/internal/scheduling"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	migrateCtx, cancelMigrate := context.WithTimeout(rootCtx, 30*time.Second)
	err = db.Migrate(migrateCtx, pgPool)
	cancelMigrate()
	if err != nil {
		log.Fatalf("migration error: %v", err)
	}
	log.Println("migrations applied")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	cal, err := buildCalendar(cfg)
	if err != nil {
		log.Fatalf("business hours config error: %v", err)
	}

	locker := redisclient.NewRedisKeyLocker(rdb, cfg.LockTTL, cfg.LockWait)
	people := hospital.NewPgRepository(pgPool)
	scheduler := scheduling.NewService(scheduling.NewPgRepository(pgPool), people, locker, cal, cfg.DefaultDurationMin)
	allocator := occupancy.NewBedAllocator(occupancy.NewPgRepository(pgPool), locker)
	coordinator := occupancy.NewAdmissionCoordinator(allocator, people)

	handler := api.NewRouter(api.RouterConfig{
		Scheduler:   scheduler,
		Coordinator: coordinator,
		PgPool:      pgPool,
		Redis:       rdb,
		Env:         cfg.Env,
		Version:     version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func buildCalendar(cfg config.Config) (scheduling.Calendar, error) {
	start, err := scheduling.ParseTimeOfDay(cfg.BusinessDayStart)
	if err != nil {
		return scheduling.Calendar{}, err
	}
	end, err := scheduling.ParseTimeOfDay(cfg.BusinessDayEnd)
	if err != nil {
		return scheduling.Calendar{}, err
	}

	return scheduling.Calendar{
		Hours:          scheduling.BusinessHours{Start: start, End: end},
		GranularityMin: cfg.SlotGranularityMin,
	}, nil
}
