package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stagebook/backend/internal/booking"
	"github.com/stagebook/backend/internal/clock"
	"github.com/stagebook/backend/internal/config"
	"github.com/stagebook/backend/internal/database"
	"github.com/stagebook/backend/internal/handler"
	"github.com/stagebook/backend/internal/middleware"
	"github.com/stagebook/backend/internal/model"
	"github.com/stagebook/backend/internal/monitoring"
	"github.com/stagebook/backend/internal/queue"
	"github.com/stagebook/backend/internal/repository"
	"github.com/stagebook/backend/internal/router"
	queue_publisher "github.com/stagebook/backend/internal/service"
	"github.com/stagebook/backend/migrations"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := migrations.Apply(ctx, db); err != nil {
		cancel()
		log.Fatalf("migrations: %v", err)
	}
	cancel()

	store := repository.NewStore(db, repository.CapacityScope(cfg.CapacityScope))
	engine := booking.NewEngine(store, clock.NewSystem())

	// The sweeper cancels stale unpaid reservations in the background.
	// Each cancellation releases its capacity slot and is reported to
	// metrics and the event queue like a manual one.
	sweeper := booking.NewSweeper(engine, store, clock.NewSystem(), cfg.GracePeriod, cfg.SweepInterval)
	sweeper.OnExpired = func(ctx context.Context, r *model.Reservation) {
		monitoring.TrackCancellation("sweeper")
		ev := queue.ReservationEvent{
			Type:          queue.EventReservationCancelled,
			ReservationID: r.ID,
			UserID:        r.UserID,
			ScheduleID:    r.ScheduleID,
			Amount:        r.Amount.StringFixed(2),
			Reason:        "expired",
			OccurredAt:    time.Now().UTC().Format(time.RFC3339),
		}
		if r.TimeSlotID != nil {
			ev.TimeSlotID = *r.TimeSlotID
		}
		_ = queue_publisher.PublishReservationEvent(ctx, ev)
	}
	sweeper.OnSweepDone = func(sum booking.SweepSummary, elapsed time.Duration) {
		monitoring.TrackSweep(elapsed.Seconds(), sum.Cancelled)
	}
	go sweeper.Start()
	defer sweeper.Stop()

	// Background consumer writes lifecycle events to logs/reservations.log.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation-consumer: %v", err)
		}
	}()

	e := echo.New()
	e.Validator = handler.NewValidator()

	// Redis-backed rate limiting; degrades to a no-op when Redis is down.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting disabled")
	}
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	users := repository.NewUserRepo(db)
	schedules := repository.NewScheduleRepo(db)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users))
	router.RegisterPublic(e, handler.NewScheduleHandler(schedules))
	router.RegisterReservations(e, handler.NewReservationHandler(engine, store), cfg.JWTSecret)
	router.RegisterManager(e, handler.NewManagerHandler(engine, store, schedules), cfg.JWTSecret)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, scope=%s)", addr, cfg.Env, cfg.CapacityScope)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
