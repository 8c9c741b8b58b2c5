package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/config"
	"github.com/iliyamo/seat-booking/internal/database"
	"github.com/iliyamo/seat-booking/internal/handler"
	"github.com/iliyamo/seat-booking/internal/logging"
	"github.com/iliyamo/seat-booking/internal/middleware"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/repository"
	"github.com/iliyamo/seat-booking/internal/router"
	"github.com/iliyamo/seat-booking/internal/scheduler"
	"github.com/iliyamo/seat-booking/internal/service"
	"github.com/iliyamo/seat-booking/internal/utils"
)

func main() {
	cfg := config.Load()
	log := logging.Init(cfg.LogLevel, cfg.LogFormat, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initial, err := repository.NewReadOnlyFileStore(cfg.InitDBFile).Load(ctx)
	if err != nil {
		log.WithError(err).Fatalf("cannot load initial snapshot %s", cfg.InitDBFile)
	}
	store, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	hash, err := utils.HashPassword(cfg.ResetPassword, cfg.BcryptCost)
	if err != nil {
		log.WithError(err).Fatal("cannot hash reset password")
	}

	rdb := config.NewRedisClient()
	cacheCfg := config.LoadCacheConfig()
	opts := []service.Option{
		service.WithResetPasswordHash(hash),
		service.WithLogger(log.WithField("component", "booking-service")),
	}
	if purger := middleware.NewCachePurger(cacheCfg, rdb); purger != nil {
		opts = append(opts, service.WithCacheInvalidator(purger))
	}
	if cfg.EventsEnabled {
		opts = append(opts, service.WithPublisher(queue.NewPublisher(cfg.RabbitMQURL, log)))
	}

	svc, err := service.NewBookingService(ctx, store, initial, opts...)
	if err != nil {
		log.WithError(err).Fatal("cannot start booking service")
	}

	if cfg.ConsumerEnabled {
		consumer := &queue.BookingConsumer{URL: cfg.RabbitMQURL, LogDir: cfg.BookingLogDir, Log: log}
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("booking consumer stopped")
			}
		}()
	}

	resets, err := scheduler.NewResetScheduler(svc, scheduler.ResetInterval, log)
	if err != nil {
		log.WithError(err).Fatal("cannot schedule resets")
	}
	resets.Start()

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log.WithField("component", "http")))

	router.RegisterRoutes(e)
	router.RegisterBooking(e,
		handler.NewBookingHandler(svc, log),
		middleware.NewRedisCache(cacheCfg, rdb),
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
	)

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "driver": cfg.SnapshotDriver}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if err := resets.Shutdown(); err != nil {
		log.WithError(err).Warn("scheduler shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

// openStore returns the live snapshot store selected by SNAPSHOT_DRIVER and
// a function that releases it.
func openStore(ctx context.Context, cfg config.Config, log *logrus.Entry) (repository.SnapshotStore, func()) {
	switch cfg.SnapshotDriver {
	case config.DriverMySQL:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.WithError(err).Fatal("cannot connect to mysql")
		}
		store := repository.NewMySQLStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			log.WithError(err).Fatal("cannot prepare snapshot table")
		}
		return store, func() { _ = db.Close() }
	case config.DriverMemory:
		return repository.NewMemoryStore(), func() {}
	default:
		return repository.NewFileStore(cfg.DBFile), func() {}
	}
}
