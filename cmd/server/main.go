package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/carshare-deposits/internal/config"
	"github.com/iliyamo/carshare-deposits/internal/database"
	"github.com/iliyamo/carshare-deposits/internal/gateway"
	"github.com/iliyamo/carshare-deposits/internal/handler"
	"github.com/iliyamo/carshare-deposits/internal/lock"
	"github.com/iliyamo/carshare-deposits/internal/middleware"
	"github.com/iliyamo/carshare-deposits/internal/queue"
	"github.com/iliyamo/carshare-deposits/internal/release"
	"github.com/iliyamo/carshare-deposits/internal/repository"
	"github.com/iliyamo/carshare-deposits/internal/router"
	"github.com/iliyamo/carshare-deposits/internal/runlog"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	config.SetupLogger(cfg.Env)

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass,
		Host: cfg.DBHost, Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable; per-booking lock and rate limiting disabled")
	} else {
		defer rdb.Close()
	}

	if cfg.StripeSecretKey == "" {
		log.Warn().Msg("STRIPE_SECRET_KEY not set; card refunds will fail and bookings stay eligible")
	}
	cards := gateway.NewStripeGateway(gateway.StripeConfig{
		SecretKey: cfg.StripeSecretKey,
		Timeout:   cfg.GatewayTimeout,
		BaseURL:   cfg.StripeBaseURL,
	})

	dispatcher := queue.NewDispatcher(queue.NewPublisher(cfg.AMQPURL), cfg.NotifyQueueBuffer, cfg.NotifyPublishAttempts)
	dispatcher.Start()
	defer dispatcher.Close()

	orch := release.NewOrchestrator(repository.NewReleaseStore(db), cards, dispatcher).
		WithLocker(lock.NewRedisLocker(rdb)).
		WithBatchSize(cfg.BatchSize).
		WithLockTTL(cfg.LockTTL)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.Recover())

	auth := middleware.CronAuthConfig{
		Secret:       cfg.CronSecret,
		SecretBcrypt: cfg.CronSecretBcrypt,
		JWTSecret:    cfg.AdminJWTSecret,
	}
	router.RegisterRoutes(e)
	router.RegisterCron(e, handler.NewDepositReleaseHandler(orch), auth, config.LoadRateLimitConfig(), rdb)

	journal, err := runlog.Open(cfg.RunJournalPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.RunJournalPath).Msg("run journal unavailable; run history disabled")
	} else {
		defer journal.Close()
		orch.WithJournal(journal)
		router.RegisterAdmin(e, handler.NewRunsHandler(journal), auth)
	}

	var sched *release.Scheduler
	if cfg.SchedulerEnabled {
		sched = release.NewScheduler(orch, cfg.SchedulerInterval)
		sched.Start()
	}

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	if sched != nil {
		sched.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("server stopped")
}
