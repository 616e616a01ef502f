package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-seat-booking/internal/client"
	"github.com/iliyamo/event-seat-booking/internal/config"
	"github.com/iliyamo/event-seat-booking/internal/database"
	"github.com/iliyamo/event-seat-booking/internal/handler"
	"github.com/iliyamo/event-seat-booking/internal/idempotency"
	"github.com/iliyamo/event-seat-booking/internal/logging"
	"github.com/iliyamo/event-seat-booking/internal/metrics"
	"github.com/iliyamo/event-seat-booking/internal/middleware"
	"github.com/iliyamo/event-seat-booking/internal/queue"
	"github.com/iliyamo/event-seat-booking/internal/repository"
	"github.com/iliyamo/event-seat-booking/internal/router"
	"github.com/iliyamo/event-seat-booking/internal/service"
	"github.com/iliyamo/event-seat-booking/internal/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	log := logrus.WithField("env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()
	if cfg.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("schema migration failed")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	// Seat ledger: the local MySQL table unless a remote event service owns it.
	var (
		seats  service.SeatLedger
		events *handler.EventHandler
	)
	if cfg.EventServiceURL != "" {
		seats = client.NewEventClient(cfg.EventServiceURL, cfg.InternalAPIKey, cfg.HTTPTimeout)
		log.WithField("url", cfg.EventServiceURL).Info("using remote seat ledger")
	} else {
		local := service.NewSeatService(repository.NewEventRepo(db), m)
		seats = local
		events = handler.NewEventHandler(local)
	}

	var verifier middleware.Verifier
	if cfg.IdentityURL != "" {
		verifier = client.NewIdentityClient(cfg.IdentityURL, cfg.HTTPTimeout)
	} else {
		verifier = utils.NewJWTVerifier(cfg.JWTSecret)
	}

	var notifier service.Notifier = queue.LogNotifier{}
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL, cfg.NotificationQueue)
		defer pub.Close()
		notifier = pub
	} else {
		log.Warn("RABBITMQ_URL not set, notifications are only logged")
	}

	bookings := service.NewBookingService(seats, repository.NewBookingRepo(db), notifier,
		service.WithMetrics(m),
		service.WithNotifyTimeout(cfg.NotifyTimeout),
		service.WithReleaseRetries(cfg.ReleaseRetries),
	)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CorrelationID(), middleware.RequestLogger())
	router.Register(e, router.Deps{
		Bookings:    handler.NewBookingHandler(bookings, idempotency.New(rdb, config.LoadIdempotencyConfig())),
		Events:      events,
		Verifier:    verifier,
		InternalKey: cfg.InternalAPIKey,
		Redis:       rdb,
		RateLimit:   config.LoadRateLimitConfig(),
		Cache:       config.LoadCacheConfig(),
		Gatherer:    reg,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.WithField("addr", addr).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return bookings.RunSweeper(logging.ToContext(gctx, log), cfg.PromotionSweepInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := e.Shutdown(shutdownCtx)
		if drainErr := bookings.Drain(shutdownCtx); drainErr != nil {
			log.WithError(drainErr).Warn("pending notifications dropped")
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped with error")
		os.Exit(1)
	}
	log.Info("server stopped")
}
