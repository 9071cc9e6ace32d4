package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/careflow/clinic-scheduling/internal/api/router"
	"github.com/careflow/clinic-scheduling/internal/appointment"
	appconfig "github.com/careflow/clinic-scheduling/internal/config"
	"github.com/careflow/clinic-scheduling/internal/directory"
	"github.com/careflow/clinic-scheduling/internal/events"
	"github.com/careflow/clinic-scheduling/internal/http/middleware"
	"github.com/careflow/clinic-scheduling/internal/notify"
	"github.com/careflow/clinic-scheduling/internal/observability/metrics"
	"github.com/careflow/clinic-scheduling/internal/ops"
	"github.com/careflow/clinic-scheduling/internal/payments"
	"github.com/careflow/clinic-scheduling/internal/promotion"
	"github.com/careflow/clinic-scheduling/internal/scheduling"
	"github.com/careflow/clinic-scheduling/internal/waitlist"
	"github.com/careflow/clinic-scheduling/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-scheduling API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		apptRepo      appointment.Repository
		waitlistRepo  waitlist.Repository
		directoryRepo directory.Repository
		outbox        *events.OutboxStore
		reportRepo    *ops.ReportRepository
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		apptRepo = appointment.NewPostgresRepository(pool)
		waitlistRepo = waitlist.NewPostgresRepository(pool)
		directoryRepo = directory.NewPostgresRepository(pool)
		outbox = events.NewOutboxStore(pool)

		// Reporting runs aggregate queries through database/sql.
		reportDB, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open reporting connection", "error", err)
			os.Exit(1)
		}
		defer reportDB.Close()
		reportRepo = ops.NewReportRepository(reportDB)

		logger.Info("using postgres storage")
	} else {
		apptRepo = appointment.NewInMemoryRepository()
		waitlistRepo = waitlist.NewInMemoryRepository()
		directoryRepo = directory.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set, using in-memory storage")
	}

	// Offer state and rate limiting: Redis when reachable, in-process
	// fallbacks otherwise.
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, using in-process fallbacks", "error", err)
		} else {
			redisClient = client
			defer client.Close()
		}
	}

	var offerStore promotion.OfferStore
	var bookingLimiter middleware.Limiter
	if redisClient != nil {
		offerStore = promotion.NewRedisOfferStore(redisClient)
		bookingLimiter = middleware.NewRedisLimiter(redisClient, cfg.BookingRateLimit, cfg.BookingRateWindow, logger)
	} else {
		offerStore = promotion.NewInMemoryOfferStore()
		bookingLimiter = middleware.NewLocalLimiter(
			float64(cfg.BookingRateLimit)/cfg.BookingRateWindow.Seconds(),
			cfg.BookingRateLimit,
		)
	}

	m := metrics.NewSchedulingMetrics(prometheus.DefaultRegisterer)

	// Payment strategies. Card and insurance settle through the external
	// gateway; cash settles at the front desk.
	gateway := payments.NewGatewayClient(cfg.PaymentGatewayURL, cfg.PaymentGatewayKey, cfg.PaymentGatewayTimeout, logger)
	dispatcher := payments.NewDispatcher(logger).
		Register(payments.MethodCard, payments.NewCardStrategy(gateway)).
		Register(payments.MethodInsurance, payments.NewInsuranceStrategy(gateway)).
		Register(payments.MethodCash, payments.NewCashStrategy(logger))

	directorySvc := directory.NewService(directoryRepo, logger)
	amounts := payments.NewAmountResolver(directorySvc, cfg.DefaultConsultationFee, logger)

	var recorder appointment.EventRecorder
	var queueRecorder waitlist.EventRecorder
	var engineRecorder promotion.EventRecorder
	if outbox != nil {
		recorder = outbox
		queueRecorder = outbox
		engineRecorder = outbox
	}

	tracker := scheduling.NewCapacityTracker(cfg.DefaultDailyCapacity, logger)
	apptSvc := appointment.NewService(apptRepo, tracker, dispatcher, amounts, recorder, m, logger)
	queue := waitlist.NewQueue(waitlistRepo, queueRecorder, logger).WithMetrics(m)

	if err := directorySvc.ApplyCapacityOverrides(ctx, tracker); err != nil {
		logger.Error("failed to apply doctor capacity overrides", "error", err)
		os.Exit(1)
	}
	if err := apptSvc.PrimeCapacity(ctx); err != nil {
		logger.Error("failed to prime capacity from stored appointments", "error", err)
		os.Exit(1)
	}

	sender := notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}
	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(sender, logger); sg != nil {
		emailSender = sg
	}
	notifySvc := notify.NewService(emailSender, directorySvc, cfg.PublicBaseURL, logger)

	engine := promotion.NewEngine(queue, apptSvc, tracker, offerStore, cfg.OfferWindow, logger,
		promotion.WithAutoApprove(cfg.PromoteToApproved),
		promotion.WithNotifier(notifySvc),
		promotion.WithRecorder(engineRecorder),
		promotion.WithMetrics(m),
	)
	apptSvc.SetPromoter(engine)

	// Background loops: expired-offer sweeps and outbox delivery.
	go promotion.NewWorker(engine, cfg.OfferSweepInterval, m, logger).Start(ctx)
	if outbox != nil {
		deliverer := events.NewDeliverer(outbox, events.NewLogHandler(logger), logger).
			WithBatchSize(int32(cfg.OutboxBatchSize)).
			WithInterval(cfg.OutboxPollInterval)
		go deliverer.Start(ctx)
	}

	// Initialize handlers
	apptHandler := appointment.NewHandler(apptSvc, logger)
	waitlistHandler := waitlist.NewHandler(queue, logger)
	offerHandler := promotion.NewHandler(engine, logger)
	directoryHandler := directory.NewHandler(directorySvc, tracker, logger)
	opsHandler := ops.NewHandler(reportRepo, prometheus.DefaultGatherer, logger)

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		AppointmentHandler: apptHandler,
		WaitlistHandler:    waitlistHandler,
		OfferHandler:       offerHandler,
		DirectoryHandler:   directoryHandler,
		OpsHandler:         opsHandler,
		MetricsHandler:     promhttp.Handler(),
		AuthSecret:         cfg.StaffJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		BookingLimiter:     bookingLimiter,
	}
	r := router.New(routerCfg)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
