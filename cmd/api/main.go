package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleet_service_backend/internal/adapters/storage"
	"fleet_service_backend/internal/alerts"
	"fleet_service_backend/internal/email"
	"fleet_service_backend/internal/events"
	apphttp "fleet_service_backend/internal/http"
	"fleet_service_backend/internal/http/router"
	"fleet_service_backend/internal/notification"
	"fleet_service_backend/internal/scheduler"
	"fleet_service_backend/internal/servicerequests"
	"fleet_service_backend/internal/servicerequests/bulk"
	"fleet_service_backend/migrations"
	"fleet_service_backend/platform/config"
	"fleet_service_backend/platform/db"
	"fleet_service_backend/platform/httpkit"
	"fleet_service_backend/platform/logger"
	"fleet_service_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const storageBucketEnsureErrPrefix = "failed to ensure storage bucket exists: "
const storageBucketEnsureErrMsg = "failed to ensure storage bucket exists"

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, name, bucket string) {
	if err := withRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error(storageBucketEnsureErrMsg, "error", err, "bucket", bucket)
		panic(storageBucketEnsureErrPrefix + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	schedulerClient, closeScheduler := initSchedulerClient(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	idempotency, closeRedis := initIdempotencyGuard(cfg, log)
	if closeRedis != nil {
		defer closeRedis()
	}

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	var retryQueue bulk.RetryQueue
	if schedulerClient != nil {
		retryQueue = schedulerClient
	}

	serviceRequestsModule, err := servicerequests.NewModule(pool, eventBus, val, cfg, retryQueue, log)
	if err != nil {
		log.Error("failed to initialize service requests module", "error", err)
		panic("failed to initialize service requests module: " + err.Error())
	}

	alertsModule := alerts.NewModule(pool, cfg.GetAlertPollInterval(), log)
	alertsModule.RegisterHandlers(eventBus)

	// Notification module subscribes to domain events (not HTTP-facing)
	notificationModule := notification.New(
		notification.NewContactRepository(pool),
		serviceRequestsModule.Repository(),
		sender,
		serviceRequestsModule.Checklist(),
		cfg,
		log,
	)
	if schedulerClient != nil {
		notificationModule.SetReminderScheduler(schedulerClient)
	}
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		ensureBucket(ctx, log, storageSvc, "inspection-reports", cfg.GetMinioBucketInspectionReports())
		notificationModule.SetStorage(storageSvc)
		log.Info("storage service initialized", "inspectionReportsBucket", cfg.GetMinioBucketInspectionReports())
	} else {
		log.Warn("MINIO_ENDPOINT not configured; inspection reports are emailed but not stored")
	}
	notificationModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:      cfg,
		Logger:      log,
		Health:      db.NewPoolAdapter(pool),
		EventBus:    eventBus,
		Idempotency: idempotency,
		Modules: []apphttp.Module{
			serviceRequestsModule,
			alertsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, waiting for event handlers")
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initSchedulerClient(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; bulk retries and visit reminders disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func initIdempotencyGuard(cfg config.IdempotencyConfig, log *logger.Logger) (*httpkit.IdempotencyGuard, func()) {
	if cfg.GetRedisURL() == "" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL; idempotency keys disabled", "error", err)
		return nil, nil
	}

	rdb := redis.NewClient(opt)
	return httpkit.NewIdempotencyGuard(rdb, cfg.GetIdempotencyTTL(), log), func() {
		_ = rdb.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
