package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleet_service_backend/internal/adapters/storage"
	"fleet_service_backend/internal/alerts"
	"fleet_service_backend/internal/email"
	"fleet_service_backend/internal/events"
	"fleet_service_backend/internal/notification"
	"fleet_service_backend/internal/scheduler"
	"fleet_service_backend/internal/servicerequests"
	"fleet_service_backend/platform/config"
	"fleet_service_backend/platform/db"
	"fleet_service_backend/platform/logger"
	"fleet_service_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	sender, err := email.NewSender(cfg)
	if err != nil {
		log.Error("failed to initialize email sender", "error", err)
		panic("failed to initialize email sender: " + err.Error())
	}

	// Worker-side lifecycle wiring (no HTTP handlers required). Retries that
	// fail again are re-queued through the same client.
	serviceRequestsModule, err := servicerequests.NewModule(pool, eventBus, validator.New(), cfg, client, log)
	if err != nil {
		log.Error("failed to initialize service requests module", "error", err)
		panic("failed to initialize service requests module: " + err.Error())
	}

	alerts.NewModule(pool, cfg.GetAlertPollInterval(), log).RegisterHandlers(eventBus)

	notificationModule := notification.New(
		notification.NewContactRepository(pool),
		serviceRequestsModule.Repository(),
		sender,
		serviceRequestsModule.Checklist(),
		cfg,
		log,
	)
	notificationModule.SetReminderScheduler(client)
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		notificationModule.SetStorage(storageSvc)
	}
	notificationModule.RegisterHandlers(eventBus)

	worker, err := scheduler.NewWorker(cfg, serviceRequestsModule.Negotiator(), serviceRequestsModule.Repository(), eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	eventBus.Wait()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
