// Package servicerequests provides the service request lifecycle module.
package servicerequests

import (
	"fmt"

	"fleet_service_backend/internal/events"
	apphttp "fleet_service_backend/internal/http"
	"fleet_service_backend/internal/servicerequests/bulk"
	"fleet_service_backend/internal/servicerequests/handler"
	"fleet_service_backend/internal/servicerequests/inspection"
	"fleet_service_backend/internal/servicerequests/lifecycle"
	"fleet_service_backend/internal/servicerequests/repository"
	"fleet_service_backend/internal/servicerequests/scheduling"
	"fleet_service_backend/internal/servicerequests/transport"
	"fleet_service_backend/platform/config"
	"fleet_service_backend/platform/logger"
	"fleet_service_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the service requests domain module
type Module struct {
	handler    *handler.Handler
	repo       *repository.Repository
	engine     *lifecycle.Engine
	negotiator *scheduling.Negotiator
	bulk       *bulk.Coordinator
	codec      *inspection.Codec
}

// NewModule creates a new service requests module with all dependencies wired.
// retry may be nil, in which case failed bulk items are only reported.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, cfg config.LifecycleConfig, retry bulk.RetryQueue, log *logger.Logger) (*Module, error) {
	codec, err := NewCodec(cfg)
	if err != nil {
		return nil, err
	}
	if err := transport.RegisterValidators(val); err != nil {
		return nil, fmt.Errorf("failed to register service request validators: %w", err)
	}

	repo := repository.New(pool)
	engine := lifecycle.NewEngine(repo, lifecycle.NewDecider(codec, cfg.GetPhoneDefaultRegion()), bus, log)
	negotiator := scheduling.New(engine)
	coordinator := bulk.New(negotiator, repo, retry, bus, log, cfg.GetBulkScheduleConcurrency())

	return &Module{
		handler:    handler.New(engine, negotiator, coordinator, val),
		repo:       repo,
		engine:     engine,
		negotiator: negotiator,
		bulk:       coordinator,
		codec:      codec,
	}, nil
}

// NewCodec builds the inspection codec from the configured checklist file,
// or the default checklist when none is configured.
func NewCodec(cfg config.LifecycleConfig) (*inspection.Codec, error) {
	checklist, err := inspection.LoadChecklist(cfg.GetInspectionChecklistFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load inspection checklist: %w", err)
	}
	return inspection.NewCodec(checklist), nil
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "servicerequests"
}

// Engine returns the lifecycle engine.
func (m *Module) Engine() *lifecycle.Engine { return m.engine }

// Negotiator returns the scheduling negotiator.
func (m *Module) Negotiator() *scheduling.Negotiator { return m.negotiator }

// Checklist returns the inspection checklist in use.
func (m *Module) Checklist() *inspection.Checklist { return m.codec.Checklist() }

// Repository returns the service request repository.
func (m *Module) Repository() *repository.Repository { return m.repo }

// RegisterRoutes registers the module's routes under /api/v1/service-requests and /api/v1/statuses
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/service-requests"))
	m.handler.RegisterStatusRoutes(ctx.Protected.Group("/statuses"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
