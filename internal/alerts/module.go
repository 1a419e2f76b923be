package alerts

import (
	"time"

	"fleet_service_backend/internal/events"
	apphttp "fleet_service_backend/internal/http"
	"fleet_service_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module wires the alert feed.
type Module struct {
	svc     *Service
	handler *Handler
}

// NewModule creates the alerts module backed by Postgres.
func NewModule(pool *pgxpool.Pool, pollInterval time.Duration, log *logger.Logger) *Module {
	svc := NewService(NewRepository(pool), log)
	return &Module{svc: svc, handler: NewHandler(svc, pollInterval)}
}

// Name returns the module name for logging
func (m *Module) Name() string { return "alerts" }

// RegisterHandlers subscribes the module to domain events.
func (m *Module) RegisterHandlers(bus events.Bus) { m.svc.RegisterHandlers(bus) }

// RegisterRoutes registers the module's routes under /api/v1/alerts
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/alerts"))
}

var _ apphttp.Module = (*Module)(nil)
