package alerts

import (
	"context"
	"fmt"
	"time"

	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const alertColumns = `id, recipient_id, audience, customer_id, request_id, kind, message, created_at, read_at`

// visibleTo matches the rules of Alert.Visible; $1 user, $2 role, $3 customer.
const visibleTo = `(recipient_id = $1 OR (recipient_id IS NULL AND audience = $2 AND (audience <> 'customer' OR customer_id = $3)))`

// Store persists alerts.
type Store interface {
	Insert(ctx context.Context, alerts []Alert) error
	ListFor(ctx context.Context, v Viewer, since time.Time, limit int) ([]Alert, error)
	MarkRead(ctx context.Context, v Viewer, id uuid.UUID, at time.Time) error
}

// Repository provides database operations for alerts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new alerts repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes alerts in one batch.
func (r *Repository) Insert(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, a := range alerts {
		_, err := tx.Exec(ctx, `
			INSERT INTO alerts (`+alertColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			a.ID, a.RecipientID, string(a.Audience), a.CustomerID, a.RequestID, string(a.Kind), a.Message, a.CreatedAt, a.ReadAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit alerts: %w", err)
	}
	return nil
}

// ListFor returns the alerts v may see created after since, oldest first.
func (r *Repository) ListFor(ctx context.Context, v Viewer, since time.Time, limit int) ([]Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts
		WHERE ` + visibleTo + ` AND created_at > $4
		ORDER BY created_at, id
		LIMIT $5`

	rows, err := r.pool.Query(ctx, query, v.UserID, string(v.Role), v.CustomerID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	items := make([]Alert, 0, limit)
	for rows.Next() {
		var a Alert
		var audience, kind string
		if err := rows.Scan(&a.ID, &a.RecipientID, &audience, &a.CustomerID, &a.RequestID, &kind, &a.Message, &a.CreatedAt, &a.ReadAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Audience = domain.Role(audience)
		a.Kind = Kind(kind)
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return items, nil
}

// MarkRead stamps an alert v may see as read.
func (r *Repository) MarkRead(ctx context.Context, v Viewer, id uuid.UUID, at time.Time) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE alerts SET read_at = COALESCE(read_at, $4)
		WHERE `+visibleTo+` AND id = $5`,
		v.UserID, string(v.Role), v.CustomerID, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("alert not found")
	}
	return nil
}
