package notification

import (
	"context"
	"errors"
	"fmt"

	"fleet_service_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Contact is the fleet account a notification goes to.
type Contact struct {
	CustomerName string
	ContactName  string
	Email        string
}

// Greeting is the name used to open an email.
func (c Contact) Greeting() string {
	if c.ContactName != "" {
		return c.ContactName
	}
	return c.CustomerName
}

// ContactReader resolves a fleet account's notification contact.
type ContactReader interface {
	GetContact(ctx context.Context, customerID uuid.UUID) (Contact, error)
}

// ContactRepository reads contacts from the customers table.
type ContactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository creates a ContactRepository.
func NewContactRepository(pool *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{pool: pool}
}

func (r *ContactRepository) GetContact(ctx context.Context, customerID uuid.UUID) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `
		SELECT name, contact_name, email FROM customers WHERE id = $1`, customerID,
	).Scan(&c.CustomerName, &c.ContactName, &c.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, apperr.NotFound("customer not found")
	}
	if err != nil {
		return Contact{}, fmt.Errorf("failed to get customer contact: %w", err)
	}
	return c, nil
}
