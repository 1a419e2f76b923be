package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/internal/servicerequests/inspection"
	"fleet_service_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const serviceRequestNotFoundMsg = "service request not found"

const requestColumns = `id, status, customer_id, vehicle_id, lead_technician_id, buddy_technician_id,
	scheduled_at, title, description, notes, office_notes, key_location, shop_name, shop_phone,
	created_at, started_at, completed_at, updated_at, version`

// Repository provides database operations for service requests.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new service request repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new service request
func (r *Repository) Create(ctx context.Context, req *domain.ServiceRequest) error {
	query := `
		INSERT INTO service_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.pool.Exec(ctx, query,
		req.ID, string(req.Status), req.CustomerID, req.VehicleID, req.LeadTechnicianID, req.BuddyTechnicianID,
		req.ScheduledAt, req.Title, req.Description, req.Notes, req.OfficeNotes, req.KeyLocation, req.ShopName,
		req.ShopPhone, req.CreatedAt, req.StartedAt, req.CompletedAt, req.UpdatedAt, req.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to create service request: %w", err)
	}
	return nil
}

// Get retrieves a service request with its entries
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM service_requests WHERE id = $1`

	req, err := scanRequest(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Wrap(apperr.KindNotFound, serviceRequestNotFoundMsg, err)
		}
		return nil, fmt.Errorf("failed to get service request: %w", err)
	}

	entries, err := r.ListEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	req.Entries = entries
	return req, nil
}

// Save writes the mutation's request and its new entries in one transaction,
// provided the stored version still equals expectedVersion.
func (r *Repository) Save(ctx context.Context, m domain.Mutation, expectedVersion int) (*domain.ServiceRequest, error) {
	next := m.Request
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		UPDATE service_requests SET
			status = $3,
			lead_technician_id = $4,
			buddy_technician_id = $5,
			scheduled_at = $6,
			title = $7,
			description = $8,
			notes = $9,
			office_notes = $10,
			key_location = $11,
			shop_name = $12,
			shop_phone = $13,
			started_at = $14,
			completed_at = $15,
			updated_at = $16,
			version = version + 1
		WHERE id = $1 AND version = $2`

	result, err := tx.Exec(ctx, query,
		next.ID, expectedVersion, string(next.Status), next.LeadTechnicianID, next.BuddyTechnicianID,
		next.ScheduledAt, next.Title, next.Description, next.Notes, next.OfficeNotes, next.KeyLocation,
		next.ShopName, next.ShopPhone, next.StartedAt, next.CompletedAt, next.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update service request: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM service_requests WHERE id = $1)`, next.ID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check service request: %w", err)
		}
		if !exists {
			return nil, apperr.NotFound(serviceRequestNotFoundMsg)
		}
		return nil, domain.VersionConflict(expectedVersion)
	}

	for _, e := range m.NewEntries {
		if err := insertEntry(ctx, tx, e); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit service request: %w", err)
	}

	saved := next.Clone()
	saved.Version = expectedVersion + 1
	return saved, nil
}

// List retrieves service requests with optional filtering
func (r *Repository) List(ctx context.Context, f domain.Filter) ([]*domain.ServiceRequest, int, error) {
	baseQuery, args, argIndex := listFilter(f)

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count service requests: %w", err)
	}

	offset := (f.Page - 1) * f.PageSize
	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		requestColumns, baseQuery, argIndex, argIndex+1)
	args = append(args, f.PageSize, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list service requests: %w", err)
	}
	defer rows.Close()

	items := make([]*domain.ServiceRequest, 0, f.PageSize)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan service request: %w", err)
		}
		items = append(items, req)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate service requests: %w", err)
	}

	return items, total, nil
}

// ListEntries returns the typed entries of a request, oldest first.
func (r *Repository) ListEntries(ctx context.Context, requestID uuid.UUID) ([]domain.Entry, error) {
	query := `SELECT id, request_id, kind, actor_id, actor_role, body, reason, findings, created_at
		FROM service_request_entries WHERE request_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list service request entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.Entry
	for rows.Next() {
		var e domain.Entry
		var kind, role string
		if err := rows.Scan(&e.ID, &e.RequestID, &kind, &e.ActorID, &role, &e.Body, &e.Reason, &e.Findings, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan service request entry: %w", err)
		}
		e.Kind = domain.EntryKind(kind)
		e.ActorRole = domain.Role(role)
		if len(e.Findings) == 0 {
			e.Findings = nil
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate service request entries: %w", err)
	}
	return entries, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, e domain.Entry) error {
	findings := e.Findings
	if findings == nil {
		findings = inspection.Findings{}
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO service_request_entries (id, request_id, kind, actor_id, actor_role, body, reason, findings, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.RequestID, string(e.Kind), e.ActorID, string(e.ActorRole), e.Body, e.Reason, findings, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert service request entry: %w", err)
	}
	return nil
}

func scanRequest(row pgx.Row) (*domain.ServiceRequest, error) {
	var req domain.ServiceRequest
	var status string
	err := row.Scan(
		&req.ID, &status, &req.CustomerID, &req.VehicleID, &req.LeadTechnicianID, &req.BuddyTechnicianID,
		&req.ScheduledAt, &req.Title, &req.Description, &req.Notes, &req.OfficeNotes, &req.KeyLocation,
		&req.ShopName, &req.ShopPhone, &req.CreatedAt, &req.StartedAt, &req.CompletedAt, &req.UpdatedAt,
		&req.Version,
	)
	if err != nil {
		return nil, err
	}
	req.Status = domain.Status(status)
	return &req, nil
}

// addFilter appends a condition whose placeholders all bind the same value.
// listFilter builds the shared FROM/WHERE part of List. Every filter narrows
// the result: a status list and a category both have to match.
func listFilter(f domain.Filter) (string, []interface{}, int) {
	baseQuery := `FROM service_requests WHERE 1 = 1`
	args := []interface{}{}
	argIndex := 1

	statuses := make([]string, 0, len(f.Statuses))
	for _, s := range f.Statuses {
		statuses = append(statuses, string(s))
	}
	var inCategory []string
	if f.Category != nil {
		for _, s := range domain.StatusesIn(*f.Category) {
			inCategory = append(inCategory, string(s))
		}
	}

	addFilter(&baseQuery, &args, &argIndex, len(statuses) > 0, " AND status = ANY($%d)", statuses)
	addFilter(&baseQuery, &args, &argIndex, f.Category != nil, " AND status = ANY($%d)", inCategory)
	addFilter(&baseQuery, &args, &argIndex, f.CustomerID != nil, " AND customer_id = $%d", derefUUID(f.CustomerID))
	addFilter(&baseQuery, &args, &argIndex, f.TechnicianID != nil,
		" AND (lead_technician_id = $%d OR buddy_technician_id = $%d)", derefUUID(f.TechnicianID))
	return baseQuery, args, argIndex
}

func addFilter(query *string, args *[]interface{}, argIndex *int, cond bool, format string, value interface{}) {
	if !cond {
		return
	}
	n := strings.Count(format, "%d")
	indexes := make([]interface{}, n)
	for i := range indexes {
		indexes[i] = *argIndex
	}
	*query += fmt.Sprintf(format, indexes...)
	*args = append(*args, value)
	*argIndex++
}

func derefUUID(v *uuid.UUID) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
