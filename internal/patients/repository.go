package patients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores patients in the relational database.
type Repository struct {
	db DB
}

// NewRepository initializes a patient repository.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("patients: db required")
	}
	return &Repository{db: db}
}

const selectPatient = `
	SELECT id, tenant_id, branch_id, name, phone, email, status, birth_date, created_at
	FROM patients
`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.TenantID, &p.BranchID, &p.Name, &p.Phone, &p.Email,
		&p.Status, &p.BirthDate, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID fetches a patient scoped to the tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, selectPatient+` WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("patients: select: %w", err)
	}
	return p, nil
}

// FindOrCreateByPhone returns the tenant's patient with the given phone,
// creating a lead record when none exists. Public booking uses this so a
// first-time visitor becomes a patient the moment they book.
func (r *Repository) FindOrCreateByPhone(ctx context.Context, tenantID uuid.UUID, name, phone string) (*Patient, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, fmt.Errorf("patients: phone is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = phone
	}

	row := r.db.QueryRow(ctx,
		selectPatient+` WHERE tenant_id = $1 AND phone = $2 ORDER BY created_at LIMIT 1`,
		tenantID, phone,
	)
	p, err := scanPatient(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("patients: lookup by phone: %w", err)
	}

	created := Patient{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     name,
		Phone:    phone,
		Status:   StatusLead,
	}
	insert := `
		INSERT INTO patients (id, tenant_id, name, phone, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, insert, created.ID, created.TenantID, created.Name, created.Phone, created.Status).Scan(&created.CreatedAt); err != nil {
		return nil, fmt.Errorf("patients: insert: %w", err)
	}
	return &created, nil
}
