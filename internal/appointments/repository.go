package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicbase/clinic-platform/internal/tenancy"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists appointments in Postgres.
type Repository struct {
	db DB
}

// NewRepository creates an appointment repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db}
}

const slotConstraint = "ux_appointments_slot"

// Insert books the appointment with a single atomic insert. The partial
// unique index over (tenant_id, doctor_id, starts_at) for non-cancelled rows
// is the conflict guard: a violation surfaces as ErrSlotTaken, so two
// concurrent reservations can never both commit.
func (r *Repository) Insert(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.StartsAt = NormalizeInstant(a.StartsAt)
	if a.Status == "" {
		a.Status = StatusScheduled
	}

	query := `
		INSERT INTO appointments (id, tenant_id, branch_id, doctor_id, patient_id, starts_at, type, status, procedure_size)
		VALUES ($1, $2,
			(SELECT branch_id FROM users WHERE id = $3 AND tenant_id = $2),
			$3, $4, $5, $6, $7, $8)
		RETURNING branch_id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		a.ID, a.TenantID, a.DoctorID, a.PatientID,
		a.StartsAt, a.Type, a.Status, a.ProcedureSize,
	).Scan(&a.BranchID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == "23505" && pgErr.ConstraintName == slotConstraint:
				return ErrSlotTaken
			case pgErr.Code == "23502":
				return ErrUnknownDoctor
			}
		}
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

const selectAppointment = `
	SELECT a.id, a.tenant_id, a.branch_id, a.doctor_id, a.patient_id,
		a.starts_at, a.type, a.status, a.procedure_size, a.created_at, a.updated_at,
		p.name, p.phone, u.name
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN users u ON u.id = a.doctor_id
`

// GetScoped loads an appointment with nested patient and doctor, restricted
// to the caller's tenant (and branch for non-admin roles).
func (r *Repository) GetScoped(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (*Appointment, error) {
	query := selectAppointment + ` WHERE a.id = $1 AND a.tenant_id = $2`
	args := []any{id, scope.TenantID}
	if branchID, ok := scope.BranchFilter(); ok {
		query += ` AND a.branch_id = $3`
		args = append(args, branchID)
	}

	var a Appointment
	var patient PatientSummary
	var doctor DoctorSummary
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&a.ID, &a.TenantID, &a.BranchID, &a.DoctorID, &a.PatientID,
		&a.StartsAt, &a.Type, &a.Status, &a.ProcedureSize, &a.CreatedAt, &a.UpdatedAt,
		&patient.Name, &patient.Phone, &doctor.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: load scoped: %w", err)
	}
	patient.ID = a.PatientID
	doctor.ID = a.DoctorID
	a.Patient = &patient
	a.Doctor = &doctor
	return &a, nil
}

// UpdateStatus persists a status change within the caller's scope.
// No transition validation is applied; any label is accepted.
func (r *Repository) UpdateStatus(ctx context.Context, scope tenancy.Scope, id uuid.UUID, status string) error {
	query := `
		UPDATE appointments
		SET status = $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
	`
	args := []any{id, scope.TenantID, status}
	if branchID, ok := scope.BranchFilter(); ok {
		query += ` AND branch_id = $4`
		args = append(args, branchID)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// BookedTimes returns the normalized instants of a doctor's non-cancelled
// appointments inside [from, to), scoped to the tenant.
func (r *Repository) BookedTimes(ctx context.Context, tenantID, doctorID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT starts_at
		FROM appointments
		WHERE tenant_id = $1 AND doctor_id = $2
			AND status <> 'cancelled'
			AND starts_at >= $3 AND starts_at < $4
		ORDER BY starts_at
	`
	rows, err := r.db.Query(ctx, query, tenantID, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("appointments: booked times: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("appointments: scan booked time: %w", err)
		}
		out = append(out, NormalizeInstant(t))
	}
	return out, rows.Err()
}
