package campaigns

import (
	"context"
	"fmt"
	"time"

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

// Candidate is one patient a campaign job wants to reach. Candidate queries
// run across all tenants in one pass; each row carries its tenant id so the
// send path stays tenant-scoped.
type Candidate struct {
	TenantID  uuid.UUID
	PatientID uuid.UUID
	Name      string
	Phone     string

	// Type is the appointment type for retention candidates.
	Type string
	// StartsAt is the appointment time for reminder candidates.
	StartsAt time.Time
}

// Repository runs the candidate queries behind the campaign jobs.
type Repository struct {
	db DB
}

// NewRepository creates a campaign repository.
func NewRepository(db DB) *Repository {
	if db == nil {
		panic("campaigns: db required")
	}
	return &Repository{db: db}
}

// BirthdayCandidates returns active patients whose birth month and day match
// the given date.
func (r *Repository) BirthdayCandidates(ctx context.Context, on time.Time) ([]Candidate, error) {
	query := `
		SELECT tenant_id, id, name, phone
		FROM patients
		WHERE status = 'active'
			AND birth_date IS NOT NULL
			AND EXTRACT(MONTH FROM birth_date) = $1
			AND EXTRACT(DAY FROM birth_date) = $2
			AND phone <> ''
		ORDER BY tenant_id, id
	`
	rows, err := r.db.Query(ctx, query, int(on.Month()), on.Day())
	if err != nil {
		return nil, fmt.Errorf("campaigns: birthday candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.TenantID, &c.PatientID, &c.Name, &c.Phone); err != nil {
			return nil, fmt.Errorf("campaigns: scan birthday candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RetentionCandidates returns patients whose completed treatment appointment
// was exactly daysAgo days before the given date. The marker narrows the
// appointment type to treatments worth a follow-up.
func (r *Repository) RetentionCandidates(ctx context.Context, on time.Time, daysAgo int, marker string) ([]Candidate, error) {
	target := on.UTC().AddDate(0, 0, -daysAgo)
	query := `
		SELECT a.tenant_id, p.id, p.name, p.phone, a.type
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.status = 'completed'
			AND a.starts_at::date = $1::date
			AND a.type ILIKE $2
			AND p.phone <> ''
		ORDER BY a.tenant_id, p.id
	`
	rows, err := r.db.Query(ctx, query, target, "%"+marker+"%")
	if err != nil {
		return nil, fmt.Errorf("campaigns: retention candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.TenantID, &c.PatientID, &c.Name, &c.Phone, &c.Type); err != nil {
			return nil, fmt.Errorf("campaigns: scan retention candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReminderCandidates returns patients with a scheduled appointment inside
// tomorrow's calendar day, relative to the given instant.
func (r *Repository) ReminderCandidates(ctx context.Context, now time.Time) ([]Candidate, error) {
	day := now.UTC().Truncate(24 * time.Hour)
	from := day.AddDate(0, 0, 1)
	to := day.AddDate(0, 0, 2)

	query := `
		SELECT a.tenant_id, p.id, p.name, p.phone, a.starts_at
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.status = 'scheduled'
			AND a.starts_at >= $1 AND a.starts_at < $2
			AND p.phone <> ''
		ORDER BY a.tenant_id, a.starts_at
	`
	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("campaigns: reminder candidates: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.TenantID, &c.PatientID, &c.Name, &c.Phone, &c.StartsAt); err != nil {
			return nil, fmt.Errorf("campaigns: scan reminder candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
