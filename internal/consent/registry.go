package consent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// ScopeAll marks an opt-out that covers every channel.
const ScopeAll = "ALL"

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Registry records and answers per-contact communication consent.
// Opt-out rows are append-only: a duplicate opt-out is already satisfied.
type Registry struct {
	db     DB
	logger *logging.Logger
}

// NewRegistry creates a consent registry.
func NewRegistry(db DB, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{db: db, logger: logger}
}

// Check reports whether the contact may be messaged on the channel.
// An opt-out scoped ALL or to the channel blocks the send.
func (r *Registry) Check(ctx context.Context, tenantID uuid.UUID, contact, channel string) (bool, error) {
	query := `
		SELECT 1 FROM opt_outs
		WHERE tenant_id = $1 AND contact = $2 AND channel IN ($3, $4)
		LIMIT 1
	`
	var exists int
	err := r.db.QueryRow(ctx, query, tenantID, contact, ScopeAll, channel).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("consent: check: %w", err)
	}
	return false, nil
}

// Grant restores consent by removing the contact's matching opt-out rows.
func (r *Registry) Grant(ctx context.Context, tenantID uuid.UUID, contact, channel, source string) error {
	query := `
		DELETE FROM opt_outs
		WHERE tenant_id = $1 AND contact = $2 AND channel IN ($3, $4)
	`
	if _, err := r.db.Exec(ctx, query, tenantID, contact, ScopeAll, channel); err != nil {
		return fmt.Errorf("consent: grant: %w", err)
	}
	r.logger.Info("consent granted", "tenant_id", tenantID, "contact", contact, "channel", channel, "source", source)
	return nil
}

// Revoke records an opt-out. The unique constraint over (tenant_id, contact)
// makes a repeated opt-out a no-op success rather than an error.
func (r *Registry) Revoke(ctx context.Context, tenantID uuid.UUID, contact, channel, reason string) error {
	if channel == "" {
		channel = ScopeAll
	}
	query := `
		INSERT INTO opt_outs (id, tenant_id, contact, channel, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, contact) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, uuid.New(), tenantID, contact, channel, reason); err != nil {
		return fmt.Errorf("consent: revoke: %w", err)
	}
	r.logger.Info("opt-out recorded", "tenant_id", tenantID, "contact", contact, "channel", channel)
	return nil
}
