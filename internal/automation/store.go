package automation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Log statuses. A trigger writes a pending row up front; a dispatch failure
// appends a separate failed row. Rows are never updated in place.
const (
	StatusPending = "pending"
	StatusFailed  = "failed"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists the automation audit trail.
type Store struct {
	db DB
}

// NewStore creates an automation log store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// LogEntry is one append-only automation log row.
type LogEntry struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Workflow string
	Status   string
	Payload  json.RawMessage
	Detail   string
}

// Insert appends a log row.
func (s *Store) Insert(ctx context.Context, rec LogEntry) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.Payload == nil {
		rec.Payload = json.RawMessage(`{}`)
	}
	query := `
		INSERT INTO automation_logs (id, tenant_id, workflow, status, payload, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.Exec(ctx, query,
		rec.ID, rec.TenantID, rec.Workflow, rec.Status, rec.Payload, rec.Detail,
	); err != nil {
		return fmt.Errorf("automation: insert log: %w", err)
	}
	return nil
}
