package messaging

import (
	"context"
	"fmt"

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

// Store persists the messaging audit trail in Postgres.
type Store struct {
	db DB
}

// NewStore creates a messaging store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// MessageLog is one append-only record per send attempt, whatever the outcome.
type MessageLog struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Channel   string
	Recipient string
	Content   string
	Status    string
	Detail    string
}

// InsertLog appends a delivery log row. Rows are never updated afterwards.
func (s *Store) InsertLog(ctx context.Context, rec MessageLog) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	query := `
		INSERT INTO message_logs (id, tenant_id, channel, recipient, content, status, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := s.db.Exec(ctx, query,
		rec.ID, rec.TenantID, rec.Channel, rec.Recipient, rec.Content, rec.Status, rec.Detail,
	); err != nil {
		return uuid.Nil, fmt.Errorf("messaging: insert log: %w", err)
	}
	return rec.ID, nil
}

// AppendThreadMessage records a successful outbound send inside an existing
// conversation so the thread view stays complete.
func (s *Store) AppendThreadMessage(ctx context.Context, tenantID, conversationID, senderID uuid.UUID, body string) error {
	query := `
		INSERT INTO thread_messages (id, tenant_id, conversation_id, sender_id, body)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.Exec(ctx, query, uuid.New(), tenantID, conversationID, senderID, body); err != nil {
		return fmt.Errorf("messaging: append thread message: %w", err)
	}
	return nil
}

// CountByStatus returns send-log counts per status for a tenant.
func (s *Store) CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	query := `
		SELECT status, COUNT(*)
		FROM message_logs
		WHERE tenant_id = $1
		GROUP BY status
	`
	rows, err := s.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("messaging: count by status: %w", err)
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("messaging: scan count: %w", err)
		}
		out[status] = count
	}
	return out, rows.Err()
}
