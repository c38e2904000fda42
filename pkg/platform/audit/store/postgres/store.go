package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	audit "unikyc/pkg/platform/audit"
)

// Store implements audit.Store on the audit_events table.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Append inserts an event. The full event is also kept as JSON for replay.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, category, action, subject, record_id, request_id, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), string(event.Category), event.Action, event.Subject, event.RecordID,
		event.RequestID, event.Timestamp, payload,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListBySubject returns events for a subject, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM audit_events WHERE subject = $1 ORDER BY occurred_at ASC`, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var e audit.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
