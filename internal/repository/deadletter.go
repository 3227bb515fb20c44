package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// FailedEvent records a billing event whose reconciliation failed after the
// delivery was already acknowledged. Without this record the update would be
// lost silently, since the provider never retries an acknowledged event.
type FailedEvent struct {
	ID         string
	EventID    string
	EventType  string
	Subject    string
	Reason     string
	Payload    []byte
	ReceivedAt time.Time
}

// InsertFailedEvent stores a dead-letter record for a billing event.
func (r *Repository) InsertFailedEvent(ctx context.Context, ev *FailedEvent) error {
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}

	query := `
		INSERT INTO billing_event_dlq (id, event_id, event_type, subject, reason, payload, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		ev.ID,
		ev.EventID,
		ev.EventType,
		ev.Subject,
		ev.Reason,
		ev.Payload,
		ev.ReceivedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert dead-letter event: %w", err)
	}

	return nil
}

// RecordFailedBillingEvent stores a dead-letter record from plain fields.
// Satisfies the billing reconciler's DeadLetters interface.
func (r *Repository) RecordFailedBillingEvent(ctx context.Context, eventID, eventType, subject, reason string, payload []byte) error {
	return r.InsertFailedEvent(ctx, &FailedEvent{
		EventID:   eventID,
		EventType: eventType,
		Subject:   subject,
		Reason:    reason,
		Payload:   payload,
	})
}

// ListFailedEvents returns the most recent dead-letter records, newest first.
// Intended for operator inspection and manual replay.
func (r *Repository) ListFailedEvents(ctx context.Context, limit int) ([]FailedEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, event_id, event_type, subject, reason, payload, received_at
		FROM billing_event_dlq
		ORDER BY received_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead-letter events: %w", err)
	}
	defer rows.Close()

	var events []FailedEvent
	for rows.Next() {
		var ev FailedEvent
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.EventType, &ev.Subject, &ev.Reason, &ev.Payload, &ev.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead-letter event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}
