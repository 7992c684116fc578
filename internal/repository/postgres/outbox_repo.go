package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoshiAarya/ai-ticket-app/internal/events"
)

// OutboxRepo is the Postgres-backed event queue.
type OutboxRepo struct{ db *pgxpool.Pool }

func NewOutboxRepo(db *pgxpool.Pool) *OutboxRepo { return &OutboxRepo{db: db} }

var _ events.Queue = (*OutboxRepo)(nil)

func (r *OutboxRepo) Publish(ctx context.Context, name string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", name, err)
	}
	id := uuid.NewString()
	_, err = r.db.Exec(ctx, `
		INSERT INTO event_outbox (id, name, payload, status, next_attempt_at)
		VALUES ($1, $2, $3::jsonb, $4, now())
	`, id, name, string(b), events.StatusPending)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", name, err)
	}
	return id, nil
}

// Lease claims due events in one statement; SKIP LOCKED keeps concurrent
// workers from claiming the same rows.
func (r *OutboxRepo) Lease(ctx context.Context, consumer string, limit int, ttl time.Duration) ([]events.Event, error) {
	consumer = strings.TrimSpace(consumer)
	if consumer == "" {
		return nil, fmt.Errorf("consumer is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := r.db.Query(ctx, `
		UPDATE event_outbox o
		SET status = $1, lease_owner = $2, lease_expires_at = now() + make_interval(secs => $3),
		    attempts = o.attempts + 1, updated_at = now()
		WHERE o.id IN (
			SELECT id FROM event_outbox
			WHERE (status = $4 AND next_attempt_at <= now())
			   OR (status = $1 AND lease_expires_at <= now())
			ORDER BY next_attempt_at ASC, created_at ASC
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING o.id::text, o.name, o.payload::text, o.attempts, o.created_at
	`, events.StatusLeased, consumer, ttl.Seconds(), events.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("lease events: %w", err)
	}
	defer rows.Close()

	out := []events.Event{}
	for rows.Next() {
		var ev events.Event
		var payload string
		if err := rows.Scan(&ev.ID, &ev.Name, &payload, &ev.Attempts, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan leased event: %w", err)
		}
		ev.Payload = json.RawMessage(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *OutboxRepo) Ack(ctx context.Context, consumer, id string) error {
	return r.settle(ctx, consumer, id, `
		UPDATE event_outbox SET status = $4, lease_owner = NULL, lease_expires_at = NULL,
		       processed_at = now(), updated_at = now()
		WHERE id = $1 AND lease_owner = $2 AND status = $3`, events.StatusDone)
}

func (r *OutboxRepo) Retry(ctx context.Context, consumer, id string, next time.Time, lastErr string) error {
	return r.settle(ctx, consumer, id, `
		UPDATE event_outbox SET status = $4, lease_owner = NULL, lease_expires_at = NULL,
		       next_attempt_at = $5, last_error = $6, updated_at = now()
		WHERE id = $1 AND lease_owner = $2 AND status = $3`, events.StatusPending, next, lastErr)
}

func (r *OutboxRepo) Dead(ctx context.Context, consumer, id string, lastErr string) error {
	return r.settle(ctx, consumer, id, `
		UPDATE event_outbox SET status = $4, lease_owner = NULL, lease_expires_at = NULL,
		       last_error = $5, processed_at = now(), updated_at = now()
		WHERE id = $1 AND lease_owner = $2 AND status = $3`, events.StatusDead, lastErr)
}

// settle runs a guarded update; $1 is the id, $2 the consumer, $3 the leased status.
func (r *OutboxRepo) settle(ctx context.Context, consumer, id, sql string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("event %s not found", id)
	}
	ct, err := r.db.Exec(ctx, sql, append([]any{id, consumer, events.StatusLeased}, args...)...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return events.ErrLeaseLost
	}
	return nil
}
