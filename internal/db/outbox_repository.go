package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ecomstack/minishop/internal/events"
)

// UnpublishedEvent is a stock-decrement event whose publish failed after the
// order committed. It waits here for scheduled replay; the database commit and
// the broker publish cannot be made atomic, so this log closes the gap.
type UnpublishedEvent struct {
	ID        int64
	ReplayID  string
	Event     events.StockDecrementEvent
	LastError string
	CreatedAt time.Time
}

type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(database *PostgresDB) *OutboxRepository {
	return &OutboxRepository{db: database.Conn}
}

// Record stores an event that could not be published, keyed by order_id so a
// retried request cannot double-log the same decrement.
func (r *OutboxRepository) Record(ctx context.Context, ev events.StockDecrementEvent, cause string) error {
	query := `
		INSERT INTO unpublished_events (replay_id, order_id, product_id, quantity, last_error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO UPDATE SET last_error = $5
	`
	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), ev.OrderID, ev.ProductID, ev.Quantity, cause)
	if err != nil {
		return fmt.Errorf("failed to record unpublished event: %w", err)
	}
	return nil
}

// Pending returns up to limit events awaiting replay, oldest first.
func (r *OutboxRepository) Pending(ctx context.Context, limit int) ([]UnpublishedEvent, error) {
	query := `
		SELECT id, replay_id, order_id, product_id, quantity, last_error, created_at
		FROM unpublished_events
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpublished events: %w", err)
	}
	defer rows.Close()

	var pending []UnpublishedEvent
	for rows.Next() {
		var e UnpublishedEvent
		err := rows.Scan(&e.ID, &e.ReplayID, &e.Event.OrderID, &e.Event.ProductID, &e.Event.Quantity, &e.LastError, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unpublished event: %w", err)
		}
		pending = append(pending, e)
	}

	return pending, nil
}

// MarkPublished stamps successfully replayed events.
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE unpublished_events SET published_at = NOW() WHERE id = ANY($1)`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("failed to mark events published: %w", err)
	}
	return nil
}
