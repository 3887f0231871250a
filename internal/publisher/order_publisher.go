// Package publisher emits stock-decrement events for committed orders.
package publisher

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ecomstack/minishop/internal/db"
	"github.com/ecomstack/minishop/internal/events"
	"github.com/ecomstack/minishop/internal/models"
)

// Broker is the durable publish side of the message channel.
type Broker interface {
	Publish(ctx context.Context, queue string, body []byte) error
}

// Outbox records events whose publish failed so they can be replayed later.
type Outbox interface {
	Record(ctx context.Context, ev events.StockDecrementEvent, cause string) error
	Pending(ctx context.Context, limit int) ([]db.UnpublishedEvent, error)
	MarkPublished(ctx context.Context, ids []int64) error
}

const replayBatchSize = 100

type OrderPublisher struct {
	broker Broker
	outbox Outbox
	queue  string
}

func NewOrderPublisher(broker Broker, outbox Outbox, queue string) *OrderPublisher {
	return &OrderPublisher{broker: broker, outbox: outbox, queue: queue}
}

// PublishStockDecrement publishes the event derived from a committed order.
// Must be called only after the order transaction commits: the broker and the
// database cannot commit atomically together, so the only safe ordering is
// commit first, publish second. On publish failure the event is recorded for
// replay and the error is returned; the caller keeps the committed order
// either way.
func (p *OrderPublisher) PublishStockDecrement(ctx context.Context, order *models.Order) error {
	ev := events.StockDecrementEvent{
		OrderID:   order.ID,
		ProductID: order.ProductID,
		Quantity:  order.Quantity,
	}

	data, err := events.Encode(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := p.broker.Publish(ctx, p.queue, data); err != nil {
		log.Printf("⚠️ Publish failed for order #%d, recording for replay: %v", ev.OrderID, err)
		if recErr := p.outbox.Record(ctx, ev, err.Error()); recErr != nil {
			log.Printf("❌ Failed to record unpublished event for order #%d: %v", ev.OrderID, recErr)
		}
		return err
	}

	return nil
}

// ReplayUnpublished retries events whose original publish failed and marks
// the ones that go through. Returns the number of events replayed.
func (p *OrderPublisher) ReplayUnpublished(ctx context.Context) (int, error) {
	pending, err := p.outbox.Pending(ctx, replayBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load unpublished events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var published []int64
	for _, e := range pending {
		data, err := events.Encode(e.Event)
		if err != nil {
			log.Printf("❌ Skipping unencodable replay %s: %v", e.ReplayID, err)
			continue
		}
		if err := p.broker.Publish(ctx, p.queue, data); err != nil {
			// Broker still down; leave the rest for the next tick.
			log.Printf("⚠️ Replay %s failed: %v", e.ReplayID, err)
			break
		}
		published = append(published, e.ID)
	}

	if len(published) > 0 {
		if err := p.outbox.MarkPublished(ctx, published); err != nil {
			return len(published), err
		}
		log.Printf("📤 Replayed %d unpublished event(s)", len(published))
	}
	return len(published), nil
}

// RunReplayLoop replays unpublished events on a fixed interval until the
// context is cancelled.
func (p *OrderPublisher) RunReplayLoop(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Replay loop stopping")
			return
		case <-t.C:
			if _, err := p.ReplayUnpublished(ctx); err != nil {
				log.Printf("⚠️ Replay pass failed: %v", err)
			}
		}
	}
}
