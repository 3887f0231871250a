// Package consumer applies stock-decrement events to product inventory.
// Delivery is at-least-once, so every path here must be safe under
// redelivery and duplicates.
package consumer

import (
	"context"
	"errors"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ecomstack/minishop/internal/cache"
	"github.com/ecomstack/minishop/internal/db"
	"github.com/ecomstack/minishop/internal/events"
)

// Outcome tells the broker loop how to settle a delivery.
type Outcome int

const (
	// Ack removes the message: it was applied, already applied, or is a
	// terminal business condition not worth redelivering.
	Ack Outcome = iota
	// Reject dead-letters the message without requeue (poison message or
	// retries exhausted).
	Reject
	// RejectRequeue asks the broker to redeliver after a transient failure.
	RejectRequeue
)

// StockStore applies a decrement with idempotency and the stock >= quantity
// guard in one transaction.
type StockStore interface {
	ApplyStockDecrement(ctx context.Context, orderID, productID, quantity int) error
}

// Invalidator removes cache keys after a successful inventory mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, keys ...string) error
}

type StockReconciler struct {
	store   StockStore
	cache   Invalidator
	listKey string
}

func NewStockReconciler(store StockStore, cache Invalidator, listKey string) *StockReconciler {
	return &StockReconciler{store: store, cache: cache, listKey: listKey}
}

// Handle processes one delivery. redelivered bounds the retry of transient
// failures: the first attempt requeues, a redelivered message goes to the
// dead-letter queue instead of looping forever.
func (r *StockReconciler) Handle(ctx context.Context, body []byte, redelivered bool) Outcome {
	ev, err := events.Decode(body)
	if err != nil {
		log.Printf("❌ Poison message, dead-lettering: %v", err)
		return Reject
	}

	err = r.store.ApplyStockDecrement(ctx, ev.OrderID, ev.ProductID, ev.Quantity)
	switch {
	case err == nil:
		if cerr := r.cache.Invalidate(ctx, r.listKey, cache.ProductKey(ev.ProductID)); cerr != nil {
			log.Printf("⚠️ Failed to invalidate cache for product %d: %v", ev.ProductID, cerr)
		}
		log.Printf("✅ Reduced stock: product %d by %d (order #%d)", ev.ProductID, ev.Quantity, ev.OrderID)
		return Ack

	case errors.Is(err, db.ErrAlreadyProcessed):
		log.Printf("📦 Duplicate delivery for order #%d, already applied", ev.OrderID)
		return Ack

	case errors.Is(err, db.ErrProductNotFound):
		log.Printf("⚠️ Product %d not found for order #%d, dropping event", ev.ProductID, ev.OrderID)
		return Ack

	case errors.Is(err, db.ErrInsufficientStock):
		log.Printf("⚠️ Insufficient stock for product %d (order #%d wants %d), stock unchanged", ev.ProductID, ev.OrderID, ev.Quantity)
		return Ack

	default:
		if redelivered {
			log.Printf("❌ Transient failure persisted for order #%d, dead-lettering: %v", ev.OrderID, err)
			return Reject
		}
		log.Printf("⚠️ Transient failure for order #%d, requeueing: %v", ev.OrderID, err)
		return RejectRequeue
	}
}

// Run drains a delivery channel, settling each message per Handle. The ack is
// sent strictly after the store transaction committed. Run returns when the
// channel closes (connection lost); the caller restarts the consumer.
func (r *StockReconciler) Run(ctx context.Context, messages <-chan amqp.Delivery) {
	for msg := range messages {
		switch r.Handle(ctx, msg.Body, msg.Redelivered) {
		case Ack:
			if err := msg.Ack(false); err != nil {
				log.Printf("⚠️ Ack failed: %v", err)
			}
		case Reject:
			if err := msg.Nack(false, false); err != nil {
				log.Printf("⚠️ Nack failed: %v", err)
			}
		case RejectRequeue:
			if err := msg.Nack(false, true); err != nil {
				log.Printf("⚠️ Nack failed: %v", err)
			}
		}
	}
}
