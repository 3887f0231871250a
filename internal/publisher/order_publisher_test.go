package publisher

import (
	"context"
	"errors"
	"testing"

	"github.com/ecomstack/minishop/internal/db"
	"github.com/ecomstack/minishop/internal/events"
	"github.com/ecomstack/minishop/internal/messaging"
	"github.com/ecomstack/minishop/internal/models"
)

type fakeBroker struct {
	published [][]byte
	fail      bool
}

func (b *fakeBroker) Publish(_ context.Context, _ string, body []byte) error {
	if b.fail {
		return messaging.ErrDeliveryUnavailable
	}
	b.published = append(b.published, body)
	return nil
}

type fakeOutbox struct {
	recorded     []events.StockDecrementEvent
	pending      []db.UnpublishedEvent
	publishedIDs []int64
}

func (o *fakeOutbox) Record(_ context.Context, ev events.StockDecrementEvent, _ string) error {
	o.recorded = append(o.recorded, ev)
	return nil
}

func (o *fakeOutbox) Pending(_ context.Context, _ int) ([]db.UnpublishedEvent, error) {
	return o.pending, nil
}

func (o *fakeOutbox) MarkPublished(_ context.Context, ids []int64) error {
	o.publishedIDs = append(o.publishedIDs, ids...)
	return nil
}

func TestPublishStockDecrement(t *testing.T) {
	broker := &fakeBroker{}
	outbox := &fakeOutbox{}
	pub := NewOrderPublisher(broker, outbox, "order_queue")

	order := &models.Order{ID: 11, ProductID: 4, Quantity: 2, Status: models.StatusPending}
	if err := pub.PublishStockDecrement(context.Background(), order); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(broker.published) != 1 {
		t.Fatalf("exactly one event must be published, got %d", len(broker.published))
	}
	ev, err := events.Decode(broker.published[0])
	if err != nil {
		t.Fatalf("published event must decode: %v", err)
	}
	if ev.OrderID != 11 || ev.ProductID != 4 || ev.Quantity != 2 {
		t.Fatalf("wrong event: %+v", ev)
	}
	if len(outbox.recorded) != 0 {
		t.Fatalf("successful publish must not touch the outbox")
	}
}

func TestPublishFailureRecordsForReplay(t *testing.T) {
	broker := &fakeBroker{fail: true}
	outbox := &fakeOutbox{}
	pub := NewOrderPublisher(broker, outbox, "order_queue")

	order := &models.Order{ID: 3, ProductID: 9, Quantity: 1}
	err := pub.PublishStockDecrement(context.Background(), order)
	if !errors.Is(err, messaging.ErrDeliveryUnavailable) {
		t.Fatalf("want ErrDeliveryUnavailable, got %v", err)
	}
	if len(outbox.recorded) != 1 || outbox.recorded[0].OrderID != 3 {
		t.Fatalf("failed publish must be recorded: %+v", outbox.recorded)
	}
}

func TestReplayPublishesPendingAndMarksThem(t *testing.T) {
	broker := &fakeBroker{}
	outbox := &fakeOutbox{
		pending: []db.UnpublishedEvent{
			{ID: 1, ReplayID: "r1", Event: events.StockDecrementEvent{OrderID: 1, ProductID: 2, Quantity: 3}},
			{ID: 2, ReplayID: "r2", Event: events.StockDecrementEvent{OrderID: 5, ProductID: 2, Quantity: 1}},
		},
	}
	pub := NewOrderPublisher(broker, outbox, "order_queue")

	n, err := pub.ReplayUnpublished(context.Background())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if n != 2 || len(broker.published) != 2 {
		t.Fatalf("both events must be replayed, n=%d published=%d", n, len(broker.published))
	}
	if len(outbox.publishedIDs) != 2 {
		t.Fatalf("replayed events must be marked published: %v", outbox.publishedIDs)
	}
}

func TestReplayStopsWhenBrokerStillDown(t *testing.T) {
	broker := &fakeBroker{fail: true}
	outbox := &fakeOutbox{
		pending: []db.UnpublishedEvent{
			{ID: 1, Event: events.StockDecrementEvent{OrderID: 1, ProductID: 2, Quantity: 3}},
		},
	}
	pub := NewOrderPublisher(broker, outbox, "order_queue")

	n, err := pub.ReplayUnpublished(context.Background())
	if err != nil {
		t.Fatalf("replay pass itself should not fail: %v", err)
	}
	if n != 0 || len(outbox.publishedIDs) != 0 {
		t.Fatalf("nothing must be marked when the broker is down")
	}
}
