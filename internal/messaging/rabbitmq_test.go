package messaging

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("want 3 attempts, got %d", calls)
	}
}

func TestRetryBoundedAttempts(t *testing.T) {
	boom := errors.New("still down")
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want last error surfaced, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("retry must be bounded: want 3 attempts, got %d", calls)
	}
}

func TestRetryStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	boom := errors.New("down")
	calls := 0
	err := retry(ctx, 5, time.Minute, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want last error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("cancelled context must stop retries: want 1 attempt, got %d", calls)
	}
}

func TestRetryNoDelayAfterSuccess(t *testing.T) {
	start := time.Now()
	if err := retry(context.Background(), 3, time.Second, func() error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatalf("successful op must not sleep")
	}
}

func TestDeadLetterQueueName(t *testing.T) {
	if got := DeadLetterQueue("order_queue"); got != "order_queue.dlq" {
		t.Fatalf("want order_queue.dlq, got %s", got)
	}
}
