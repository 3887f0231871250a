// Package messaging wraps the RabbitMQ connection shared by publishers and
// consumers. Queues are durable and publishes wait for broker confirms, so a
// returned Publish means the message survived a broker restart.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDeliveryUnavailable is returned when the broker cannot durably accept a
// message. Callers must not roll back already-committed work because of it.
var ErrDeliveryUnavailable = errors.New("message broker unavailable")

const (
	dialAttempts = 5
	dialDelay    = 5 * time.Second

	publishAttempts = 3
	publishDelay    = 500 * time.Millisecond
)

// retry runs op up to attempts times, doubling the delay between tries.
// It returns the last error once attempts are exhausted or the context ends.
func retry(ctx context.Context, attempts int, delay time.Duration, op func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
			delay *= 2
		}
	}
	return err
}

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewRabbitMQ dials the broker with bounded retry and puts the channel into
// confirm mode.
func NewRabbitMQ(host string, port int, user, password string) (*RabbitMQ, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", user, password, host, port)

	var conn *amqp.Connection
	var err error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		if attempt < dialAttempts {
			log.Printf("⚠️ RabbitMQ dial failed (attempt %d/%d), retrying in %s: %v",
				attempt, dialAttempts, dialDelay, err)
			time.Sleep(dialDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeliveryUnavailable, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	log.Println("✅ Connected to RabbitMQ")

	return &RabbitMQ{
		conn:    conn,
		channel: channel,
	}, nil
}

// DeclareQueue creates a durable queue and its dead-letter companion
// ("<name>.dlq"). Rejected messages that are not requeued land in the DLQ
// for operator inspection instead of looping forever.
func (r *RabbitMQ) DeclareQueue(name string) error {
	dlq := DeadLetterQueue(name)
	_, err := r.channel.QueueDeclare(
		dlq,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare dead-letter queue: %w", err)
	}

	_, err = r.channel.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlq,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	log.Printf("✅ Queue declared: %s (dead-letter: %s)", name, dlq)
	return nil
}

// DeadLetterQueue returns the dead-letter queue name paired with a queue.
func DeadLetterQueue(queue string) string {
	return queue + ".dlq"
}

// Publish sends a persistent message and waits for the broker confirm, so a
// nil return means durable storage, not just a socket write. Transient publish
// failures are retried a bounded number of times with backoff before
// ErrDeliveryUnavailable surfaces to the caller.
func (r *RabbitMQ) Publish(ctx context.Context, queue string, body []byte) error {
	err := retry(ctx, publishAttempts, publishDelay, func() error {
		return r.publishOnce(ctx, queue, body)
	})
	if err != nil {
		return err
	}

	log.Printf("📤 Message published to queue: %s", queue)
	return nil
}

func (r *RabbitMQ) publishOnce(ctx context.Context, queue string, body []byte) error {
	confirm, err := r.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		"",    // default exchange
		queue, // routing key (queue name)
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryUnavailable, err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrDeliveryUnavailable, ctx.Err())
	case <-confirm.Done():
		if !confirm.Acked() {
			return fmt.Errorf("%w: broker rejected message", ErrDeliveryUnavailable)
		}
	}

	return nil
}

// Consume registers a manual-ack consumer on a queue. The returned channel
// closes when the connection drops; the caller must treat that as fatal and
// restart under supervision.
func (r *RabbitMQ) Consume(queue, consumerTag string) (<-chan amqp.Delivery, error) {
	messages, err := r.channel.Consume(
		queue,
		consumerTag,
		false, // auto-ack (false = manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	log.Printf("👂 Listening on queue: %s (consumer: %s)", queue, consumerTag)
	return messages, nil
}

// Close closes the channel and connection.
func (r *RabbitMQ) Close() {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}
