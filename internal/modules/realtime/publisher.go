// README: Delivery lifecycle events published to a RabbitMQ topic exchange.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"haulr/internal/types"
)

const DefaultExchange = "delivery_events"

// Event describes one observable change to a delivery.
type Event struct {
	Type       string    `json:"type"`
	DeliveryID types.ID  `json:"delivery_id"`
	Status     string    `json:"status"`
	DriverID   *types.ID `json:"driver_id,omitempty"`
	CustomerID types.ID  `json:"customer_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RoutingKey is "<type>.<delivery id>", e.g. delivery.accepted.42.
func (e Event) RoutingKey() string {
	return fmt.Sprintf("%s.%s", e.Type, e.DeliveryID)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitPublisher struct {
	ch       Channel
	exchange string
	attempts int
	backoff  time.Duration
}

func NewRabbitPublisher(ch Channel, exchange string) *RabbitPublisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &RabbitPublisher{ch: ch, exchange: exchange, attempts: 3, backoff: 100 * time.Millisecond}
}

// Publish retries transient failures with linear backoff.
func (p *RabbitPublisher) Publish(ctx context.Context, e Event) error {
	const op = "RabbitPublisher.Publish"

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%s: marshal event: %w", op, err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.OccurredAt,
		Type:         e.Type,
		Body:         body,
	}

	for attempt := 1; ; attempt++ {
		err = p.ch.PublishWithContext(ctx, p.exchange, e.RoutingKey(), false, false, msg)
		if err == nil {
			return nil
		}
		if attempt >= p.attempts {
			return fmt.Errorf("%s: publish %s after %d attempts: %w", op, e.RoutingKey(), attempt, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(time.Duration(attempt) * p.backoff):
		}
	}
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
