// README: Emits payout records to the billing topic.
package payout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// Writer is the subset of kafka.Writer the publisher needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher struct {
	w Writer
}

func NewPublisher(w Writer) *Publisher {
	return &Publisher{w: w}
}

// Publish writes r keyed by delivery id so retries land on the same partition.
func (p *Publisher) Publish(ctx context.Context, r Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal payout: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(r.DeliveryID),
		Value: b,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte("payout.created")},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write payout %s: %w", r.DeliveryID, err)
	}
	return nil
}
