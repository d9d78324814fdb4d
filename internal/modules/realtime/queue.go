// README: Buffers lifecycle events so request handlers never wait on the broker.
package realtime

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"haulr/internal/metrics"
)

var ErrQueueFull = errors.New("event queue full")

// publishTimeout bounds one event including its retries.
const publishTimeout = 5 * time.Second

// Queue is a Publisher that enqueues events and hands them to next from a
// single worker, so events for a delivery leave in the order they were queued.
type Queue struct {
	events chan Event
	next   Publisher
	log    *zap.Logger
}

func NewQueue(next Publisher, size int, log *zap.Logger) *Queue {
	if size <= 0 {
		size = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{events: make(chan Event, size), next: next, log: log}
}

// Publish enqueues e without blocking. A full queue drops the event.
func (q *Queue) Publish(_ context.Context, e Event) error {
	select {
	case q.events <- e:
		return nil
	default:
		metrics.EventsTotal.WithLabelValues(e.Type, "dropped").Inc()
		q.log.Warn("delivery event dropped",
			zap.String("type", e.Type),
			zap.String("delivery_id", e.DeliveryID.String()),
		)
		return ErrQueueFull
	}
}

// Run forwards queued events until ctx is cancelled, then flushes what is
// already queued and returns.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case e := <-q.events:
			q.forward(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-q.events:
					q.forward(e)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) forward(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := q.next.Publish(ctx, e); err != nil {
		metrics.EventsTotal.WithLabelValues(e.Type, "failed").Inc()
		q.log.Warn("publishing delivery event failed",
			zap.String("routing_key", e.RoutingKey()),
			zap.Error(err),
		)
		return
	}
	metrics.EventsTotal.WithLabelValues(e.Type, "published").Inc()
}
