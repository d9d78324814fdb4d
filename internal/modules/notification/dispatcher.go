// README: Bounded async fan-out of notification intents to gateways.
package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"haulr/internal/metrics"
)

const sendTimeout = 10 * time.Second

// Dispatcher queues intents and delivers them from a fixed worker pool so
// callers never block on a slow gateway.
type Dispatcher struct {
	queue    chan Intent
	gateways []Gateway
	workers  int
	log      *zap.Logger
}

func NewDispatcher(queueSize, workers int, log *zap.Logger, gateways ...Gateway) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		queue:    make(chan Intent, queueSize),
		gateways: gateways,
		workers:  workers,
		log:      log,
	}
}

// Notify enqueues in without blocking. A full queue drops the intent.
func (d *Dispatcher) Notify(in Intent) error {
	select {
	case d.queue <- in:
		return nil
	default:
		metrics.NotificationsTotal.WithLabelValues(string(in.Category), "dropped").Inc()
		d.log.Warn("notification dropped",
			zap.String("user_id", in.UserID.String()),
			zap.String("category", string(in.Category)),
		)
		return ErrQueueFull
	}
}

// Run delivers queued intents until ctx is cancelled, then drains what is
// already queued and returns.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case in := <-d.queue:
					d.deliver(in)
				case <-ctx.Done():
					d.drain()
					return
				}
			}
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) drain() {
	for {
		select {
		case in := <-d.queue:
			d.deliver(in)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(in Intent) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	for _, g := range d.gateways {
		err := g.Send(ctx, in)
		result := "sent"
		switch {
		case errors.Is(err, ErrNoDeviceToken):
			result = "skipped"
		case err != nil:
			result = "failed"
			d.log.Warn("notification send failed",
				zap.String("user_id", in.UserID.String()),
				zap.String("category", string(in.Category)),
				zap.Error(err),
			)
		}
		metrics.NotificationsTotal.WithLabelValues(string(in.Category), result).Inc()
	}
}
