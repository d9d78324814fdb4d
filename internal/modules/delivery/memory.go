// README: In-memory delivery store for tests and bench runs; pair it with infra.MemoryTx.
package delivery

import (
	"context"
	"fmt"
	"sync"

	"haulr/internal/modules/payout"
	"haulr/internal/types"
)

type MemoryStore struct {
	mu         sync.Mutex
	deliveries map[types.ID]Delivery
	events     []Event
	payouts    map[types.ID]payout.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deliveries: make(map[types.ID]Delivery),
		payouts:    make(map[types.ID]payout.Record),
	}
}

func (s *MemoryStore) Create(_ context.Context, d *Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliveries[d.ID]; ok {
		return fmt.Errorf("delivery %s already exists", d.ID)
	}
	s.deliveries[d.ID] = *d
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ConditionalUpdateStatus(_ context.Context, id types.ID, expected Status, version int, next Status, p Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok || d.Status != expected || d.StatusVersion != version {
		return false, nil
	}
	d.Status = next
	d.StatusVersion++
	if p.DriverID != nil {
		v := *p.DriverID
		d.DriverID = &v
	}
	if p.Rating != nil {
		v := *p.Rating
		d.Rating = &v
	}
	if p.CancelReason != nil {
		v := *p.CancelReason
		d.CancelReason = &v
	}
	if p.PaymentStatus != nil {
		d.PaymentStatus = *p.PaymentStatus
	}
	switch next {
	case StatusAccepted:
		d.AcceptedAt = timePtr(p.At)
	case StatusPickedUp:
		d.PickedUpAt = timePtr(p.At)
	case StatusInTransit:
		d.InTransitAt = timePtr(p.At)
	case StatusDelivered:
		d.DeliveredAt = timePtr(p.At)
	case StatusRated:
		d.RatedAt = timePtr(p.At)
	case StatusCancelled:
		d.CancelledAt = timePtr(p.At)
	}
	s.deliveries[id] = d
	return true, nil
}

func (s *MemoryStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := *e
	ev.ID = int64(len(s.events) + 1)
	s.events = append(s.events, ev)
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, id types.ID) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.DeliveryID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) SavePayout(_ context.Context, r payout.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payouts[r.DeliveryID]; ok {
		return fmt.Errorf("payout for %s already recorded", r.DeliveryID)
	}
	s.payouts[r.DeliveryID] = r
	return nil
}

// Snapshot captures the store so a failed transaction can be undone.
func (s *MemoryStore) Snapshot() func() {
	s.mu.Lock()
	deliveries := make(map[types.ID]Delivery, len(s.deliveries))
	for k, v := range s.deliveries {
		deliveries[k] = v
	}
	events := append([]Event(nil), s.events...)
	payouts := make(map[types.ID]payout.Record, len(s.payouts))
	for k, v := range s.payouts {
		payouts[k] = v
	}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.deliveries = deliveries
		s.events = events
		s.payouts = payouts
	}
}

// Payout returns the recorded payout for a delivery, if any.
func (s *MemoryStore) Payout(id types.ID) (payout.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.payouts[id]
	return r, ok
}
