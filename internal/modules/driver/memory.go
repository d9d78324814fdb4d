// README: In-memory driver store for tests and bench runs; pair it with infra.MemoryTx.
package driver

import (
	"context"
	"sort"
	"sync"
	"time"

	"haulr/internal/types"
)

type MemoryStore struct {
	mu      sync.RWMutex
	drivers map[types.ID]Driver
	ratings map[types.ID]map[types.ID]int // driver -> delivery -> rating
}

func NewMemoryStore(drivers ...Driver) *MemoryStore {
	s := &MemoryStore{
		drivers: make(map[types.ID]Driver),
		ratings: make(map[types.ID]map[types.ID]int),
	}
	for _, d := range drivers {
		s.Put(d)
	}
	return s
}

// Put inserts or replaces a driver.
func (s *MemoryStore) Put(d Driver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drivers[d.ID] = cloneDriver(d)
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var wanted map[types.ID]bool
	if len(f.IDs) > 0 {
		wanted = make(map[types.ID]bool, len(f.IDs))
		for _, id := range f.IDs {
			wanted[id] = true
		}
	}
	out := make([]Driver, 0, len(s.drivers))
	for _, d := range s.drivers {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if wanted != nil && !wanted[d.ID] {
			continue
		}
		out = append(out, cloneDriver(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneDriver(d)
	return &cp, nil
}

func (s *MemoryStore) UpdateJobCount(ctx context.Context, id types.ID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return ErrNotFound
	}
	if d.CurrentJobs+delta < 0 {
		return ErrJobCount
	}
	d.CurrentJobs += delta
	s.drivers[id] = d
	return nil
}

func (s *MemoryStore) RecordCompletion(ctx context.Context, id types.ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return ErrNotFound
	}
	if d.CurrentJobs < 1 {
		return ErrJobCount
	}
	d.CurrentJobs--
	d.CompletedDeliveries++
	d.LastDeliveryAt = &at
	s.drivers[id] = d
	return nil
}

func (s *MemoryStore) AddRating(ctx context.Context, id, deliveryID types.ID, rating int) (float64, error) {
	if rating < 1 || rating > 5 {
		return 0, ErrInvalidRating
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return 0, ErrNotFound
	}
	byDelivery := s.ratings[id]
	if byDelivery == nil {
		byDelivery = make(map[types.ID]int)
		s.ratings[id] = byDelivery
	}
	if _, exists := byDelivery[deliveryID]; !exists {
		byDelivery[deliveryID] = rating
	}
	sum := 0
	for _, r := range byDelivery {
		sum += r
	}
	d.Rating = float64(sum) / float64(len(byDelivery))
	s.drivers[id] = d
	return d.Rating, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id types.ID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	s.drivers[id] = d
	return nil
}

func (s *MemoryStore) UpdateLocation(ctx context.Context, id types.ID, pos types.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drivers[id]
	if !ok {
		return ErrNotFound
	}
	d.Location = &pos
	s.drivers[id] = d
	return nil
}

// Snapshot captures the store so a failed transaction can be undone.
func (s *MemoryStore) Snapshot() func() {
	s.mu.RLock()
	drivers := make(map[types.ID]Driver, len(s.drivers))
	for k, v := range s.drivers {
		drivers[k] = cloneDriver(v)
	}
	ratings := make(map[types.ID]map[types.ID]int, len(s.ratings))
	for id, byDelivery := range s.ratings {
		cp := make(map[types.ID]int, len(byDelivery))
		for k, v := range byDelivery {
			cp[k] = v
		}
		ratings[id] = cp
	}
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.drivers = drivers
		s.ratings = ratings
	}
}

func cloneDriver(d Driver) Driver {
	cp := d
	if d.Specializations != nil {
		cp.Specializations = append([]MaterialType(nil), d.Specializations...)
	}
	if d.LastDeliveryAt != nil {
		t := *d.LastDeliveryAt
		cp.LastDeliveryAt = &t
	}
	if d.Location != nil {
		loc := *d.Location
		cp.Location = &loc
	}
	return cp
}
