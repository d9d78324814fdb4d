// README: Matching service loads the candidate pool and ranks it.
package matching

import (
	"context"
	"time"

	"go.uber.org/zap"

	"haulr/internal/metrics"
	"haulr/internal/modules/driver"
	"haulr/internal/types"
)

// DriverSource lists drivers from the system of record.
type DriverSource interface {
	List(ctx context.Context, f driver.Filter) ([]driver.Driver, error)
}

// NearbyIndex narrows the pool to drivers near a point.
type NearbyIndex interface {
	NearbyDrivers(ctx context.Context, p types.Coordinate, radiusKm float64) ([]types.ID, error)
}

// OfferLog remembers which drivers were offered a delivery.
type OfferLog interface {
	RecordOffer(ctx context.Context, deliveryID types.ID, driverIDs []types.ID, at time.Time) error
	OfferedDrivers(ctx context.Context, deliveryID types.ID) ([]types.ID, error)
	OfferedAt(ctx context.Context, deliveryID types.ID) (time.Time, bool, error)
}

type Service struct {
	engine   *Engine
	drivers  DriverSource
	nearby   NearbyIndex
	offers   OfferLog
	log      *zap.Logger
	// radiusKm bounds the geo prefilter when criteria carry no max distance.
	radiusKm float64
}

// NewService wires the engine to its pool sources. nearby and offers may be nil.
func NewService(engine *Engine, drivers DriverSource, nearby NearbyIndex, offers OfferLog, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{engine: engine, drivers: drivers, nearby: nearby, offers: offers, log: log}
}

// WithSearchRadius sets the default geo prefilter radius.
func (s *Service) WithSearchRadius(km float64) *Service {
	if km > 0 {
		s.radiusKm = km
	}
	return s
}

func (s *Service) searchRadius(c Criteria) float64 {
	if c.MaxDistanceKm == nil && s.radiusKm > 0 {
		return s.radiusKm
	}
	return c.maxDistance()
}

// Pool returns available drivers that could serve c. When the geo index is
// configured it is used to prefilter; its failure falls back to a full scan.
func (s *Service) Pool(ctx context.Context, c Criteria) ([]driver.Driver, error) {
	f := driver.Filter{Status: driver.StatusAvailable}
	if s.nearby != nil && c.CustomerLocation != nil {
		ids, err := s.nearby.NearbyDrivers(ctx, *c.CustomerLocation, s.searchRadius(c))
		switch {
		case err != nil:
			s.log.Warn("nearby index lookup failed, scanning all drivers", zap.Error(err))
		case len(ids) == 0:
			return nil, nil
		default:
			f.IDs = ids
		}
	}
	return s.drivers.List(ctx, f)
}

// Rank validates c and returns the top limit drivers for it.
func (s *Service) Rank(ctx context.Context, c Criteria, limit int) ([]DriverScore, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	pool, err := s.Pool(ctx, c)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	ranked := s.engine.FindBestMatches(pool, c, limit)
	metrics.MatchingDuration.Observe(time.Since(start).Seconds())
	metrics.MatchingCandidates.Observe(float64(len(pool)))
	s.log.Debug("ranked drivers",
		zap.Int("pool", len(pool)),
		zap.Int("returned", len(ranked)),
	)
	return ranked, nil
}

// Best validates c and picks the single best available driver.
func (s *Service) Best(ctx context.Context, c Criteria) (DriverScore, bool, error) {
	ranked, err := s.Rank(ctx, c, 1)
	if err != nil || len(ranked) == 0 {
		return DriverScore{}, false, err
	}
	return ranked[0], true, nil
}

func (s *Service) RecordOffer(ctx context.Context, deliveryID types.ID, scores []DriverScore) error {
	if s.offers == nil || len(scores) == 0 {
		return nil
	}
	ids := make([]types.ID, len(scores))
	for i, sc := range scores {
		ids[i] = sc.DriverID
	}
	return s.offers.RecordOffer(ctx, deliveryID, ids, time.Now())
}

func (s *Service) OfferedDrivers(ctx context.Context, deliveryID types.ID) ([]types.ID, error) {
	if s.offers == nil {
		return nil, nil
	}
	return s.offers.OfferedDrivers(ctx, deliveryID)
}

// OfferedAt reports when the delivery was first offered. ok is false when it
// never was or no offer log is configured.
func (s *Service) OfferedAt(ctx context.Context, deliveryID types.ID) (at time.Time, ok bool, err error) {
	if s.offers == nil {
		return time.Time{}, false, nil
	}
	return s.offers.OfferedAt(ctx, deliveryID)
}
