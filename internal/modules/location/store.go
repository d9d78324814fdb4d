// README: Driver position index backed by Redis GEO.
package location

import (
	"context"

	"github.com/redis/go-redis/v9"

	"haulr/internal/types"
)

const driverGeoKey = "location:drivers"

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// SetDriverPosition upserts a driver's last known position.
func (s *Store) SetDriverPosition(ctx context.Context, id types.ID, pos types.Coordinate) error {
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Longitude,
		Latitude:  pos.Latitude,
	}).Err()
}

// RemoveDriver drops a driver from the index, e.g. when they go offline.
func (s *Store) RemoveDriver(ctx context.Context, id types.ID) error {
	return s.redis.ZRem(ctx, driverGeoKey, string(id)).Err()
}

// NearbyDrivers returns driver ids within radiusKm of p, closest first.
func (s *Store) NearbyDrivers(ctx context.Context, p types.Coordinate, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Longitude,
		Latitude:   p.Latitude,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}
