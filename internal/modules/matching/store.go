// README: Offer bookkeeping in Redis: which drivers were offered a delivery and when.
package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"haulr/internal/types"
)

const (
	offeredAtKeyFmt = "matching:delivery:%s:offered_at"
	offeredKeyFmt   = "matching:delivery:%s:offered"
	// Deliveries resolve well within a week.
	keyTTL = 7 * 24 * time.Hour
)

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

// RecordOffer stores the first offer time and adds driverIDs to the offered set.
func (s *Store) RecordOffer(ctx context.Context, deliveryID types.ID, driverIDs []types.ID, at time.Time) error {
	pipe := s.redis.Pipeline()
	pipe.SetNX(ctx, fmt.Sprintf(offeredAtKeyFmt, deliveryID), at.UTC().Format(time.RFC3339), keyTTL)
	if len(driverIDs) > 0 {
		members := make([]interface{}, len(driverIDs))
		for i, d := range driverIDs {
			members[i] = string(d)
		}
		key := fmt.Sprintf(offeredKeyFmt, deliveryID)
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, keyTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) OfferedDrivers(ctx context.Context, deliveryID types.ID) ([]types.ID, error) {
	members, err := s.redis.SMembers(ctx, fmt.Sprintf(offeredKeyFmt, deliveryID)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(members))
	for i, m := range members {
		ids[i] = types.ID(m)
	}
	return ids, nil
}

// OfferedAt returns when the delivery was first offered, and whether it has been.
func (s *Store) OfferedAt(ctx context.Context, deliveryID types.ID) (time.Time, bool, error) {
	val, err := s.redis.Get(ctx, fmt.Sprintf(offeredAtKeyFmt, deliveryID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
