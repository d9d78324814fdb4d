// README: Pricing service computes delivery fee quotes and driver cost estimates.
package pricing

import (
	"context"
	"errors"
	"math"

	"haulr/internal/types"
)

// RateSource returns the configured rate for an item size.
type RateSource interface {
	GetRate(ctx context.Context, size ItemSize) (Rate, error)
}

type Service struct {
	store RateSource
}

// NewService builds the pricing service. A nil store falls back to built-in rates.
func NewService(store RateSource) *Service {
	return &Service{store: store}
}

// Quote prices a delivery from pickup-to-dropoff distance and item size.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (types.Money, error) {
	if _, ok := defaultRates[req.ItemSize]; !ok {
		return types.Money{}, ErrUnknownSize
	}
	rate := defaultRates[req.ItemSize]
	if s.store != nil {
		r, err := s.store.GetRate(ctx, req.ItemSize)
		switch {
		case err == nil:
			rate = r
		case !errors.Is(err, ErrNoRate):
			return types.Money{}, err
		}
	}
	km := math.Max(0, req.DistanceKm)
	amount := rate.BaseFare + int64(math.Ceil(km*float64(rate.PerKm)))
	return types.Money{Amount: amount, Currency: rate.Currency}, nil
}

// EstimateCost is the cost a driver quote is ranked with:
// ceil((50 + 8 per km + 2 per kg) * multiplier) whole rand, returned in cents.
func EstimateCost(distanceKm, weightKg, multiplier float64) types.Money {
	rands := math.Ceil((50 + distanceKm*8 + weightKg*2) * multiplier)
	return types.FromCents(int64(rands) * 100)
}
