// README: Pricing store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) GetRate(ctx context.Context, size ItemSize) (Rate, error) {
	r := Rate{ItemSize: size}
	err := s.db.QueryRow(ctx, `
		SELECT base_fare, per_km, currency
		FROM pricing_rates
		WHERE item_size = $1`, string(size),
	).Scan(&r.BaseFare, &r.PerKm, &r.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rate{}, ErrNoRate
	}
	if err != nil {
		return Rate{}, fmt.Errorf("pricing.GetRate: %w", err)
	}
	return r, nil
}
