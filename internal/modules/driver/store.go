// README: Driver store backed by PostgreSQL.
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"haulr/internal/infra"
	"haulr/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const driverColumns = `
	id, name, rating, vehicle_type, status, current_jobs, experience_years,
	completed_deliveries, specializations, last_delivery_at, lat, lng, updated_at`

func (s *Store) List(ctx context.Context, f Filter) ([]Driver, error) {
	ids := make([]string, len(f.IDs))
	for i, id := range f.IDs {
		ids[i] = string(id)
	}
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
		SELECT `+driverColumns+`
		FROM drivers
		WHERE ($1 = '' OR status = $1)
		  AND (cardinality($2::text[]) = 0 OR id = ANY($2::text[]))
		ORDER BY id`,
		string(f.Status), ids,
	)
	if err != nil {
		return nil, fmt.Errorf("driver.List: %w", err)
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("driver.List scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, string(id))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("driver.Get: %w", err)
	}
	return &d, nil
}

// UpdateJobCount adds delta to current_jobs, refusing to go below zero.
func (s *Store) UpdateJobCount(ctx context.Context, id types.ID, delta int) error {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE drivers
		SET current_jobs = current_jobs + $2, updated_at = NOW()
		WHERE id = $1 AND current_jobs + $2 >= 0`,
		string(id), delta,
	)
	if err != nil {
		return fmt.Errorf("driver.UpdateJobCount: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrJobCount
	}
	return nil
}

// RecordCompletion releases one job slot and stamps the delivery time.
func (s *Store) RecordCompletion(ctx context.Context, id types.ID, at time.Time) error {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
		UPDATE drivers
		SET current_jobs = current_jobs - 1,
		    completed_deliveries = completed_deliveries + 1,
		    last_delivery_at = $2,
		    updated_at = NOW()
		WHERE id = $1 AND current_jobs > 0`,
		string(id), at,
	)
	if err != nil {
		return fmt.Errorf("driver.RecordCompletion: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrJobCount
	}
	return nil
}

// AddRating stores a rating for one delivery and recomputes the driver's
// rating as the mean of all their ratings. Re-rating a delivery is ignored.
func (s *Store) AddRating(ctx context.Context, id, deliveryID types.ID, rating int) (float64, error) {
	if rating < 1 || rating > 5 {
		return 0, ErrInvalidRating
	}
	q := infra.Conn(ctx, s.db)
	if _, err := q.Exec(ctx, `
		INSERT INTO driver_ratings (driver_id, delivery_id, rating, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (delivery_id) DO NOTHING`,
		string(id), string(deliveryID), rating,
	); err != nil {
		return 0, fmt.Errorf("driver.AddRating insert: %w", err)
	}
	var mean float64
	err := q.QueryRow(ctx, `
		UPDATE drivers
		SET rating = (SELECT AVG(rating)::float8 FROM driver_ratings WHERE driver_id = $1),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING rating`,
		string(id),
	).Scan(&mean)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("driver.AddRating recompute: %w", err)
	}
	return mean, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id types.ID, status Status) error {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx,
		`UPDATE drivers SET status = $2, updated_at = NOW() WHERE id = $1`,
		string(id), string(status),
	)
	if err != nil {
		return fmt.Errorf("driver.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateLocation(ctx context.Context, id types.ID, pos types.Coordinate) error {
	tag, err := infra.Conn(ctx, s.db).Exec(ctx,
		`UPDATE drivers SET lat = $2, lng = $3, updated_at = NOW() WHERE id = $1`,
		string(id), pos.Latitude, pos.Longitude,
	)
	if err != nil {
		return fmt.Errorf("driver.UpdateLocation: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func scanDriver(row pgx.Row) (Driver, error) {
	var d Driver
	var specs []string
	var lat, lng *float64
	err := row.Scan(
		&d.ID, &d.Name, &d.Rating, &d.VehicleType, &d.Status, &d.CurrentJobs, &d.ExperienceYears,
		&d.CompletedDeliveries, &specs, &d.LastDeliveryAt, &lat, &lng, &d.UpdatedAt,
	)
	if err != nil {
		return Driver{}, err
	}
	d.Specializations = make([]MaterialType, len(specs))
	for i, s := range specs {
		d.Specializations[i] = MaterialType(s)
	}
	if lat != nil && lng != nil {
		d.Location = &types.Coordinate{Latitude: *lat, Longitude: *lng}
	}
	return d, nil
}
