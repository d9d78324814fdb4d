// README: Delivery store backed by PostgreSQL; status changes are compare-and-swap.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"haulr/internal/infra"
	"haulr/internal/modules/payout"
	"haulr/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, d *Delivery) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
        INSERT INTO deliveries (
            id, customer_id, driver_id, status, status_version,
            pickup_address, pickup_lat, pickup_lng,
            dropoff_address, dropoff_lat, dropoff_lng,
            item_description, item_size, item_weight, material_type, weight_kg,
            urgency, distance_km, delivery_fee, currency,
            payment_method, payment_status, created_at
        ) VALUES (
            $1, $2, $3, $4, $5,
            $6, $7, $8,
            $9, $10, $11,
            $12, $13, $14, $15, $16,
            $17, $18, $19, $20,
            $21, $22, $23
        )`,
		string(d.ID), string(d.CustomerID), toStringPtr(d.DriverID), string(d.Status), d.StatusVersion,
		d.Pickup.Address, d.Pickup.Coordinate.Latitude, d.Pickup.Coordinate.Longitude,
		d.Dropoff.Address, d.Dropoff.Coordinate.Latitude, d.Dropoff.Coordinate.Longitude,
		d.ItemDescription, string(d.ItemSize), string(d.ItemWeight), string(d.MaterialType), d.WeightKg,
		string(d.Urgency), d.DistanceKm, d.DeliveryFee.Amount, d.DeliveryFee.Currency,
		string(d.PaymentMethod), string(d.PaymentStatus), d.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Delivery, error) {
	row := infra.Conn(ctx, s.db).QueryRow(ctx, `
        SELECT id, customer_id, driver_id, status, status_version,
               pickup_address, pickup_lat, pickup_lng,
               dropoff_address, dropoff_lat, dropoff_lng,
               item_description, item_size, item_weight, material_type, weight_kg,
               urgency, distance_km, delivery_fee, currency,
               payment_method, payment_status, rating, cancel_reason,
               created_at, accepted_at, picked_up_at, in_transit_at,
               delivered_at, rated_at, cancelled_at
        FROM deliveries
        WHERE id = $1`, string(id),
	)

	var (
		d        Delivery
		driverID *string
	)
	err := row.Scan(
		&d.ID, &d.CustomerID, &driverID, &d.Status, &d.StatusVersion,
		&d.Pickup.Address, &d.Pickup.Coordinate.Latitude, &d.Pickup.Coordinate.Longitude,
		&d.Dropoff.Address, &d.Dropoff.Coordinate.Latitude, &d.Dropoff.Coordinate.Longitude,
		&d.ItemDescription, &d.ItemSize, &d.ItemWeight, &d.MaterialType, &d.WeightKg,
		&d.Urgency, &d.DistanceKm, &d.DeliveryFee.Amount, &d.DeliveryFee.Currency,
		&d.PaymentMethod, &d.PaymentStatus, &d.Rating, &d.CancelReason,
		&d.CreatedAt, &d.AcceptedAt, &d.PickedUpAt, &d.InTransitAt,
		&d.DeliveredAt, &d.RatedAt, &d.CancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if driverID != nil {
		id := types.ID(*driverID)
		d.DriverID = &id
	}
	return &d, nil
}

// ConditionalUpdateStatus moves a delivery from expected to next only if it is
// still in expected at the given version. It reports whether the row changed.
func (s *Store) ConditionalUpdateStatus(ctx context.Context, id types.ID, expected Status, version int, next Status, p Patch) (bool, error) {
	var paymentStatus *string
	if p.PaymentStatus != nil {
		v := string(*p.PaymentStatus)
		paymentStatus = &v
	}
	tag, err := infra.Conn(ctx, s.db).Exec(ctx, `
        UPDATE deliveries
        SET status = $1,
            status_version = status_version + 1,
            driver_id = COALESCE($2, driver_id),
            rating = COALESCE($3, rating),
            cancel_reason = COALESCE($4, cancel_reason),
            payment_status = COALESCE($5, payment_status),
            accepted_at = CASE WHEN $1 = 'accepted' THEN $6 ELSE accepted_at END,
            picked_up_at = CASE WHEN $1 = 'picked_up' THEN $6 ELSE picked_up_at END,
            in_transit_at = CASE WHEN $1 = 'in_transit' THEN $6 ELSE in_transit_at END,
            delivered_at = CASE WHEN $1 = 'delivered' THEN $6 ELSE delivered_at END,
            rated_at = CASE WHEN $1 = 'rated' THEN $6 ELSE rated_at END,
            cancelled_at = CASE WHEN $1 = 'cancelled' THEN $6 ELSE cancelled_at END
        WHERE id = $7 AND status = $8 AND status_version = $9`,
		string(next),
		toStringPtr(p.DriverID),
		p.Rating,
		p.CancelReason,
		paymentStatus,
		p.At,
		string(id),
		string(expected),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
        INSERT INTO delivery_state_events (
            delivery_id, from_status, to_status, actor_type, actor_id, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(e.DeliveryID),
		string(e.FromStatus),
		string(e.ToStatus),
		string(e.ActorType),
		toStringPtr(e.ActorID),
		e.CreatedAt,
	)
	return err
}

func (s *Store) ListEvents(ctx context.Context, id types.ID) ([]Event, error) {
	rows, err := infra.Conn(ctx, s.db).Query(ctx, `
        SELECT id, delivery_id, from_status, to_status, actor_type, actor_id, created_at
        FROM delivery_state_events
        WHERE delivery_id = $1
        ORDER BY id`, string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e       Event
			actorID *string
		)
		if err := rows.Scan(&e.ID, &e.DeliveryID, &e.FromStatus, &e.ToStatus, &e.ActorType, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID != nil {
			id := types.ID(*actorID)
			e.ActorID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SavePayout stores the payout for a delivery. A delivery has at most one.
func (s *Store) SavePayout(ctx context.Context, r payout.Record) error {
	_, err := infra.Conn(ctx, s.db).Exec(ctx, `
        INSERT INTO payouts (delivery_id, driver_id, amount, platform_fee, currency, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		string(r.DeliveryID),
		string(r.DriverID),
		r.Amount.Amount,
		r.PlatformFee.Amount,
		r.Amount.Currency,
		r.CreatedAt,
	)
	return err
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}
