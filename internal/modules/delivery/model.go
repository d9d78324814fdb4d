// README: Delivery aggregate, lifecycle states and the transition table.
package delivery

import (
	"time"

	"haulr/internal/modules/driver"
	"haulr/internal/modules/matching"
	"haulr/internal/modules/pricing"
	"haulr/internal/types"
)

type Status string

const (
	StatusNone      Status = "none"
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPickedUp  Status = "picked_up"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusRated     Status = "rated"
	StatusCancelled Status = "cancelled"
)

// Action is what a caller asks the lifecycle to do.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionPickup  Action = "pickup"
	ActionTransit Action = "transit"
	ActionDeliver Action = "deliver"
	ActionRate    Action = "rate"
	ActionCancel  Action = "cancel"
)

// Target returns the status an action moves a delivery to.
func (a Action) Target() (Status, bool) {
	switch a {
	case ActionAccept:
		return StatusAccepted, true
	case ActionPickup:
		return StatusPickedUp, true
	case ActionTransit:
		return StatusInTransit, true
	case ActionDeliver:
		return StatusDelivered, true
	case ActionRate:
		return StatusRated, true
	case ActionCancel:
		return StatusCancelled, true
	}
	return "", false
}

type ActorType string

const (
	ActorCustomer ActorType = "customer"
	ActorDriver   ActorType = "driver"
	ActorSystem   ActorType = "system"
)

type ItemWeight string

const (
	ItemWeightLight  ItemWeight = "light"
	ItemWeightMedium ItemWeight = "medium"
	ItemWeightHeavy  ItemWeight = "heavy"
)

type PaymentMethod string

const (
	PaymentPayPal PaymentMethod = "paypal"
	PaymentEFT    PaymentMethod = "eft"
)

type PaymentStatus string

const (
	PaymentPending      PaymentStatus = "pending"
	PaymentPayoutQueued PaymentStatus = "payout_queued"
	PaymentVoided       PaymentStatus = "voided"
)

type Place struct {
	Address    string           `json:"address" validate:"required,max=300"`
	Coordinate types.Coordinate `json:"coordinate"`
}

type Delivery struct {
	ID              types.ID            `json:"id"`
	CustomerID      types.ID            `json:"customer_id"`
	DriverID        *types.ID           `json:"driver_id,omitempty"`
	Status          Status              `json:"status"`
	StatusVersion   int                 `json:"status_version"`
	Pickup          Place               `json:"pickup"`
	Dropoff         Place               `json:"dropoff"`
	ItemDescription string              `json:"item_description"`
	ItemSize        pricing.ItemSize    `json:"item_size"`
	ItemWeight      ItemWeight          `json:"item_weight"`
	MaterialType    driver.MaterialType `json:"material_type"`
	WeightKg        float64             `json:"weight_kg"`
	Urgency         matching.Urgency    `json:"urgency"`
	DistanceKm      float64             `json:"distance_km"`
	DeliveryFee     types.Money         `json:"delivery_fee"`
	PaymentMethod   PaymentMethod       `json:"payment_method"`
	PaymentStatus   PaymentStatus       `json:"payment_status"`
	Rating          *int                `json:"rating,omitempty"`
	CancelReason    *string             `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	AcceptedAt      *time.Time          `json:"accepted_at,omitempty"`
	PickedUpAt      *time.Time          `json:"picked_up_at,omitempty"`
	InTransitAt     *time.Time          `json:"in_transit_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	RatedAt         *time.Time          `json:"rated_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
}

// Criteria rebuilds the matching request for a stored delivery.
func (d *Delivery) Criteria() matching.Criteria {
	pickup, dropoff := d.Pickup.Coordinate, d.Dropoff.Coordinate
	return matching.Criteria{
		CustomerLocation: &pickup,
		DeliveryLocation: &dropoff,
		MaterialType:     d.MaterialType,
		WeightKg:         d.WeightKg,
		Urgency:          d.Urgency,
	}
}

func (d *Delivery) assignedTo(id types.ID) bool {
	return d.DriverID != nil && *d.DriverID == id
}

// Patch carries the fields a guarded status update may set alongside the status.
// Nil fields are left unchanged.
type Patch struct {
	DriverID      *types.ID
	Rating        *int
	CancelReason  *string
	PaymentStatus *PaymentStatus
	At            time.Time
}

type Event struct {
	ID         int64     `json:"id"`
	DeliveryID types.ID  `json:"delivery_id"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	ActorType  ActorType `json:"actor_type"`
	ActorID    *types.ID `json:"actor_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AllowedTransitions is the delivery state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusCancelled},
	StatusAccepted:  {StatusPickedUp, StatusCancelled},
	StatusPickedUp:  {StatusInTransit},
	StatusInTransit: {StatusDelivered},
	StatusDelivered: {StatusRated},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// holdsDriver reports whether a delivery in s counts towards its driver's CurrentJobs.
func holdsDriver(s Status) bool {
	switch s {
	case StatusAccepted, StatusPickedUp, StatusInTransit:
		return true
	}
	return false
}
