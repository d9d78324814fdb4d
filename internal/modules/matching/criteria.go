// README: Matching criteria and their validation.
package matching

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"haulr/internal/modules/driver"
	"haulr/internal/types"
)

// Criteria describe one matching request. Build once and do not mutate.
type Criteria struct {
	CustomerLocation      *types.Coordinate    `json:"customer_location" validate:"required"`
	DeliveryLocation      *types.Coordinate    `json:"delivery_location" validate:"required"`
	MaterialType          driver.MaterialType  `json:"material_type" validate:"required,oneof=documents parcels food electronics furniture appliances building_materials"`
	WeightKg              float64              `json:"weight_kg" validate:"gte=0"`
	Urgency               Urgency              `json:"urgency" validate:"omitempty,oneof=low medium high"`
	MaxDistanceKm         *float64             `json:"max_distance_km,omitempty" validate:"omitempty,gt=0"`
	MinRating             *float64             `json:"min_rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	PreferredVehicleTypes []driver.VehicleType `json:"preferred_vehicle_types,omitempty" validate:"dive,oneof=motorcycle car bakkie van truck"`
}

// ValidationError reports malformed criteria. Nothing is scored when it is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid matching criteria: %s %s", e.Field, e.Reason)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c Criteria) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: fe.Namespace(), Reason: "failed '" + fe.Tag() + "'"}
	}
	return &ValidationError{Field: "criteria", Reason: err.Error()}
}

func (c Criteria) urgency() Urgency {
	if c.Urgency == "" {
		return UrgencyLow
	}
	return c.Urgency
}

func (c Criteria) maxDistance() float64 {
	if c.MaxDistanceKm != nil {
		return *c.MaxDistanceKm
	}
	return DefaultMaxDistanceKm
}

func (c Criteria) prefers(v driver.VehicleType) bool {
	for _, p := range c.PreferredVehicleTypes {
		if p == v {
			return true
		}
	}
	return false
}
