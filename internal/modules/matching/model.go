// README: Matching criteria, score breakdown, factor weights and vehicle table.
package matching

import (
	"haulr/internal/modules/driver"
	"haulr/internal/types"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Multiplier boosts both the score and the cost estimate.
func (u Urgency) Multiplier() float64 {
	switch u {
	case UrgencyMedium:
		return 1.2
	case UrgencyHigh:
		return 1.5
	default:
		return 1.0
	}
}

// Factors are each normalised to [0,1].
type Factors struct {
	Distance     float64 `json:"distance"`
	Rating       float64 `json:"rating"`
	VehicleMatch float64 `json:"vehicle_match"`
	Availability float64 `json:"availability"`
	Experience   float64 `json:"experience"`
	LoadBalance  float64 `json:"load_balance"`
}

type DriverScore struct {
	DriverID                types.ID    `json:"driver_id"`
	Score                   float64     `json:"score"`
	Factors                 Factors     `json:"factors"`
	DistanceKm              float64     `json:"distance_km"`
	EstimatedArrivalMinutes int         `json:"estimated_arrival_minutes"`
	EstimatedCost           types.Money `json:"estimated_cost"`
}

// Factor weights in basis points.
const (
	weightDistance     = 2500
	weightRating       = 1500
	weightVehicleMatch = 2000
	weightAvailability = 2000
	weightExperience   = 1000
	weightLoadBalance  = 1000

	basisPoints = 10000
	weightTotal = weightDistance + weightRating + weightVehicleMatch +
		weightAvailability + weightExperience + weightLoadBalance
)

// Fails to compile unless the weights add up to exactly 1.0.
var _ [weightTotal - basisPoints]struct{} = [0]struct{}{}

const (
	DefaultLimit         = 5
	DefaultMaxDistanceKm = 20.0
	DefaultTrafficFactor = 1.2
	baseSpeedKmh         = 40.0
	maxConcurrentJobs    = 3
	fullExperienceYears  = 10.0
	fullDeliveryCount    = 500.0
	idleHoursForFullLoad = 4.0
	unknownVehicleScore  = 0.5
)

type vehicleCapacity struct {
	maxWeightKg float64
	suitableFor []driver.MaterialType
}

var vehicleCapacities = map[driver.VehicleType]vehicleCapacity{
	driver.VehicleMotorcycle: {
		maxWeightKg: 20,
		suitableFor: []driver.MaterialType{driver.MaterialDocuments, driver.MaterialParcels, driver.MaterialFood},
	},
	driver.VehicleCar: {
		maxWeightKg: 150,
		suitableFor: []driver.MaterialType{driver.MaterialDocuments, driver.MaterialParcels, driver.MaterialFood, driver.MaterialElectronics},
	},
	driver.VehicleBakkie: {
		maxWeightKg: 1000,
		suitableFor: []driver.MaterialType{driver.MaterialParcels, driver.MaterialElectronics, driver.MaterialFurniture, driver.MaterialAppliances, driver.MaterialBuildingMaterials},
	},
	driver.VehicleVan: {
		maxWeightKg: 1500,
		suitableFor: []driver.MaterialType{driver.MaterialParcels, driver.MaterialElectronics, driver.MaterialFurniture, driver.MaterialAppliances, driver.MaterialFood},
	},
	driver.VehicleTruck: {
		maxWeightKg: 8000,
		suitableFor: []driver.MaterialType{driver.MaterialFurniture, driver.MaterialAppliances, driver.MaterialBuildingMaterials},
	},
}

func (v vehicleCapacity) suits(m driver.MaterialType) bool {
	for _, s := range v.suitableFor {
		if s == m {
			return true
		}
	}
	return false
}
