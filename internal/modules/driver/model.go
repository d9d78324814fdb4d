// README: Driver aggregate, vehicle and material enums.
package driver

import (
	"errors"
	"time"

	"haulr/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
	StatusOffline   Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusOffline:
		return true
	}
	return false
}

type VehicleType string

const (
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleCar        VehicleType = "car"
	VehicleBakkie     VehicleType = "bakkie"
	VehicleVan        VehicleType = "van"
	VehicleTruck      VehicleType = "truck"
)

type MaterialType string

const (
	MaterialDocuments         MaterialType = "documents"
	MaterialParcels           MaterialType = "parcels"
	MaterialFood              MaterialType = "food"
	MaterialElectronics       MaterialType = "electronics"
	MaterialFurniture         MaterialType = "furniture"
	MaterialAppliances        MaterialType = "appliances"
	MaterialBuildingMaterials MaterialType = "building_materials"
)

type Driver struct {
	ID                  types.ID
	Name                string
	Rating              float64
	VehicleType         VehicleType
	Status              Status
	CurrentJobs         int
	ExperienceYears     int
	CompletedDeliveries int
	Specializations     []MaterialType
	LastDeliveryAt      *time.Time
	Location            *types.Coordinate
	UpdatedAt           time.Time
}

func (d Driver) Specializes(m MaterialType) bool {
	for _, s := range d.Specializations {
		if s == m {
			return true
		}
	}
	return false
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status Status
	IDs    []types.ID
}

var (
	ErrNotFound        = errors.New("driver not found")
	ErrInvalidStatus   = errors.New("invalid driver status")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrInvalidPosition = errors.New("invalid driver position")
	// ErrJobCount is returned when a job counter update would make it negative.
	ErrJobCount = errors.New("driver job count conflict")
)
