// README: Per-driver suitability scoring.
package matching

import (
	"math"
	"time"

	"haulr/internal/modules/driver"
	"haulr/internal/modules/location"
	"haulr/internal/modules/pricing"
)

// Scorer computes a driver's suitability for one request. It holds no
// mutable state and is safe for concurrent use.
type Scorer struct {
	now           func() time.Time
	trafficFactor float64
}

func NewScorer(now func() time.Time, trafficFactor float64) *Scorer {
	if now == nil {
		now = time.Now
	}
	if trafficFactor <= 0 {
		trafficFactor = DefaultTrafficFactor
	}
	return &Scorer{now: now, trafficFactor: trafficFactor}
}

// Score returns false when the driver is not eligible for c at all.
func (s *Scorer) Score(d driver.Driver, c Criteria) (DriverScore, bool) {
	if d.Location == nil || c.CustomerLocation == nil {
		return DriverScore{}, false
	}
	dist := location.DistanceKm(*d.Location, *c.CustomerLocation)
	if c.MaxDistanceKm != nil && dist > *c.MaxDistanceKm {
		return DriverScore{}, false
	}
	if c.MinRating != nil && d.Rating < *c.MinRating {
		return DriverScore{}, false
	}

	f := Factors{
		Distance:     distanceFactor(dist, c.maxDistance()),
		Rating:       clamp01(d.Rating / 5.0),
		VehicleMatch: vehicleMatchFactor(d.VehicleType, c),
		Availability: availabilityFactor(d),
		Experience:   experienceFactor(d, c.MaterialType),
		LoadBalance:  s.loadBalanceFactor(d.LastDeliveryAt),
	}

	weighted := (f.Distance*weightDistance +
		f.Rating*weightRating +
		f.VehicleMatch*weightVehicleMatch +
		f.Availability*weightAvailability +
		f.Experience*weightExperience +
		f.LoadBalance*weightLoadBalance) / basisPoints

	mult := c.urgency().Multiplier()
	return DriverScore{
		DriverID:                d.ID,
		Score:                   math.Min(1.0, weighted*mult),
		Factors:                 f,
		DistanceKm:              dist,
		EstimatedArrivalMinutes: s.arrivalMinutes(dist),
		EstimatedCost:           pricing.EstimateCost(dist, c.WeightKg, mult),
	}, true
}

func (s *Scorer) arrivalMinutes(distKm float64) int {
	speed := baseSpeedKmh / s.trafficFactor
	return int(math.Ceil(distKm / speed * 60))
}

func (s *Scorer) loadBalanceFactor(last *time.Time) float64 {
	if last == nil {
		return 1.0
	}
	hours := s.now().Sub(*last).Hours()
	return clamp01(hours / idleHoursForFullLoad)
}

func distanceFactor(dist, maxDist float64) float64 {
	if dist > maxDist {
		return 0
	}
	return math.Max(0, (maxDist-dist)/maxDist)
}

func vehicleMatchFactor(v driver.VehicleType, c Criteria) float64 {
	capacity, ok := vehicleCapacities[v]
	if !ok {
		return unknownVehicleScore
	}
	weightOK := 0.0
	if c.WeightKg <= capacity.maxWeightKg {
		weightOK = 1.0
	}
	materialOK := 0.3
	if capacity.suits(c.MaterialType) {
		materialOK = 1.0
	}
	preference := 1.0
	if c.prefers(v) {
		preference = 1.2
	}
	return math.Min(1.0, weightOK*0.4+materialOK*0.4+preference*0.2)
}

func availabilityFactor(d driver.Driver) float64 {
	if d.Status != driver.StatusAvailable {
		return 0
	}
	return math.Max(0, float64(maxConcurrentJobs-d.CurrentJobs)/maxConcurrentJobs)
}

func experienceFactor(d driver.Driver, m driver.MaterialType) float64 {
	years := math.Min(float64(d.ExperienceYears)/fullExperienceYears, 1.0)
	deliveries := math.Min(math.Log(float64(d.CompletedDeliveries)+1)/math.Log(fullDeliveryCount), 1.0)
	specBonus := 1.0
	if d.Specializes(m) {
		specBonus = 1.2
	}
	return math.Min(1.0, years*0.4+deliveries*0.4+specBonus*0.2)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
