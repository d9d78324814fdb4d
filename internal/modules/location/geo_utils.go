// README: Great-circle distance between coordinates (Haversine).
package location

import (
	"math"

	"haulr/internal/types"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between a and b in kilometres.
// Invalid input (NaN, out-of-range degrees) is not checked and propagates.
func DistanceKm(a, b types.Coordinate) float64 {
	return haversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// haversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
