package location

import (
	"math"
	"testing"

	"haulr/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Coordinate
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Coordinate{Latitude: -26.2041, Longitude: 28.0473},
			b:         types.Coordinate{Latitude: -26.2041, Longitude: 28.0473},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "Sandton to Johannesburg CBD (~11km)",
			a:         types.Coordinate{Latitude: -26.1076, Longitude: 28.0567},
			b:         types.Coordinate{Latitude: -26.2041, Longitude: 28.0473},
			wantKm:    10.8,
			tolerance: 1.0,
		},
		{
			name:      "Johannesburg to Cape Town (~1265km)",
			a:         types.Coordinate{Latitude: -26.2041, Longitude: 28.0473},
			b:         types.Coordinate{Latitude: -33.9249, Longitude: 18.4241},
			wantKm:    1265,
			tolerance: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := haversineKm(-25.0, 28.0, -26.0, 29.0)
	d2 := haversineKm(-26.0, 29.0, -25.0, 28.0)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestHaversineKm_AlongMeridian(t *testing.T) {
	// 5 km due north is exactly R * dLat.
	dLat := 5.0 / earthRadiusKm * 180 / math.Pi
	got := DistanceKm(types.Coordinate{Latitude: -26.0, Longitude: 28.0}, types.Coordinate{Latitude: -26.0 + dLat, Longitude: 28.0})
	if math.Abs(got-5.0) > 1e-9 {
		t.Errorf("expected 5km, got %.12f", got)
	}
}

func TestDistanceKm_NaNPropagates(t *testing.T) {
	got := DistanceKm(types.Coordinate{Latitude: math.NaN()}, types.Coordinate{})
	if !math.IsNaN(got) {
		t.Errorf("expected NaN, got %f", got)
	}
}
