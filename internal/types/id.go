// README: Identity and coordinate value types shared by every module.
package types

type ID string

func (id ID) String() string { return string(id) }

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}
