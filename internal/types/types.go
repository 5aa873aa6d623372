// README: Shared identifier and coordinate value types used across modules.
package types

// ID is an opaque entity identifier (rider, driver, ride).
type ID string

// Point is a geographic coordinate in decimal degrees, with an optional
// human-readable address. Treated as an immutable value.
type Point struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}
