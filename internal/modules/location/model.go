// README: Driver records held by the process-wide registry.
package location

import (
	"ridecore/internal/types"
)

// Vehicle describes the car a driver operates.
type Vehicle struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Plate string `json:"plate"`
	Type  string `json:"type"`
}

// DriverRecord is the registry's view of one driver. Position is nil while
// the driver's location is unknown.
type DriverRecord struct {
	ID        types.ID     `json:"id"`
	Name      string       `json:"name"`
	Position  *types.Point `json:"position,omitempty"`
	Available bool         `json:"available"`
	Vehicle   Vehicle      `json:"vehicle"`
}
