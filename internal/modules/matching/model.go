// README: Ranked driver candidates for a pickup point.
package matching

import (
	"ridecore/internal/modules/location"
)

// RankedDriver pairs a driver record with its straight-line distance from
// the pickup point.
type RankedDriver struct {
	Driver     location.DriverRecord
	DistanceKm float64
}
