// README: Fare quote types for the pricing module.
package pricing

import "ridecore/internal/types"

// Quote is a computed fare together with the trip metrics it was derived
// from. Estimated is true when the metrics came from a great-circle
// approximation rather than a routed distance/duration — such a quote is
// an estimate, not a quoted fare.
type Quote struct {
	Fare        types.Money
	DistanceKm  float64
	DurationMin float64
	Estimated   bool
}
