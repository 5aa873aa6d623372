// README: Pricing service computes deterministic fares from trip metrics.
package pricing

import (
	"math"

	"ridecore/internal/config"
	"ridecore/internal/modules/location"
	"ridecore/internal/types"
)

// assumedSpeedKmh is the average speed used to derive a duration when no
// routed estimate is available.
const assumedSpeedKmh = 30.0

type Service struct {
	cfg config.PricingConfig
}

func NewService(cfg config.PricingConfig) *Service {
	return &Service{cfg: cfg}
}

// Estimate maps distance and duration onto a fare:
//
//	fare = baseFare + distanceKm*perKmRate + durationMin*perMinRate
//
// rounded half-up to the currency's smallest denomination. Negative or
// non-finite inputs are clamped to zero before computation.
func (s *Service) Estimate(distanceKm, durationMin float64) types.Money {
	distanceKm = clamp(distanceKm)
	durationMin = clamp(durationMin)

	raw := float64(s.cfg.BaseFare) +
		distanceKm*float64(s.cfg.PerKmRate) +
		durationMin*float64(s.cfg.PerMinRate)

	return types.Money{
		Amount:   int64(math.Floor(raw + 0.5)),
		Currency: s.cfg.Currency,
	}
}

// EstimateFromHaversine produces a degraded quote when no routed
// distance/duration is available: great-circle distance plus a fixed
// average speed. The result is flagged Estimated.
func (s *Service) EstimateFromHaversine(pickup, destination types.Point) Quote {
	dist := location.HaversineKm(pickup.Lat, pickup.Lng, destination.Lat, destination.Lng)
	dur := dist / assumedSpeedKmh * 60.0
	return Quote{
		Fare:        s.Estimate(dist, dur),
		DistanceKm:  dist,
		DurationMin: dur,
		Estimated:   true,
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
