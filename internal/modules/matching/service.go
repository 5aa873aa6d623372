// README: Proximity matcher ranks available drivers around a pickup point.
package matching

import (
	"context"
	"sort"

	"ridecore/internal/config"
	"ridecore/internal/modules/location"
	"ridecore/internal/types"
)

type Service struct {
	registry location.Registry
	cfg      config.MatchingConfig
}

func NewService(registry location.Registry, cfg config.MatchingConfig) *Service {
	return &Service{registry: registry, cfg: cfg}
}

// FindNearby filters drivers to those that are available, have a known
// position, and sit within radiusKm of pickup (straight-line distance).
// Results are ordered ascending by distance; ties break on driver id
// ascending so the ranking is deterministic. An empty slice means no
// driver qualifies.
func FindNearby(pickup types.Point, drivers []location.DriverRecord, radiusKm float64) []RankedDriver {
	ranked := make([]RankedDriver, 0, len(drivers))
	for _, d := range drivers {
		if !d.Available || d.Position == nil {
			continue
		}
		dist := location.HaversineKm(pickup.Lat, pickup.Lng, d.Position.Lat, d.Position.Lng)
		if dist > radiusKm {
			continue
		}
		ranked = append(ranked, RankedDriver{Driver: d, DistanceKm: dist})
	}

	// pre-sort by id, then stable-sort by distance: equal distances keep
	// id order, making the result deterministic.
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Driver.ID < ranked[j].Driver.ID
	})
	location.SortByDistance(ranked, func(r RankedDriver) float64 { return r.DistanceKm })
	return ranked
}

// NearbyForPickup ranks the current registry contents around pickup using
// the configured search radius.
func (s *Service) NearbyForPickup(ctx context.Context, pickup types.Point) ([]RankedDriver, error) {
	drivers, err := s.registry.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return FindNearby(pickup, drivers, s.cfg.MaxDriverSearchRadiusKm), nil
}
