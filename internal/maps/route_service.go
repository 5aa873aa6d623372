package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"ridecore/internal/types"
)

// Route is a resolved driving route between two points.
type Route struct {
	DistanceKm  float64
	DurationMin float64
}

// RouteProvider resolves the driving distance and duration for a trip.
// Callers fall back to a great-circle estimate when it fails.
type RouteProvider interface {
	Route(ctx context.Context, origin, destination types.Point) (Route, error)
}

// RouteService resolves routes through the Google Maps Directions API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a RouteService with the given API key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Route returns the distance and duration of the first driving route from
// origin to destination.
func (s *RouteService) Route(ctx context.Context, origin, destination types.Point) (Route, error) {
	req := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", destination.Lat, destination.Lng),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := s.client.Directions(ctx, req)
	if err != nil {
		return Route{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, fmt.Errorf("no route found")
	}

	leg := routes[0].Legs[0]
	return Route{
		DistanceKm:  float64(leg.Distance.Meters) / 1000.0,
		DurationMin: leg.Duration.Minutes(),
	}, nil
}
