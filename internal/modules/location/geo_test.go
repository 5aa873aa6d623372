package location

import (
	"math"
	"testing"

	"ridecore/internal/types"
)

func TestHaversineKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		lat1      float64
		lng1      float64
		lat2      float64
		lng2      float64
		wantKm    float64
		tolerance float64
	}{
		{
			name: "same point",
			lat1: -1.9441, lng1: 30.0619,
			lat2: -1.9441, lng2: 30.0619,
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name: "across central Kigali (~2km)",
			lat1: -1.9441, lng1: 30.0619,
			lat2: -1.9300, lng2: 30.0700,
			wantKm:    1.8,
			tolerance: 0.5,
		},
		{
			name: "New York to Los Angeles (~3944km)",
			lat1: 40.7128, lng1: -74.0060,
			lat2: 34.0522, lng2: -118.2437,
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("HaversineKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestHaversineKm_Symmetry(t *testing.T) {
	d1 := HaversineKm(-1.9, 30.0, -2.0, 30.1)
	d2 := HaversineKm(-2.0, 30.1, -1.9, 30.0)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("haversine is not symmetric: %f vs %f", d1, d2)
	}
}

func TestSortByDistance_Orders(t *testing.T) {
	type entry struct {
		ID       types.ID
		Distance float64
	}
	items := []entry{
		{ID: "c", Distance: 5.0},
		{ID: "a", Distance: 1.0},
		{ID: "b", Distance: 3.0},
	}

	SortByDistance(items, func(e entry) float64 { return e.Distance })

	if items[0].ID != "a" || items[1].ID != "b" || items[2].ID != "c" {
		t.Errorf("unexpected sort order: %v", items)
	}
}

func TestSortByDistance_StableOnTies(t *testing.T) {
	type entry struct {
		ID       types.ID
		Distance float64
	}
	items := []entry{
		{ID: "x", Distance: 2.0},
		{ID: "y", Distance: 2.0},
		{ID: "z", Distance: 1.0},
	}

	SortByDistance(items, func(e entry) float64 { return e.Distance })

	if items[0].ID != "z" || items[1].ID != "x" || items[2].ID != "y" {
		t.Errorf("tie order not preserved: %v", items)
	}
}

func TestSortByDistance_Empty(t *testing.T) {
	var items []DriverRecord
	SortByDistance(items, func(d DriverRecord) float64 { return 0 })
}
