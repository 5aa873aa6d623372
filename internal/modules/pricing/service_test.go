package pricing

import (
	"math"
	"testing"

	"ridecore/internal/config"
	"ridecore/internal/types"
)

var testRates = config.PricingConfig{
	BaseFare:   500,
	PerKmRate:  200,
	PerMinRate: 50,
	Currency:   "RWF",
}

func TestService_Estimate(t *testing.T) {
	tests := []struct {
		name        string
		distanceKm  float64
		durationMin float64
		wantFare    int64
	}{
		{
			name:       "zero trip charges the base fare only",
			wantFare:   500,
		},
		{
			name:        "routed city trip (5km, 15min)",
			distanceKm:  5.0,
			durationMin: 15,
			// 500 + 5.0*200 + 15*50
			wantFare: 2250,
		},
		{
			name:       "distance only",
			distanceKm: 2.5,
			wantFare:   500 + 500, // 1000
		},
		{
			name:        "duration only",
			durationMin: 10,
			wantFare:    500 + 500, // 1000
		},
		{
			name:        "fractional result rounds half-up",
			distanceKm:  0.2525,
			durationMin: 0,
			// 500 + 50.5 = 550.5 -> 551
			wantFare: 551,
		},
		{
			name:        "negative distance clamps to zero",
			distanceKm:  -3.0,
			durationMin: 10,
			wantFare:    1000,
		},
		{
			name:        "negative duration clamps to zero",
			distanceKm:  2.5,
			durationMin: -20,
			wantFare:    1000,
		},
		{
			name:        "NaN clamps to zero",
			distanceKm:  math.NaN(),
			durationMin: math.NaN(),
			wantFare:    500,
		},
		{
			name:        "Inf clamps to zero",
			distanceKm:  math.Inf(1),
			durationMin: math.Inf(-1),
			wantFare:    500,
		},
	}

	s := NewService(testRates)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Estimate(tt.distanceKm, tt.durationMin)
			if got.Amount != tt.wantFare {
				t.Errorf("Estimate() = %v, want %v", got.Amount, tt.wantFare)
			}
			if got.Currency != "RWF" {
				t.Errorf("Estimate() currency = %q, want RWF", got.Currency)
			}
		})
	}
}

func TestService_EstimateMonotonic(t *testing.T) {
	s := NewService(testRates)

	prev := int64(-1)
	for d := 0.0; d <= 20.0; d += 0.5 {
		got := s.Estimate(d, 10).Amount
		if got < prev {
			t.Fatalf("fare decreased with distance at %f: %d < %d", d, got, prev)
		}
		prev = got
	}

	prev = -1
	for m := 0.0; m <= 60.0; m += 1.5 {
		got := s.Estimate(3, m).Amount
		if got < prev {
			t.Fatalf("fare decreased with duration at %f: %d < %d", m, got, prev)
		}
		prev = got
	}
}

func TestService_EstimateFromHaversine(t *testing.T) {
	s := NewService(testRates)

	pickup := types.Point{Lat: -1.9441, Lng: 30.0619}
	dest := types.Point{Lat: -1.9300, Lng: 30.0700}

	q := s.EstimateFromHaversine(pickup, dest)
	if !q.Estimated {
		t.Error("haversine quote must be flagged Estimated")
	}
	if q.DistanceKm <= 0 {
		t.Errorf("expected positive distance, got %f", q.DistanceKm)
	}
	wantDur := q.DistanceKm / 30.0 * 60.0
	if math.Abs(q.DurationMin-wantDur) > 0.0001 {
		t.Errorf("duration = %f, want %f", q.DurationMin, wantDur)
	}
	if q.Fare.Amount <= testRates.BaseFare {
		t.Errorf("fare %d should exceed base fare for a non-zero trip", q.Fare.Amount)
	}

	// same point degrades to the base fare
	zero := s.EstimateFromHaversine(pickup, pickup)
	if zero.Fare.Amount != testRates.BaseFare {
		t.Errorf("zero-length trip fare = %d, want %d", zero.Fare.Amount, testRates.BaseFare)
	}
}
