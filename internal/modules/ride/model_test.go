// README: State machine tests (transition table + reachability).
package ride

import (
	"testing"

	"ridecore/internal/types"
)

// TestCanTransition verifies the state machine transition table.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// happy-path forward transitions
		{StatusRequested, StatusDriverAssigned, true},
		{StatusDriverAssigned, StatusDriverArrived, true},
		{StatusDriverAssigned, StatusInProgress, true}, // start without explicit arrival
		{StatusDriverArrived, StatusInProgress, true},
		{StatusInProgress, StatusPaused, true},
		{StatusPaused, StatusInProgress, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusCompleted, StatusPaymentPending, true},
		{StatusCompleted, StatusPaid, true},
		{StatusPaymentPending, StatusPaid, true},
		// cancels from every non-terminal state
		{StatusRequested, StatusCancelled, true},
		{StatusDriverAssigned, StatusCancelled, true},
		{StatusDriverArrived, StatusCancelled, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusPaused, StatusCancelled, true},
		// illegal jumps
		{StatusRequested, StatusInProgress, false},
		{StatusRequested, StatusCompleted, false},
		{StatusDriverArrived, StatusDriverAssigned, false},
		{StatusPaused, StatusCompleted, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusInProgress, false},
		// terminal states accept nothing further
		{StatusPaid, StatusCancelled, false},
		{StatusPaid, StatusRequested, false},
		{StatusCancelled, StatusRequested, false},
		{StatusCancelled, StatusPaid, false},
		// unknown origin
		{StatusNone, StatusRequested, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestReachable(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusRequested, StatusCompleted, true},
		{StatusRequested, StatusPaid, true},
		{StatusRequested, StatusCancelled, true},
		{StatusDriverAssigned, StatusPaid, true},
		{StatusPaused, StatusCompleted, true}, // via resume
		{StatusCompleted, StatusRequested, false},
		{StatusCancelled, StatusPaid, false},
		{StatusPaid, StatusCancelled, false},
		{StatusRequested, StatusRequested, false},
	}

	for _, tc := range cases {
		if got := Reachable(tc.from, tc.to); got != tc.want {
			t.Errorf("Reachable(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusPaid} {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false", s)
		}
	}
	for _, s := range []Status{StatusRequested, StatusDriverAssigned, StatusDriverArrived, StatusInProgress, StatusPaused, StatusPaymentPending} {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true", s)
		}
	}
}

func TestClone_IsDeep(t *testing.T) {
	d := types.ID("d1")
	r := Ride{
		ID:           "ride-1",
		RiderID:      "r1",
		DriverID:     &d,
		CandidateIDs: []types.ID{"a", "b"},
	}

	cp := r.Clone()
	*cp.DriverID = "other"
	cp.CandidateIDs[0] = "mutated"

	if *r.DriverID != "d1" {
		t.Error("Clone shares DriverID pointer")
	}
	if r.CandidateIDs[0] != "a" {
		t.Error("Clone shares CandidateIDs backing array")
	}
}
