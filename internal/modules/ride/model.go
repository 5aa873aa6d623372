// README: Ride aggregate and status definitions.
package ride

import (
	"time"

	"ridecore/internal/types"
)

type Status string

const (
	StatusNone           Status = "none"
	StatusRequested      Status = "requested"
	StatusDriverAssigned Status = "driver_assigned"
	StatusDriverArrived  Status = "driver_arrived"
	StatusInProgress     Status = "in_progress"
	StatusPaused         Status = "paused"
	StatusCompleted      Status = "completed"
	StatusPaymentPending Status = "payment_pending"
	StatusPaid           Status = "paid"
	StatusCancelled      Status = "cancelled"
)

// Ride is exclusively owned by the Coordinator for its lifetime. External
// collaborators only ever see value copies (Clone), so mutation has to go
// back through the Coordinator.
type Ride struct {
	ID            types.ID
	RiderID       types.ID
	DriverID      *types.ID
	Pickup        types.Point
	Destination   types.Point
	Status        Status
	StatusVersion int
	Fare          types.Money
	FareEstimated bool
	DistanceKm    float64
	DurationMin   float64
	CandidateIDs  []types.ID
	RejectedIDs   []types.ID
	PaymentMethod *string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

// Event is one entry in the ride's state-transition journal.
type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the ride state flow as code. Cancellation
// is reachable from every non-terminal state; payment only after
// completion.
var AllowedTransitions = map[Status][]Status{
	StatusRequested:      {StatusDriverAssigned, StatusCancelled},
	StatusDriverAssigned: {StatusDriverArrived, StatusInProgress, StatusCancelled},
	StatusDriverArrived:  {StatusInProgress, StatusCancelled},
	StatusInProgress:     {StatusPaused, StatusCompleted, StatusCancelled},
	StatusPaused:         {StatusInProgress, StatusCancelled},
	StatusCompleted:      {StatusPaymentPending, StatusPaid},
	StatusPaymentPending: {StatusPaid},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Reachable reports whether target can be reached from start through any
// chain of allowed transitions. Used by reconciliation to decide whether
// the backend's authoritative status may be adopted.
func Reachable(start, target Status) bool {
	if start == target {
		return false
	}
	seen := map[Status]bool{start: true}
	queue := []Status{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range AllowedTransitions[cur] {
			if next == target {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// IsTerminal reports whether no further ride-progress transition is
// accepted. Completed still accepts payment, but inbound events for it
// are dropped and it no longer occupies the rider's active slot.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusPaid
}

// Clone returns a deep value copy safe to hand to subscribers.
func (r *Ride) Clone() Ride {
	out := *r
	if r.DriverID != nil {
		d := *r.DriverID
		out.DriverID = &d
	}
	if r.PaymentMethod != nil {
		p := *r.PaymentMethod
		out.PaymentMethod = &p
	}
	out.CandidateIDs = append([]types.ID(nil), r.CandidateIDs...)
	out.RejectedIDs = append([]types.ID(nil), r.RejectedIDs...)
	copyTime := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	out.StartedAt = copyTime(r.StartedAt)
	out.CompletedAt = copyTime(r.CompletedAt)
	out.CancelledAt = copyTime(r.CancelledAt)
	return out
}
