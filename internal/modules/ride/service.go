// README: Ride coordinator owns the state machine for active rides and
// orchestrates dispatch, pricing, matching, and the booking backend.
package ride

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridecore/internal/booking"
	"ridecore/internal/dispatch"
	"ridecore/internal/maps"
	"ridecore/internal/modules/location"
	"ridecore/internal/modules/matching"
	"ridecore/internal/modules/pricing"
	"ridecore/internal/types"
)

// Sender pushes best-effort messages toward the dispatch backend.
type Sender interface {
	Send(message any)
}

// BookingAPI is the REST boundary to the booking backend.
type BookingAPI interface {
	Create(ctx context.Context, req booking.CreateRequest) (booking.Booking, error)
	Transition(ctx context.Context, id types.ID, action booking.Action) error
	Get(ctx context.Context, id types.ID) (booking.Booking, error)
}

// Deps wires the coordinator's collaborators. Only Repo and Pricing are
// required; everything else degrades gracefully when absent.
type Deps struct {
	Repo         Repository
	Pricing      *pricing.Service
	Matcher      *matching.Service
	Routes       maps.RouteProvider
	Conn         Sender
	Router       *dispatch.Router
	Backend      BookingAPI
	Locations    *location.Service
	Log          *logrus.Logger
	PollInterval time.Duration
}

// Coordinator serializes all ride transitions behind one mutex: local
// calls may race inbound-frame processing, and the transition table must
// never run concurrently.
type Coordinator struct {
	repo         Repository
	pricing      *pricing.Service
	matcher      *matching.Service
	routes       maps.RouteProvider
	conn         Sender
	backend      BookingAPI
	locations    *location.Service
	log          *logrus.Logger
	pollInterval time.Duration

	mu          sync.Mutex
	subs        map[int]func(Ride)
	nextSub     int
	router      *dispatch.Router
	routerToken int
	polls       map[types.ID]context.CancelFunc
	disposed    bool
}

func NewCoordinator(deps Deps) *Coordinator {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Coordinator{
		repo:         deps.Repo,
		pricing:      deps.Pricing,
		matcher:      deps.Matcher,
		routes:       deps.Routes,
		conn:         deps.Conn,
		backend:      deps.Backend,
		locations:    deps.Locations,
		log:          log,
		pollInterval: deps.PollInterval,
		subs:         make(map[int]func(Ride)),
		polls:        make(map[types.ID]context.CancelFunc),
	}
	if deps.Router != nil {
		c.router = deps.Router
		c.routerToken = deps.Router.Subscribe(c.handleFrame)
	}
	return c
}

// Subscribe registers a state-change listener. Every listener receives an
// immutable snapshot of the ride after each transition.
func (c *Coordinator) Subscribe(fn func(Ride)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSub++
	c.subs[c.nextSub] = fn
	return c.nextSub
}

// Unsubscribe removes a listener; no-op for unknown tokens.
func (c *Coordinator) Unsubscribe(token int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, token)
}

// Dispose cancels every outstanding polling task and detaches the
// coordinator from the router. Required on teardown so no timers or
// handlers leak past the owning view's lifetime.
func (c *Coordinator) Dispose() {
	c.mu.Lock()
	c.disposed = true
	for id, cancel := range c.polls {
		cancel()
		delete(c.polls, id)
	}
	c.subs = make(map[int]func(Ride))
	router := c.router
	token := c.routerToken
	c.router = nil
	c.mu.Unlock()

	if router != nil {
		router.Unsubscribe(token)
	}
}

// RideRequest carries everything needed to open a ride.
type RideRequest struct {
	RiderID       types.ID
	Pickup        types.Point
	Destination   types.Point
	PaymentMethod string
}

// RequestRide computes the fare exactly once, persists the ride, ranks
// candidate drivers, and broadcasts the dispatch request. The backend's
// booking id becomes the canonical ride id as soon as the creation
// response arrives; transport failures leave the ride local-only until
// reconciliation.
func (c *Coordinator) RequestRide(ctx context.Context, req RideRequest) (Ride, error) {
	if req.RiderID == "" {
		return Ride{}, ErrBadRequest
	}
	if _, err := c.repo.ActiveByRider(ctx, req.RiderID); err == nil {
		return Ride{}, ErrRideConflict
	}

	quote := c.quote(ctx, req.Pickup, req.Destination)

	r := &Ride{
		ID:            types.ID(uuid.NewString()),
		RiderID:       req.RiderID,
		Pickup:        req.Pickup,
		Destination:   req.Destination,
		Status:        StatusRequested,
		Fare:          quote.Fare,
		FareEstimated: quote.Estimated,
		DistanceKm:    quote.DistanceKm,
		DurationMin:   quote.DurationMin,
		CreatedAt:     time.Now(),
	}
	if req.PaymentMethod != "" {
		pm := req.PaymentMethod
		r.PaymentMethod = &pm
	}

	if c.matcher != nil {
		ranked, err := c.matcher.NearbyForPickup(ctx, req.Pickup)
		if err != nil {
			c.log.WithError(err).Warn("candidate lookup failed; requesting without candidates")
		} else {
			for _, cand := range ranked {
				r.CandidateIDs = append(r.CandidateIDs, cand.Driver.ID)
			}
		}
	}

	if err := c.repo.Create(ctx, r); err != nil {
		return Ride{}, err
	}
	c.journal(ctx, r.ID, StatusNone, StatusRequested, "rider", &r.RiderID)

	if c.backend != nil {
		resp, err := c.backend.Create(ctx, booking.CreateRequest{
			RiderID:         r.RiderID,
			PickupLocation:  r.Pickup,
			DropoffLocation: r.Destination,
			PaymentMethod:   req.PaymentMethod,
		})
		switch {
		case err != nil:
			c.log.WithError(err).Warn("booking create failed; keeping client-issued ride id")
		case resp.BookingID != "" && resp.BookingID != r.ID:
			if err := c.repo.Rekey(ctx, r.ID, resp.BookingID); err != nil {
				c.log.WithError(err).Warn("could not adopt backend ride id")
			} else {
				r.ID = resp.BookingID
			}
			if resp.Fare != 0 && resp.Fare != r.Fare.Amount {
				c.log.WithFields(logrus.Fields{
					"local":   r.Fare.Amount,
					"backend": resp.Fare,
				}).Warn("fare quote diverges from backend")
			}
		}
	}

	if c.conn != nil {
		c.conn.Send(dispatch.RideRequestFrame{
			Type:        "ride_request",
			RideID:      r.ID,
			RiderID:     r.RiderID,
			Pickup:      r.Pickup,
			Destination: r.Destination,
			Fare:        r.Fare.Amount,
			Candidates:  append([]types.ID(nil), r.CandidateIDs...),
		})
	}

	c.startPoll(r.ID)
	snap := r.Clone()
	c.notify(snap)
	return snap, nil
}

// Get returns a snapshot of one ride.
func (c *Coordinator) Get(ctx context.Context, id types.ID) (Ride, error) {
	r, err := c.repo.Get(ctx, id)
	if err != nil {
		return Ride{}, err
	}
	return r.Clone(), nil
}

// MarkArrived records that the assigned driver reached the pickup point.
func (c *Coordinator) MarkArrived(ctx context.Context, rideID types.ID) (Ride, error) {
	return c.applyLocal(ctx, rideID, StatusDriverArrived, "driver", "", nil)
}

// StartRide begins the trip and stamps StartedAt.
func (c *Coordinator) StartRide(ctx context.Context, rideID types.ID) (Ride, error) {
	return c.applyLocal(ctx, rideID, StatusInProgress, "driver", booking.ActionStart, func(r *Ride) {
		if r.StartedAt == nil {
			now := time.Now()
			r.StartedAt = &now
		}
	})
}

// PauseRide suspends an in-progress trip.
func (c *Coordinator) PauseRide(ctx context.Context, rideID types.ID) (Ride, error) {
	return c.applyLocal(ctx, rideID, StatusPaused, "driver", booking.ActionPause, nil)
}

// ResumeRide continues a paused trip.
func (c *Coordinator) ResumeRide(ctx context.Context, rideID types.ID) (Ride, error) {
	return c.applyLocal(ctx, rideID, StatusInProgress, "driver", booking.ActionResume, nil)
}

// CompleteRide finishes the trip and stamps CompletedAt.
func (c *Coordinator) CompleteRide(ctx context.Context, rideID types.ID) (Ride, error) {
	return c.applyLocal(ctx, rideID, StatusCompleted, "driver", booking.ActionComplete, func(r *Ride) {
		now := time.Now()
		r.CompletedAt = &now
	})
}

// CancelRide aborts the ride from any non-terminal state and releases the
// assigned driver back to the available pool.
func (c *Coordinator) CancelRide(ctx context.Context, rideID types.ID) (Ride, error) {
	snap, err := c.applyLocal(ctx, rideID, StatusCancelled, "rider", booking.ActionCancel, func(r *Ride) {
		now := time.Now()
		r.CancelledAt = &now
	})
	if err != nil {
		return snap, err
	}
	if snap.DriverID != nil && c.locations != nil {
		avail := true
		if aerr := c.locations.Apply(ctx, location.Update{DriverID: *snap.DriverID, Available: &avail}); aerr != nil {
			c.log.WithError(aerr).Warn("could not release driver to pool")
		}
	}
	return snap, nil
}

// SubmitPayment settles a completed ride using the fare stored at request
// time; the fare is never recomputed here.
func (c *Coordinator) SubmitPayment(ctx context.Context, rideID types.ID, method string) (Ride, error) {
	if method == "" {
		return Ride{}, ErrBadRequest
	}
	return c.applyLocal(ctx, rideID, StatusPaid, "rider", booking.ActionPay, func(r *Ride) {
		r.PaymentMethod = &method
	})
}

// applyLocal runs one locally triggered transition. The state change is
// optimistic: the backend notification is best-effort and a failed send
// never rolls the local transition back.
func (c *Coordinator) applyLocal(ctx context.Context, rideID types.ID, to Status, actor string, action booking.Action, mutate func(*Ride)) (Ride, error) {
	c.mu.Lock()
	r, err := c.repo.Get(ctx, rideID)
	if err != nil {
		c.mu.Unlock()
		return Ride{}, err
	}
	if !CanTransition(r.Status, to) {
		c.mu.Unlock()
		return Ride{}, ErrInvalidTransition
	}
	from := r.Status
	r.Status = to
	if mutate != nil {
		mutate(r)
	}
	if err := c.repo.Update(ctx, r); err != nil {
		c.mu.Unlock()
		return Ride{}, err
	}
	c.mu.Unlock()

	c.journal(ctx, r.ID, from, to, actor, r.DriverID)
	if IsTerminal(to) {
		c.stopPoll(rideID)
	}

	if c.backend != nil && action != "" {
		if err := c.backend.Transition(ctx, r.ID, action); err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"ride_id": r.ID,
				"action":  action,
			}).Warn("backend transition failed; local state kept for reconciliation")
		}
	}
	if c.conn != nil {
		frame := dispatch.StatusFrame{
			Type:    dispatch.FrameBookingUpdate,
			RideID:  r.ID,
			RiderID: r.RiderID,
			Status:  string(to),
		}
		if r.DriverID != nil {
			frame.DriverID = *r.DriverID
		}
		c.conn.Send(frame)
	}

	snap := r.Clone()
	c.notify(snap)
	return snap, nil
}

// quote resolves trip metrics through the route provider, degrading to a
// great-circle estimate when routing is unavailable.
func (c *Coordinator) quote(ctx context.Context, pickup, destination types.Point) pricing.Quote {
	if c.routes != nil {
		rt, err := c.routes.Route(ctx, pickup, destination)
		if err == nil {
			return pricing.Quote{
				Fare:        c.pricing.Estimate(rt.DistanceKm, rt.DurationMin),
				DistanceKm:  rt.DistanceKm,
				DurationMin: rt.DurationMin,
			}
		}
		c.log.WithError(err).Warn("route lookup failed; falling back to haversine estimate")
	}
	return c.pricing.EstimateFromHaversine(pickup, destination)
}

func (c *Coordinator) journal(ctx context.Context, rideID types.ID, from, to Status, actor string, actorID *types.ID) {
	_ = c.repo.AppendEvent(ctx, &Event{
		RideID:     rideID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actor,
		ActorID:    actorID,
		CreatedAt:  time.Now(),
	})
}

func (c *Coordinator) notify(snap Ride) {
	c.mu.Lock()
	listeners := make([]func(Ride), 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap.Clone())
	}
}
