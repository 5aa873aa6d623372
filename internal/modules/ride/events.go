// README: Inbound dispatch frames folded into ride state. Protocol problems
// are logged and dropped; they never cross the coordinator boundary.
package ride

import (
	"context"

	"github.com/sirupsen/logrus"

	"ridecore/internal/booking"
	"ridecore/internal/dispatch"
	"ridecore/internal/modules/location"
	"ridecore/internal/types"
)

func (c *Coordinator) handleFrame(f dispatch.Frame) {
	ctx := context.Background()
	switch f.Type {
	case dispatch.FrameRiderNotification:
		switch f.NotificationType {
		case dispatch.NotifyNearbyDrivers:
			c.applyNearbyDrivers(ctx, f)
		case dispatch.NotifyRideAccepted:
			c.applyDriverAccepted(ctx, f.RideID, f.DriverID)
		case dispatch.NotifyDriverRejected:
			c.applyDriverRejected(ctx, f.RideID, f.DriverID)
		default:
			c.log.WithField("notification", f.NotificationType).Debug("unhandled rider notification")
		}
	case dispatch.FrameBookingUpdate:
		c.applyBookingUpdate(ctx, f)
	case dispatch.FrameDriverNotification:
		// driver-side notifications carry no rider ride state
		c.log.WithField("notification", f.NotificationType).Debug("driver notification ignored")
	default:
		c.log.WithField("type", f.Type).Warn("unknown frame type dropped")
	}
}

// applyNearbyDrivers refreshes the driver registry from the payload and,
// when the frame names a ride, re-derives that ride's candidate list
// (minus drivers that already rejected it).
func (c *Coordinator) applyNearbyDrivers(ctx context.Context, f dispatch.Frame) {
	if c.locations != nil {
		for _, d := range f.Drivers {
			avail := d.Available
			err := c.locations.Apply(ctx, location.Update{
				DriverID:  d.ID,
				Name:      d.Name,
				Position:  d.Position,
				Available: &avail,
			})
			if err != nil {
				c.log.WithError(err).Warn("driver update failed")
			}
		}
	}
	if f.RideID == "" {
		return
	}

	c.mu.Lock()
	r, err := c.repo.Get(ctx, f.RideID)
	if err != nil || IsTerminal(r.Status) {
		c.mu.Unlock()
		c.dropFrame(f.RideID, "nearby_drivers", err)
		return
	}
	rejected := make(map[types.ID]bool, len(r.RejectedIDs))
	for _, id := range r.RejectedIDs {
		rejected[id] = true
	}
	r.CandidateIDs = r.CandidateIDs[:0]
	for _, d := range f.Drivers {
		if !rejected[d.ID] {
			r.CandidateIDs = append(r.CandidateIDs, d.ID)
		}
	}
	if err := c.repo.Update(ctx, r); err != nil {
		c.mu.Unlock()
		c.log.WithError(err).Warn("candidate refresh not persisted")
		return
	}
	c.mu.Unlock()
	c.notify(r.Clone())
}

// applyDriverAccepted binds the driver and moves the ride to
// DriverAssigned. The accepting driver leaves the available pool.
func (c *Coordinator) applyDriverAccepted(ctx context.Context, rideID, driverID types.ID) {
	if rideID == "" || driverID == "" {
		c.log.Warn("ride_accepted frame missing ids; dropped")
		return
	}

	c.mu.Lock()
	r, err := c.repo.Get(ctx, rideID)
	if err != nil || IsTerminal(r.Status) || !CanTransition(r.Status, StatusDriverAssigned) {
		c.mu.Unlock()
		c.dropFrame(rideID, "ride_accepted", err)
		return
	}
	from := r.Status
	d := driverID
	r.DriverID = &d
	r.Status = StatusDriverAssigned
	if err := c.repo.Update(ctx, r); err != nil {
		c.mu.Unlock()
		c.log.WithError(err).Warn("driver assignment not persisted")
		return
	}
	c.mu.Unlock()

	c.journal(ctx, rideID, from, StatusDriverAssigned, "driver", &d)
	if c.locations != nil {
		busy := false
		if aerr := c.locations.Apply(ctx, location.Update{DriverID: driverID, Available: &busy}); aerr != nil {
			c.log.WithError(aerr).Warn("could not mark driver busy")
		}
	}
	c.notify(r.Clone())
}

// applyDriverRejected keeps the ride in Requested and evicts the driver
// from the candidate set so future notifications skip them.
func (c *Coordinator) applyDriverRejected(ctx context.Context, rideID, driverID types.ID) {
	if rideID == "" || driverID == "" {
		c.log.Warn("driver_rejected frame missing ids; dropped")
		return
	}

	c.mu.Lock()
	r, err := c.repo.Get(ctx, rideID)
	if err != nil || IsTerminal(r.Status) {
		c.mu.Unlock()
		c.dropFrame(rideID, "driver_rejected", err)
		return
	}
	if r.Status != StatusRequested {
		c.mu.Unlock()
		c.log.WithFields(logrus.Fields{"ride_id": rideID, "state": r.Status}).
			Warn("driver_rejected outside Requested dropped")
		return
	}
	kept := r.CandidateIDs[:0]
	for _, id := range r.CandidateIDs {
		if id != driverID {
			kept = append(kept, id)
		}
	}
	r.CandidateIDs = kept
	r.RejectedIDs = append(r.RejectedIDs, driverID)
	if err := c.repo.Update(ctx, r); err != nil {
		c.mu.Unlock()
		c.log.WithError(err).Warn("driver rejection not persisted")
		return
	}
	c.mu.Unlock()
	c.notify(r.Clone())
}

// applyBookingUpdate adopts the backend's status when it is reachable
// from the current one through the transition table.
func (c *Coordinator) applyBookingUpdate(ctx context.Context, f dispatch.Frame) {
	if f.RideID == "" {
		c.log.Warn("booking_update without ride id dropped")
		return
	}
	c.adoptRemote(ctx, f.RideID, booking.Booking{
		BookingID: f.RideID,
		DriverID:  f.DriverID,
		Status:    f.Status,
	})
}

var wireStatuses = map[string]Status{
	string(StatusRequested):      StatusRequested,
	string(StatusDriverAssigned): StatusDriverAssigned,
	string(StatusDriverArrived):  StatusDriverArrived,
	string(StatusInProgress):     StatusInProgress,
	string(StatusPaused):         StatusPaused,
	string(StatusCompleted):      StatusCompleted,
	string(StatusPaymentPending): StatusPaymentPending,
	string(StatusPaid):           StatusPaid,
	string(StatusCancelled):      StatusCancelled,
}

// adoptRemote folds the backend's authoritative view into the local ride.
// Only forward transitions are adopted; anything else is logged as
// divergence and left for a later pass. Reports whether the ride is now
// terminal.
func (c *Coordinator) adoptRemote(ctx context.Context, rideID types.ID, b booking.Booking) bool {
	target, ok := wireStatuses[b.Status]
	if !ok {
		c.log.WithField("status", b.Status).Warn("unknown backend status dropped")
		return false
	}

	c.mu.Lock()
	r, err := c.repo.Get(ctx, rideID)
	if err != nil {
		c.mu.Unlock()
		c.dropFrame(rideID, "booking_update", err)
		return false
	}
	if IsTerminal(r.Status) {
		c.mu.Unlock()
		return true
	}
	if r.Status == target {
		// nothing to adopt; still pick up a late driver binding
		changed := false
		if b.DriverID != "" && r.DriverID == nil {
			d := b.DriverID
			r.DriverID = &d
			changed = c.persistQuiet(ctx, r)
		}
		c.mu.Unlock()
		if changed {
			c.notify(r.Clone())
		}
		return false
	}
	if !Reachable(r.Status, target) {
		c.mu.Unlock()
		c.log.WithFields(logrus.Fields{
			"ride_id": rideID,
			"local":   r.Status,
			"backend": target,
		}).Warn("backend state diverges; not adopted")
		return false
	}

	from := r.Status
	r.Status = target
	if b.DriverID != "" {
		d := b.DriverID
		r.DriverID = &d
	}
	if err := c.repo.Update(ctx, r); err != nil {
		c.mu.Unlock()
		c.log.WithError(err).Warn("backend state not persisted")
		return false
	}
	c.mu.Unlock()

	c.journal(ctx, rideID, from, target, "backend", nil)
	if IsTerminal(target) {
		c.stopPoll(rideID)
	}
	c.notify(r.Clone())
	return IsTerminal(target)
}

// persistQuiet updates without surfacing errors; caller holds the mutex.
func (c *Coordinator) persistQuiet(ctx context.Context, r *Ride) bool {
	if err := c.repo.Update(ctx, r); err != nil {
		c.log.WithError(err).Warn("ride update not persisted")
		return false
	}
	return true
}

func (c *Coordinator) dropFrame(rideID types.ID, kind string, err error) {
	entry := c.log.WithFields(logrus.Fields{"ride_id": rideID, "frame": kind})
	if err != nil {
		entry.WithError(err).Warn("frame for unknown ride dropped")
		return
	}
	entry.Warn("frame for terminal ride dropped")
}
