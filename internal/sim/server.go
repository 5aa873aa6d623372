// README: Simulated dispatch/booking backend for local development. Speaks
// the same REST and websocket protocol as the production backend so the
// client core can run against it end to end.
package sim

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridecore/internal/booking"
	"ridecore/internal/dispatch"
	"ridecore/internal/modules/ride"
	"ridecore/internal/types"
)

// Options tunes the simulated backend's behavior.
type Options struct {
	// AutoAccept assigns DriverID to every new booking after AcceptAfter.
	AutoAccept  bool
	AcceptAfter time.Duration
	DriverID    types.ID
}

// Server is the fake backend: bookings live in an in-memory ride
// repository and notifications go out over the websocket hub.
type Server struct {
	rides *ride.MemoryRepository
	hub   *Hub
	opts  Options
	log   *logrus.Logger
}

func NewServer(opts Options, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.DriverID == "" {
		opts.DriverID = "sim-driver-1"
	}
	if opts.AcceptAfter <= 0 {
		opts.AcceptAfter = 200 * time.Millisecond
	}
	s := &Server{
		rides: ride.NewMemoryRepository(),
		hub:   NewHub(log),
		opts:  opts,
		log:   log,
	}
	s.hub.SetOnInbound(s.handleInbound)
	return s
}

// Hub exposes the websocket hub for scripted pushes.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(RequestLogger(s.log), Recovery(s.log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/ws", gin.WrapF(s.hub.ServeWS))

	r.POST("/bookings", s.createBooking)
	r.GET("/bookings/:id", s.getBooking)
	r.POST("/bookings/:id/:action", s.transitionBooking)
	return r
}

func (s *Server) createBooking(c *gin.Context) {
	var req booking.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.RiderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing rider_id"})
		return
	}

	r := &ride.Ride{
		ID:          types.ID("bk-" + uuid.NewString()[:8]),
		RiderID:     req.RiderID,
		Pickup:      req.PickupLocation,
		Destination: req.DropoffLocation,
		Status:      ride.StatusRequested,
		CreatedAt:   time.Now(),
	}
	if req.PaymentMethod != "" {
		pm := req.PaymentMethod
		r.PaymentMethod = &pm
	}
	if err := s.rides.Create(c.Request.Context(), r); err != nil {
		s.writeError(c, err)
		return
	}

	if s.opts.AutoAccept {
		id := r.ID
		time.AfterFunc(s.opts.AcceptAfter, func() {
			if _, err := s.apply(context.Background(), id, booking.ActionAccept, s.opts.DriverID); err != nil {
				s.log.WithError(err).WithField("booking_id", id).Debug("auto-accept skipped")
			}
		})
	}

	c.JSON(http.StatusCreated, booking.Booking{BookingID: r.ID, Status: string(r.Status)})
}

func (s *Server) getBooking(c *gin.Context) {
	r, err := s.rides.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.view(r))
}

func (s *Server) transitionBooking(c *gin.Context) {
	driver := types.ID(c.Query("driver_id"))
	if driver == "" {
		driver = s.opts.DriverID
	}
	b, err := s.apply(c.Request.Context(), types.ID(c.Param("id")), booking.Action(c.Param("action")), driver)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

var actionTargets = map[booking.Action]ride.Status{
	booking.ActionAccept:   ride.StatusDriverAssigned,
	booking.ActionStart:    ride.StatusInProgress,
	booking.ActionPause:    ride.StatusPaused,
	booking.ActionResume:   ride.StatusInProgress,
	booking.ActionComplete: ride.StatusCompleted,
	booking.ActionCancel:   ride.StatusCancelled,
	booking.ActionPay:      ride.StatusPaid,
}

// apply runs one action against a booking and notifies the rider's socket.
// Reject is the one action with no state change: the booking stays open
// for the next driver.
func (s *Server) apply(ctx context.Context, id types.ID, action booking.Action, driver types.ID) (booking.Booking, error) {
	r, err := s.rides.Get(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}

	if action == booking.ActionReject {
		s.hub.Push(string(r.RiderID), "rider", dispatch.Frame{
			Type:             dispatch.FrameRiderNotification,
			NotificationType: dispatch.NotifyDriverRejected,
			RideID:           r.ID,
			DriverID:         driver,
		})
		return s.view(r), nil
	}

	target, ok := actionTargets[action]
	if !ok {
		return booking.Booking{}, ride.ErrBadRequest
	}
	if !ride.CanTransition(r.Status, target) {
		return booking.Booking{}, ride.ErrInvalidTransition
	}
	r.Status = target
	if action == booking.ActionAccept {
		d := driver
		r.DriverID = &d
	}
	if err := s.rides.Update(ctx, r); err != nil {
		return booking.Booking{}, err
	}

	if action == booking.ActionAccept {
		s.hub.Push(string(r.RiderID), "rider", dispatch.Frame{
			Type:             dispatch.FrameRiderNotification,
			NotificationType: dispatch.NotifyRideAccepted,
			RideID:           r.ID,
			DriverID:         driver,
		})
	} else {
		frame := dispatch.Frame{
			Type:    dispatch.FrameBookingUpdate,
			RideID:  r.ID,
			RiderID: r.RiderID,
			Status:  string(r.Status),
		}
		if r.DriverID != nil {
			frame.DriverID = *r.DriverID
		}
		s.hub.Push(string(r.RiderID), "rider", frame)
	}
	return s.view(r), nil
}

func (s *Server) view(r *ride.Ride) booking.Booking {
	b := booking.Booking{BookingID: r.ID, Fare: r.Fare.Amount, Status: string(r.Status)}
	if r.DriverID != nil {
		b.DriverID = *r.DriverID
	}
	return b
}

func (s *Server) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ride.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ride.ErrInvalidTransition), errors.Is(err, ride.ErrRideConflict), errors.Is(err, ride.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// handleInbound relays rider ride requests to every connected driver.
func (s *Server) handleInbound(userID, userType string, raw []byte) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		s.log.WithError(err).Debug("unparseable inbound frame dropped")
		return
	}
	switch probe.Type {
	case "ride_request":
		var req dispatch.RideRequestFrame
		if err := json.Unmarshal(raw, &req); err != nil {
			return
		}
		s.hub.Broadcast("driver", dispatch.Frame{
			Type:             dispatch.FrameDriverNotification,
			NotificationType: "new_ride_request",
			RideID:           req.RideID,
			RiderID:          req.RiderID,
		})
	default:
		s.log.WithFields(logrus.Fields{"type": probe.Type, "user_type": userType}).
			Debug("inbound frame ignored")
	}
}
