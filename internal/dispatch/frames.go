// README: Wire frame types exchanged with the dispatch backend.
package dispatch

import (
	"ridecore/internal/types"
)

// Frame type values recognized on the wire. Every frame carries a "type"
// field; unknown types are dropped by the router's subscribers.
const (
	FrameRiderNotification  = "rider_notification"
	FrameDriverNotification = "driver_notification"
	FrameBookingUpdate      = "booking_update"
)

// Notification subtypes carried by rider/driver notification frames.
const (
	NotifyNearbyDrivers  = "nearby_drivers"
	NotifyRideAccepted   = "ride_accepted"
	NotifyDriverRejected = "driver_rejected"
)

// DriverPayload is a driver entry inside a nearby_drivers notification.
type DriverPayload struct {
	ID        types.ID     `json:"id"`
	Name      string       `json:"name,omitempty"`
	Position  *types.Point `json:"position,omitempty"`
	Available bool         `json:"available"`
}

// Frame is one decoded inbound message. Fields that do not apply to a
// given type are left zero.
type Frame struct {
	Type             string          `json:"type"`
	NotificationType string          `json:"notificationType,omitempty"`
	RideID           types.ID        `json:"ride_id,omitempty"`
	RiderID          types.ID        `json:"rider_id,omitempty"`
	DriverID         types.ID        `json:"driver_id,omitempty"`
	Status           string          `json:"status,omitempty"`
	Drivers          []DriverPayload `json:"drivers,omitempty"`
	Position         *types.Point    `json:"position,omitempty"`
	Available        *bool           `json:"available,omitempty"`
	Message          string          `json:"message,omitempty"`
}

// RideRequestFrame is the outbound dispatch message broadcast to candidate
// drivers when a rider requests a ride.
type RideRequestFrame struct {
	Type        string      `json:"type"`
	RideID      types.ID    `json:"ride_id"`
	RiderID     types.ID    `json:"rider_id"`
	Pickup      types.Point `json:"pickup"`
	Destination types.Point `json:"destination"`
	Fare        int64       `json:"fare"`
	Candidates  []types.ID  `json:"candidates"`
}

// StatusFrame is the outbound notification for a local ride state change.
type StatusFrame struct {
	Type     string   `json:"type"`
	RideID   types.ID `json:"ride_id"`
	RiderID  types.ID `json:"rider_id"`
	DriverID types.ID `json:"driver_id,omitempty"`
	Status   string   `json:"status"`
}
