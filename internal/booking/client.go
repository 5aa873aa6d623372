// README: REST client for the booking backend (creation, transitions, reconciliation reads).
package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"ridecore/internal/types"
)

// Action is a booking state-transition endpoint segment.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionPay      Action = "pay"
)

type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Logger
}

func NewClient(baseURL string, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// CreateRequest is the POST /bookings body.
type CreateRequest struct {
	RiderID         types.ID    `json:"rider_id"`
	PickupLocation  types.Point `json:"pickup_location"`
	DropoffLocation types.Point `json:"dropoff_location"`
	PaymentMethod   string      `json:"payment_method,omitempty"`
	BargainAmount   *int64      `json:"bargain_amount,omitempty"`
}

// Booking is the backend's authoritative view of a ride.
type Booking struct {
	BookingID types.ID `json:"booking_id"`
	DriverID  types.ID `json:"driver_id,omitempty"`
	Fare      int64    `json:"fare"`
	Status    string   `json:"status"`
}

// Create registers a new booking. The returned booking_id becomes the
// canonical ride identifier.
func (c *Client) Create(ctx context.Context, req CreateRequest) (Booking, error) {
	var out Booking
	err := c.do(ctx, http.MethodPost, "/bookings", req, &out)
	return out, err
}

// Transition invokes one of the POST /bookings/{id}/{action} endpoints.
func (c *Client) Transition(ctx context.Context, id types.ID, action Action) error {
	path := fmt.Sprintf("/bookings/%s/%s", id, action)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// Get fetches the authoritative booking state, used by the polling
// fallback and the reconciliation pass.
func (c *Client) Get(ctx context.Context, id types.ID) (Booking, error) {
	var out Booking
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/bookings/%s", id), nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("booking backend: %s %s returned %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("booking backend: decode response: %w", err)
		}
	}
	return nil
}
