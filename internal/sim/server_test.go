// README: Sim backend tests exercised through the real booking client and a
// real websocket connection.
package sim

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ridecore/internal/booking"
	"ridecore/internal/dispatch"
	"ridecore/internal/types"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func startSim(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	srv := NewServer(opts, quietLog())
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestBookingLifecycleOverREST(t *testing.T) {
	_, ts := startSim(t, Options{})
	client := booking.NewClient(ts.URL, quietLog())
	ctx := context.Background()

	created, err := client.Create(ctx, booking.CreateRequest{
		RiderID:         "r1",
		PickupLocation:  types.Point{Lat: -1.9441, Lng: 30.0619},
		DropoffLocation: types.Point{Lat: -1.9300, Lng: 30.0700},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.BookingID == "" || created.Status != "requested" {
		t.Fatalf("created = %+v", created)
	}

	// start before assignment is an illegal jump
	if err := client.Transition(ctx, created.BookingID, booking.ActionStart); err == nil {
		t.Fatal("start before accept succeeded")
	}

	for _, action := range []booking.Action{booking.ActionAccept, booking.ActionStart, booking.ActionComplete, booking.ActionPay} {
		if err := client.Transition(ctx, created.BookingID, action); err != nil {
			t.Fatalf("Transition(%s): %v", action, err)
		}
	}

	got, err := client.Get(ctx, created.BookingID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != "paid" {
		t.Errorf("status = %s, want paid", got.Status)
	}
	if got.DriverID == "" {
		t.Error("driver never bound")
	}

	// terminal booking rejects further actions
	if err := client.Transition(ctx, created.BookingID, booking.ActionCancel); err == nil {
		t.Error("cancel after payment succeeded")
	}
}

func TestSecondActiveBookingConflicts(t *testing.T) {
	_, ts := startSim(t, Options{})
	client := booking.NewClient(ts.URL, quietLog())
	ctx := context.Background()

	if _, err := client.Create(ctx, booking.CreateRequest{RiderID: "r1"}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := client.Create(ctx, booking.CreateRequest{RiderID: "r1"}); err == nil {
		t.Fatal("second active booking accepted")
	}
}

func dialRider(t *testing.T, ts *httptest.Server, riderID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?user_id=" + riderID + "&user_type=rider"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) dispatch.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f dispatch.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("unmarshal %q: %v", raw, err)
	}
	return f
}

func TestAutoAcceptNotifiesRider(t *testing.T) {
	_, ts := startSim(t, Options{AutoAccept: true, AcceptAfter: 10 * time.Millisecond, DriverID: "d1"})
	conn := dialRider(t, ts, "r1")
	client := booking.NewClient(ts.URL, quietLog())

	created, err := client.Create(context.Background(), booking.CreateRequest{RiderID: "r1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	f := readFrame(t, conn)
	if f.Type != dispatch.FrameRiderNotification || f.NotificationType != dispatch.NotifyRideAccepted {
		t.Fatalf("frame = %+v, want ride_accepted", f)
	}
	if f.RideID != created.BookingID || f.DriverID != "d1" {
		t.Errorf("frame ids = %+v", f)
	}
}

func TestRejectLeavesBookingOpen(t *testing.T) {
	_, ts := startSim(t, Options{})
	conn := dialRider(t, ts, "r1")
	client := booking.NewClient(ts.URL, quietLog())
	ctx := context.Background()

	created, err := client.Create(ctx, booking.CreateRequest{RiderID: "r1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := client.Transition(ctx, created.BookingID, booking.ActionReject); err != nil {
		t.Fatalf("Transition(reject): %v", err)
	}

	f := readFrame(t, conn)
	if f.NotificationType != dispatch.NotifyDriverRejected {
		t.Fatalf("frame = %+v, want driver_rejected", f)
	}

	got, _ := client.Get(ctx, created.BookingID)
	if got.Status != "requested" {
		t.Errorf("status = %s, want requested after reject", got.Status)
	}
}

func TestStatusUpdatePushedToRider(t *testing.T) {
	_, ts := startSim(t, Options{})
	conn := dialRider(t, ts, "r1")
	client := booking.NewClient(ts.URL, quietLog())
	ctx := context.Background()

	created, _ := client.Create(ctx, booking.CreateRequest{RiderID: "r1"})
	_ = client.Transition(ctx, created.BookingID, booking.ActionAccept)
	_ = readFrame(t, conn) // ride_accepted

	if err := client.Transition(ctx, created.BookingID, booking.ActionStart); err != nil {
		t.Fatalf("Transition(start): %v", err)
	}
	f := readFrame(t, conn)
	if f.Type != dispatch.FrameBookingUpdate || f.Status != "in_progress" {
		t.Fatalf("frame = %+v, want in_progress booking_update", f)
	}
}
