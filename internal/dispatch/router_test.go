package dispatch

import (
	"sync/atomic"
	"testing"
)

func TestRouter_DeliversToAllHandlers(t *testing.T) {
	r := NewRouter(nil)

	var a, b int32
	r.Subscribe(func(f Frame) { atomic.AddInt32(&a, 1) })
	r.Subscribe(func(f Frame) { atomic.AddInt32(&b, 1) })

	r.OnFrame([]byte(`{"type":"booking_update","ride_id":"x"}`))

	if a != 1 || b != 1 {
		t.Errorf("expected both handlers called once, got a=%d b=%d", a, b)
	}
}

func TestRouter_DecodesTypedFields(t *testing.T) {
	r := NewRouter(nil)

	var got Frame
	r.Subscribe(func(f Frame) { got = f })

	r.OnFrame([]byte(`{
		"type": "rider_notification",
		"notificationType": "ride_accepted",
		"ride_id": "ride-1",
		"driver_id": "d-9"
	}`))

	if got.Type != FrameRiderNotification {
		t.Errorf("Type = %q", got.Type)
	}
	if got.NotificationType != NotifyRideAccepted {
		t.Errorf("NotificationType = %q", got.NotificationType)
	}
	if got.RideID != "ride-1" || got.DriverID != "d-9" {
		t.Errorf("ids wrong: %+v", got)
	}
}

func TestRouter_MalformedFrameDropped(t *testing.T) {
	r := NewRouter(nil)

	called := false
	r.Subscribe(func(f Frame) { called = true })

	r.OnFrame([]byte(`{not json`))

	if called {
		t.Error("handler must not see malformed frames")
	}
}

func TestRouter_UnsubscribeIsIdempotent(t *testing.T) {
	r := NewRouter(nil)

	count := 0
	token := r.Subscribe(func(f Frame) { count++ })
	r.Unsubscribe(token)
	r.Unsubscribe(token)
	r.Unsubscribe(42)

	r.OnFrame([]byte(`{"type":"booking_update"}`))
	if count != 0 {
		t.Errorf("unsubscribed handler called %d times", count)
	}
}

func TestRouter_SnapshotSemantics(t *testing.T) {
	r := NewRouter(nil)

	lateCalls := 0
	firstCalls := 0
	r.Subscribe(func(f Frame) {
		firstCalls++
		// a handler registered mid-dispatch must not receive this frame
		r.Subscribe(func(Frame) { lateCalls++ })
	})

	r.OnFrame([]byte(`{"type":"booking_update"}`))
	if firstCalls != 1 {
		t.Fatalf("first handler calls = %d", firstCalls)
	}
	if lateCalls != 0 {
		t.Errorf("handler added during dispatch received the same frame")
	}

	// the next frame reaches it
	r.OnFrame([]byte(`{"type":"booking_update"}`))
	if lateCalls != 1 {
		t.Errorf("late handler calls = %d, want 1", lateCalls)
	}
}
