package location

import (
	"context"
	"testing"

	"ridecore/internal/types"
)

func TestService_ApplyPartialUpdates(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	svc := NewService(reg, nil)

	avail := true
	if err := svc.Apply(ctx, Update{
		DriverID:  "d1",
		Name:      "Aline",
		Available: &avail,
		Vehicle:   &Vehicle{Make: "Suzuki", Model: "Alto", Plate: "RAD456", Type: "standard"},
	}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// position-only update keeps the other fields
	if err := svc.Apply(ctx, Update{
		DriverID: "d1",
		Position: &types.Point{Lat: -1.94, Lng: 30.05},
	}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	rec, ok, _ := reg.Get(ctx, "d1")
	if !ok {
		t.Fatal("driver missing")
	}
	if rec.Name != "Aline" || !rec.Available || rec.Position == nil {
		t.Errorf("partial update clobbered record: %+v", rec)
	}
}

func TestService_ApplyWithoutIDIsDropped(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	svc := NewService(reg, nil)

	if err := svc.Apply(ctx, Update{Name: "nobody"}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	snap, _ := reg.Snapshot(ctx)
	if len(snap) != 0 {
		t.Errorf("registry should be empty, got %v", snap)
	}
}
