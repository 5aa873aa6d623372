// README: In-memory repository tests.
package ride

import (
	"context"
	"errors"
	"testing"

	"ridecore/internal/types"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	r := &Ride{ID: "ride-1", RiderID: "r1", Status: StatusRequested}
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.Get(ctx, "ride-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RiderID != "r1" || got.Status != StatusRequested {
		t.Errorf("unexpected ride: %+v", got)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepository_OneActiveRidePerRider(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if err := repo.Create(ctx, &Ride{ID: "a", RiderID: "r1", Status: StatusRequested}); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	err := repo.Create(ctx, &Ride{ID: "b", RiderID: "r1", Status: StatusRequested})
	if !errors.Is(err, ErrRideConflict) {
		t.Fatalf("second Create = %v, want ErrRideConflict", err)
	}

	// finishing the first ride frees the slot
	r, _ := repo.Get(ctx, "a")
	r.Status = StatusCancelled
	if err := repo.Update(ctx, r); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := repo.Create(ctx, &Ride{ID: "b", RiderID: "r1", Status: StatusRequested}); err != nil {
		t.Fatalf("Create after terminal: %v", err)
	}

	// the terminal ride stays retrievable by id
	if _, err := repo.Get(ctx, "a"); err != nil {
		t.Errorf("terminal ride gone: %v", err)
	}
}

func TestMemoryRepository_UpdateVersionConflict(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, &Ride{ID: "a", RiderID: "r1", Status: StatusRequested})

	first, _ := repo.Get(ctx, "a")
	second, _ := repo.Get(ctx, "a")

	first.Status = StatusDriverAssigned
	if err := repo.Update(ctx, first); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	second.Status = StatusCancelled
	if err := repo.Update(ctx, second); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale Update = %v, want ErrConflict", err)
	}

	got, _ := repo.Get(ctx, "a")
	if got.Status != StatusDriverAssigned {
		t.Errorf("status = %s after stale write, want %s", got.Status, StatusDriverAssigned)
	}
}

func TestMemoryRepository_Rekey(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, &Ride{ID: "local-1", RiderID: "r1", Status: StatusRequested})

	if err := repo.Rekey(ctx, "local-1", "bk-42"); err != nil {
		t.Fatalf("Rekey: %v", err)
	}
	if _, err := repo.Get(ctx, "local-1"); !errors.Is(err, ErrNotFound) {
		t.Error("old id still resolves after Rekey")
	}
	got, err := repo.Get(ctx, "bk-42")
	if err != nil {
		t.Fatalf("Get(bk-42): %v", err)
	}
	if got.ID != "bk-42" {
		t.Errorf("ride id = %s, want bk-42", got.ID)
	}

	active, err := repo.ActiveByRider(ctx, "r1")
	if err != nil {
		t.Fatalf("ActiveByRider: %v", err)
	}
	if active.ID != "bk-42" {
		t.Errorf("active id = %s, want bk-42", active.ID)
	}

	if err := repo.Rekey(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rekey(missing) = %v, want ErrNotFound", err)
	}
}

func TestMemoryRepository_ListActive(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	_ = repo.Create(ctx, &Ride{ID: "a", RiderID: "r1", Status: StatusRequested})
	_ = repo.Create(ctx, &Ride{ID: "b", RiderID: "r2", Status: StatusInProgress})

	r, _ := repo.Get(ctx, "b")
	r.Status = StatusCompleted
	_ = repo.Update(ctx, r)

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 1 || active[0].ID != "a" {
		t.Errorf("active = %+v, want just ride a", active)
	}
}

func TestMemoryRepository_AppendEvent(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	actor := types.ID("r1")

	_ = repo.AppendEvent(ctx, &Event{RideID: "a", FromStatus: StatusNone, ToStatus: StatusRequested, ActorType: "rider", ActorID: &actor})
	_ = repo.AppendEvent(ctx, &Event{RideID: "a", FromStatus: StatusRequested, ToStatus: StatusDriverAssigned, ActorType: "driver"})
	_ = repo.AppendEvent(ctx, &Event{RideID: "other", FromStatus: StatusNone, ToStatus: StatusRequested, ActorType: "rider"})

	events := repo.EventsFor("a")
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ID == 0 || events[1].ID <= events[0].ID {
		t.Errorf("event ids not monotonic: %d, %d", events[0].ID, events[1].ID)
	}
	if events[1].ToStatus != StatusDriverAssigned {
		t.Errorf("second event to = %s", events[1].ToStatus)
	}
}
