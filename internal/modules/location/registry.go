// README: Driver registry interface and the in-memory implementation.
package location

import (
	"context"
	"sync"

	"ridecore/internal/types"
)

// Registry holds the process-wide set of known drivers. Entries are created
// and updated by inbound location/status events and removed only explicitly.
type Registry interface {
	Upsert(ctx context.Context, rec DriverRecord) error
	SetPosition(ctx context.Context, id types.ID, pos types.Point) error
	SetAvailability(ctx context.Context, id types.ID, available bool) error
	Remove(ctx context.Context, id types.ID) error
	Get(ctx context.Context, id types.ID) (DriverRecord, bool, error)
	Snapshot(ctx context.Context) ([]DriverRecord, error)
}

// MemoryRegistry is the default in-process Registry. Readers get copies;
// the internal map never escapes.
type MemoryRegistry struct {
	mu      sync.RWMutex
	drivers map[types.ID]DriverRecord
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{drivers: make(map[types.ID]DriverRecord)}
}

func (r *MemoryRegistry) Upsert(_ context.Context, rec DriverRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.Position != nil {
		p := *rec.Position
		rec.Position = &p
	}
	r.drivers[rec.ID] = rec
	return nil
}

func (r *MemoryRegistry) SetPosition(_ context.Context, id types.ID, pos types.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.drivers[id]
	if !ok {
		rec = DriverRecord{ID: id}
	}
	rec.Position = &pos
	r.drivers[id] = rec
	return nil
}

func (r *MemoryRegistry) SetAvailability(_ context.Context, id types.ID, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.drivers[id]
	if !ok {
		rec = DriverRecord{ID: id}
	}
	rec.Available = available
	r.drivers[id] = rec
	return nil
}

func (r *MemoryRegistry) Remove(_ context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drivers, id)
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, id types.ID) (DriverRecord, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.drivers[id]
	if ok && rec.Position != nil {
		p := *rec.Position
		rec.Position = &p
	}
	return rec, ok, nil
}

func (r *MemoryRegistry) Snapshot(_ context.Context) ([]DriverRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]DriverRecord, 0, len(r.drivers))
	for _, rec := range r.drivers {
		if rec.Position != nil {
			p := *rec.Position
			rec.Position = &p
		}
		out = append(out, rec)
	}
	return out, nil
}
