// README: Ride repositories; in-memory is the default, Postgres serves server-side embeddings.
package ride

import (
	"context"
	"errors"
	"sync"

	"ridecore/internal/types"
)

var (
	ErrInvalidTransition = errors.New("invalid ride state transition")
	ErrRideConflict      = errors.New("rider already has an active ride")
	ErrNotFound          = errors.New("ride not found")
	ErrConflict          = errors.New("ride was modified concurrently")
	ErrBadRequest        = errors.New("bad request")
)

// Repository stores rides keyed by id and enforces the one-active-ride-
// per-rider invariant.
type Repository interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	ActiveByRider(ctx context.Context, riderID types.ID) (*Ride, error)
	// Update persists r if its StatusVersion still matches the stored
	// one, then bumps the version. ErrConflict otherwise.
	Update(ctx context.Context, r *Ride) error
	// Rekey renames a ride when the backend-issued id becomes canonical.
	Rekey(ctx context.Context, oldID, newID types.ID) error
	ListActive(ctx context.Context) ([]*Ride, error)
	AppendEvent(ctx context.Context, e *Event) error
}

// MemoryRepository keeps rides in process memory. Terminal rides stay
// retrievable by id (payment needs them) but release the rider's active
// slot.
type MemoryRepository struct {
	mu            sync.RWMutex
	rides         map[types.ID]*Ride
	activeByRider map[types.ID]types.ID
	events        []Event
	nextEventID   int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rides:         make(map[types.ID]*Ride),
		activeByRider: make(map[types.ID]types.ID),
	}
}

func (s *MemoryRepository) Create(_ context.Context, r *Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.activeByRider[r.RiderID]; busy {
		return ErrRideConflict
	}
	cp := r.Clone()
	s.rides[r.ID] = &cp
	if !IsTerminal(r.Status) {
		s.activeByRider[r.RiderID] = r.ID
	}
	return nil
}

func (s *MemoryRepository) Get(_ context.Context, id types.ID) (*Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := r.Clone()
	return &cp, nil
}

func (s *MemoryRepository) ActiveByRider(_ context.Context, riderID types.ID) (*Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.activeByRider[riderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := s.rides[id].Clone()
	return &cp, nil
}

func (s *MemoryRepository) Update(_ context.Context, r *Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.rides[r.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.StatusVersion != r.StatusVersion {
		return ErrConflict
	}
	r.StatusVersion++
	cp := r.Clone()
	s.rides[r.ID] = &cp
	if IsTerminal(r.Status) {
		if s.activeByRider[r.RiderID] == r.ID {
			delete(s.activeByRider, r.RiderID)
		}
	} else {
		s.activeByRider[r.RiderID] = r.ID
	}
	return nil
}

func (s *MemoryRepository) Rekey(_ context.Context, oldID, newID types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[oldID]
	if !ok {
		return ErrNotFound
	}
	delete(s.rides, oldID)
	r.ID = newID
	s.rides[newID] = r
	if s.activeByRider[r.RiderID] == oldID {
		s.activeByRider[r.RiderID] = newID
	}
	return nil
}

func (s *MemoryRepository) ListActive(_ context.Context) ([]*Ride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Ride, 0, len(s.activeByRider))
	for _, id := range s.activeByRider {
		cp := s.rides[id].Clone()
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryRepository) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	e.ID = s.nextEventID
	s.events = append(s.events, *e)
	return nil
}

// EventsFor returns the journal entries recorded for one ride.
func (s *MemoryRepository) EventsFor(id types.ID) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.RideID == id {
			out = append(out, e)
		}
	}
	return out
}
