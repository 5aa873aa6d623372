// README: Location service applies inbound driver location/status updates to the registry.
package location

import (
	"context"

	"github.com/sirupsen/logrus"

	"ridecore/internal/types"
)

type Service struct {
	registry Registry
	log      *logrus.Logger
}

func NewService(registry Registry, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{registry: registry, log: log}
}

// Update is one driver location/status event decoded off the wire.
type Update struct {
	DriverID  types.ID
	Name      string
	Position  *types.Point
	Available *bool
	Vehicle   *Vehicle
}

// Apply folds an update into the registry. Partial updates only touch the
// fields they carry.
func (s *Service) Apply(ctx context.Context, u Update) error {
	if u.DriverID == "" {
		s.log.Warn("location update without driver id dropped")
		return nil
	}
	rec, ok, err := s.registry.Get(ctx, u.DriverID)
	if err != nil {
		return err
	}
	if !ok {
		rec = DriverRecord{ID: u.DriverID}
	}
	if u.Name != "" {
		rec.Name = u.Name
	}
	if u.Position != nil {
		p := *u.Position
		rec.Position = &p
	}
	if u.Available != nil {
		rec.Available = *u.Available
	}
	if u.Vehicle != nil {
		rec.Vehicle = *u.Vehicle
	}
	return s.registry.Upsert(ctx, rec)
}

// Remove drops a driver from the registry. Records never expire on their
// own; removal is always explicit.
func (s *Service) Remove(ctx context.Context, id types.ID) error {
	return s.registry.Remove(ctx, id)
}
