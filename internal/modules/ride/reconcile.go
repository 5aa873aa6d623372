// README: Reconciliation re-syncs local optimistic state with the backend
// after a connectivity gap.
package ride

import (
	"context"
)

// Reconcile re-fetches authoritative state for every active non-terminal
// ride. Wire it to the connection manager's on-connected hook so a
// restored link immediately heals optimistic divergence.
func (c *Coordinator) Reconcile(ctx context.Context) {
	if c.backend == nil {
		return
	}
	rides, err := c.repo.ListActive(ctx)
	if err != nil {
		c.log.WithError(err).Warn("reconcile: could not list active rides")
		return
	}
	for _, r := range rides {
		b, err := c.backend.Get(ctx, r.ID)
		if err != nil {
			c.log.WithError(err).WithField("ride_id", r.ID).Warn("reconcile fetch failed")
			continue
		}
		c.adoptRemote(ctx, r.ID, b)
	}
}
