// README: Polling fallback for backends without a push channel. Strictly
// layered above the push path; either can be disabled independently.
package ride

import (
	"context"
	"time"

	"ridecore/internal/types"
)

// startPoll launches a cancellable periodic re-fetch of one ride's
// authoritative state. No-op when polling is disabled or the coordinator
// is disposed.
func (c *Coordinator) startPoll(rideID types.ID) {
	if c.backend == nil || c.pollInterval <= 0 {
		return
	}
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	if _, running := c.polls[rideID]; running {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.polls[rideID] = cancel
	c.mu.Unlock()

	go c.pollLoop(ctx, rideID)
}

func (c *Coordinator) stopPoll(rideID types.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.polls[rideID]; ok {
		cancel()
		delete(c.polls, rideID)
	}
}

func (c *Coordinator) pollLoop(ctx context.Context, rideID types.ID) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b, err := c.backend.Get(ctx, rideID)
			if err != nil {
				c.log.WithError(err).WithField("ride_id", rideID).Debug("poll fetch failed")
				continue
			}
			if c.adoptRemote(ctx, rideID, b) {
				c.stopPoll(rideID)
				return
			}
		}
	}
}
