package proctor

import (
	"context"
	"time"
)

// SweepStale terminates every session whose lastActivity is older than
// maxIdle, with the same side effects as an administrative terminate. Returns
// the number of sessions swept.
func (c *Controller) SweepStale(ctx context.Context, maxIdle time.Duration) int {
	cutoff := c.now().Add(-maxIdle)
	swept := 0
	for _, s := range c.registry.All() {
		if s.LastActivity().Before(cutoff) {
			if c.Terminate(ctx, s.ID, "inactivity timeout") {
				swept++
			}
			continue
		}
		c.presence.MarkSession(ctx, s.ID)
	}
	if swept > 0 {
		c.log.Info("stale sessions swept", "count", swept, "maxIdle", maxIdle)
	}
	return swept
}

// RunSweeper periodically calls SweepStale until ctx is cancelled. Intended
// to run as a single background goroutine owned by main.
func (c *Controller) RunSweeper(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.SweepStale(ctx, maxIdle)
		}
	}
}
