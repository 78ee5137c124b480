package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper marks sessions idle for longer than a cutoff as abandoned
type Sweeper interface {
	AbandonStale(ctx context.Context, idleFor time.Duration) (int, error)
}

// Cleaner handles periodic abandonment of idle interviews
type Cleaner struct {
	sweeper      Sweeper
	interval     time.Duration
	abandonAfter time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(sweeper Sweeper, interval, abandonAfter time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if abandonAfter <= 0 {
		abandonAfter = 2 * time.Hour
	}

	return &Cleaner{
		sweeper:      sweeper,
		interval:     interval,
		abandonAfter: abandonAfter,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main loop for the cleanup worker
func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval, "abandon_after", c.abandonAfter)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

// cleanup runs one sweep
func (c *Cleaner) cleanup(ctx context.Context) {
	slog.Debug("running cleanup cycle")

	n, err := c.sweeper.AbandonStale(ctx, c.abandonAfter)
	if err != nil {
		slog.Error("failed to abandon stale sessions", "error", err)
		return
	}
	if n > 0 {
		slog.Info("stale sessions abandoned", "count", n)
	}
}
