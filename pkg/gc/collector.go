// Package gc reclaims backing-store space left behind by pruned and deleted
// revisions.
//
// Deleting a revision only marks its bytes dead; stores such as badger get
// the space back in a separate pass over their value log. The Collector
// drives that pass on an interval for any store implementing
// kv.GarbageCollector.
package gc

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/waverider/internal/logger"
	"github.com/marmos91/waverider/pkg/kv"
)

// Config contains configuration for the collector.
type Config struct {
	// Interval between collection runs (default: 10m)
	Interval time.Duration

	// DiscardRatio is the dead share a value log file needs before it is
	// rewritten (default: 0.5)
	DiscardRatio float64

	// MaxRounds caps the rewrites of one run so a busy store cannot keep
	// the collector spinning (default: 16)
	MaxRounds int
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	if c.DiscardRatio <= 0 || c.DiscardRatio >= 1 {
		c.DiscardRatio = 0.5
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = 16
	}
}

// Stats summarizes one collection run.
type Stats struct {
	Rounds   int
	Rewrites int
	Duration time.Duration
}

// Summary returns a human-readable summary of the run.
func (s Stats) Summary() string {
	return fmt.Sprintf("rounds=%d rewrites=%d duration=%s", s.Rounds, s.Rewrites, s.Duration)
}

// Collector periodically runs garbage collection on a store.
type Collector struct {
	target kv.GarbageCollector
	config Config
}

// NewCollector creates a collector over target. Call Run to start it.
func NewCollector(target kv.GarbageCollector, config Config) *Collector {
	config.applyDefaults()
	return &Collector{target: target, config: config}
}

// Run collects every Interval until ctx is done. Failed runs are logged and
// retried on the next tick.
func (c *Collector) Run(ctx context.Context) {
	logger.Info("Starting store garbage collector: interval=%s discard_ratio=%.2f",
		c.config.Interval, c.config.DiscardRatio)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Store garbage collector stopped")
			return
		case <-ticker.C:
			stats, err := c.RunNow(ctx)
			if err != nil {
				logger.Error("Store garbage collection failed: %v", err)
				continue
			}
			if stats.Rewrites > 0 {
				logger.Info("Store garbage collection completed: %s", stats.Summary())
			} else {
				logger.Debug("Store garbage collection completed: %s", stats.Summary())
			}
		}
	}
}

// RunNow runs rounds until one frees nothing, MaxRounds is reached or ctx
// is done.
func (c *Collector) RunNow(ctx context.Context) (Stats, error) {
	start := time.Now()
	var stats Stats

	for stats.Rounds < c.config.MaxRounds {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}

		stats.Rounds++
		rewrote, err := c.target.RunGC(c.config.DiscardRatio)
		if err != nil {
			stats.Duration = time.Since(start)
			return stats, err
		}
		if !rewrote {
			break
		}
		stats.Rewrites++
	}

	stats.Duration = time.Since(start)
	return stats, nil
}
