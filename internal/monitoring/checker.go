package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Checker periodically refreshes the care plan gauges from the store.
type Checker struct {
	collector *Collector
	metrics   *Metrics
	interval  time.Duration
}

// NewChecker creates a background gauge refresher.
func NewChecker(collector *Collector, metrics *Metrics, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Checker{
		collector: collector,
		metrics:   metrics,
		interval:  interval,
	}
}

// Run starts the refresh loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting stats checker", zap.Duration("interval", c.interval))

	c.check(ctx, log)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("stats checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: failed to collect stats", zap.Error(err))
		return
	}
	c.metrics.SetSnapshot(snap)
	log.Debug("monitoring: stats refreshed",
		zap.Int("care_plans", snap.CarePlans),
		zap.Int("attributed", snap.Attributed),
		zap.Int("fallback", snap.Fallback),
	)
}
