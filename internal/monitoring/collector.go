// Package monitoring exposes Prometheus metrics and store-derived status
// snapshots for the care plan service.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/careplan-cli/internal/model"
)

// StatsSource abstracts the store method needed by the collector.
type StatsSource interface {
	Stats(ctx context.Context) (*model.Stats, error)
}

// Snapshot holds a point-in-time view of stored care plans.
type Snapshot struct {
	CarePlans   int       `json:"care_plans"`
	Attributed  int       `json:"attributed"`
	Fallback    int       `json:"fallback"`
	Coverage    float64   `json:"attribution_coverage"`
	FallbackPct float64   `json:"fallback_rate"`
	CollectedAt time.Time `json:"collected_at"`
}

// Collector builds snapshots from the store.
type Collector struct {
	source StatsSource
}

// NewCollector creates a new snapshot collector.
func NewCollector(source StatsSource) *Collector {
	return &Collector{source: source}
}

// Collect reads current counts from the store.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	stats, err := c.source.Stats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: read stats")
	}

	snap := &Snapshot{
		CarePlans:   stats.CarePlans,
		Attributed:  stats.Attributed,
		Fallback:    stats.Fallback,
		CollectedAt: time.Now().UTC(),
	}
	if snap.CarePlans > 0 {
		snap.Coverage = float64(snap.Attributed) / float64(snap.CarePlans)
	}
	if snap.Attributed > 0 {
		snap.FallbackPct = float64(snap.Fallback) / float64(snap.Attributed)
	}
	return snap, nil
}
