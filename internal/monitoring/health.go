// Package monitoring watches store health for the API server: a collector
// probing the store, an alerter posting threshold breaches to a webhook, and
// a background checker driving both.
package monitoring

import (
	"context"
	"time"
)

// Pinger is the slice of the store the collector needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthSnapshot is a point-in-time view of store health.
type HealthSnapshot struct {
	Healthy     bool      `json:"healthy"`
	LatencyMs   float64   `json:"latency_ms"`
	Error       string    `json:"error,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// Collector probes the store.
type Collector struct {
	store Pinger
}

// NewCollector creates a health collector over a store.
func NewCollector(store Pinger) *Collector {
	return &Collector{store: store}
}

// Collect pings the store and measures latency. A failed ping yields an
// unhealthy snapshot, never an error; the caller decides what to do with it.
func (c *Collector) Collect(ctx context.Context) *HealthSnapshot {
	snap := &HealthSnapshot{CollectedAt: time.Now().UTC()}

	start := time.Now()
	err := c.store.Ping(ctx)
	snap.LatencyMs = float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		snap.Error = err.Error()
		return snap
	}
	snap.Healthy = true
	return snap
}
