package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gurs-tools/kataster-cli/internal/config"
)

// Checker runs periodic store health checks in the background.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitorConfig
}

// NewChecker creates a background health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitorConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting store health checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("store health checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap := c.collector.Collect(ctx)
	if !snap.Healthy {
		log.Warn("monitoring: store ping failed",
			zap.String("error", snap.Error),
			zap.Float64("latency_ms", snap.LatencyMs),
		)
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return
	}
	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alerts evaluated",
		zap.Int("raised", len(alerts)),
		zap.Int("sent", sent),
	)
}
