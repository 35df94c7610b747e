package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakePinger struct {
	err   error
	delay time.Duration
	calls int
}

func (f *fakePinger) Ping(ctx context.Context) error {
	f.calls++
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.err
}

func TestCollectHealthy(t *testing.T) {
	pinger := &fakePinger{}
	collector := NewCollector(pinger)

	snap := collector.Collect(context.Background())

	assert.True(t, snap.Healthy)
	assert.Empty(t, snap.Error)
	assert.Equal(t, 1, pinger.calls)
	assert.False(t, snap.CollectedAt.IsZero())
	assert.GreaterOrEqual(t, snap.LatencyMs, 0.0)
}

func TestCollectUnhealthy(t *testing.T) {
	pinger := &fakePinger{err: errors.New("connection refused")}
	collector := NewCollector(pinger)

	snap := collector.Collect(context.Background())

	assert.False(t, snap.Healthy)
	assert.Contains(t, snap.Error, "connection refused")
}

func TestCollectMeasuresLatency(t *testing.T) {
	pinger := &fakePinger{delay: 20 * time.Millisecond}
	collector := NewCollector(pinger)

	snap := collector.Collect(context.Background())

	assert.True(t, snap.Healthy)
	assert.GreaterOrEqual(t, snap.LatencyMs, 20.0)
}
