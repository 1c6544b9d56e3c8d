package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRateLimiter_SweepsIdleVisitorsPeriodically(t *testing.T) {
	rl := NewRateLimiter(RateLimit{RequestsPerMinute: 60, Burst: 5}, zap.NewNop())
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.lastSweep = now

	rl.limiterFor("10.0.0.1")
	rl.limiterFor("10.0.0.2")
	require.Len(t, rl.visitors, 2)

	// idle past the TTL but before the next sweep is due: nothing is scanned
	now = now.Add(rl.idleTTL + time.Second)
	rl.lastSweep = now.Add(-rl.sweepEvery + time.Second)
	rl.limiterFor("10.0.0.3")
	require.Len(t, rl.visitors, 3)

	// the sweep runs once the interval has passed
	now = now.Add(time.Second)
	rl.limiterFor("10.0.0.3")
	require.Len(t, rl.visitors, 1)
	require.Contains(t, rl.visitors, "10.0.0.3")
	require.Equal(t, now, rl.lastSweep)
}
