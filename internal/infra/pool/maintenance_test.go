package pool

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_PingFailureReplacesResource(t *testing.T) {
	ops := &fakeOps{}
	ops.pingErr = func(call int) error {
		if call == 3 {
			return errors.New("connection reset")
		}
		return nil
	}
	p := newTestPool(t, ops, func(cfg *Config[*testResource]) {
		cfg.Min = 1
		cfg.Max = 1
	})

	first := waitAcquire(t, startAcquire(t, p))
	require.NoError(t, p.Release(first))

	second := waitAcquire(t, startAcquire(t, p))
	require.Same(t, first, second)
	require.NoError(t, p.Release(second))

	// The third health check fails: the resource is torn down and the
	// request served from a fresh factory call.
	third := waitAcquire(t, startAcquire(t, p))
	require.NotSame(t, first, third)

	require.Eventually(t, func() bool {
		disposed := ops.disposedResources()
		return len(disposed) == 1 && disposed[0] == first
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPool_ReapsIdleAboveMinimum(t *testing.T) {
	ops := &fakeOps{}
	p := newTestPool(t, ops, func(cfg *Config[*testResource]) {
		cfg.Min = 1
		cfg.Max = 2
		cfg.IdleTimeout = 10 * time.Millisecond
		cfg.SyncInterval = 10 * time.Millisecond
	})

	first := startAcquire(t, p)
	second := startAcquire(t, p)
	a := waitAcquire(t, first)
	b := waitAcquire(t, second)
	require.NotSame(t, a, b)

	require.NoError(t, p.Release(a))
	require.NoError(t, p.Release(b))

	require.Eventually(t, func() bool {
		return p.Stats().Allocated == 1
	}, time.Second, 5*time.Millisecond)

	// Reaping stops at the configured minimum.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, p.Stats().Allocated)
	require.Len(t, ops.disposedResources(), 1)
}

func TestPool_EnsureMinimumFillsWithoutDemand(t *testing.T) {
	ops := &fakeOps{}
	p := newTestPool(t, ops, func(cfg *Config[*testResource]) {
		cfg.Min = 2
		cfg.Max = 4
		cfg.SyncInterval = 10 * time.Millisecond
	})

	require.Eventually(t, func() bool {
		return p.Stats().Allocated == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, ops.createdCount())
}

func TestPool_ReapUsesOldestFirst(t *testing.T) {
	ops := &fakeOps{}
	p := newTestPool(t, ops, func(cfg *Config[*testResource]) {
		cfg.Min = 0
		cfg.Max = 2
		cfg.IdleTimeout = 30 * time.Millisecond
		cfg.SyncInterval = 10 * time.Millisecond
	})

	first := startAcquire(t, p)
	second := startAcquire(t, p)
	a := waitAcquire(t, first)
	b := waitAcquire(t, second)

	require.NoError(t, p.Release(a))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, p.Release(b))

	// a went idle first and crosses the idle deadline first.
	require.Eventually(t, func() bool {
		disposed := ops.disposedResources()
		return len(disposed) >= 1 && disposed[0] == a
	}, time.Second, 5*time.Millisecond)
}

func TestPool_SyncDisabledNeverReaps(t *testing.T) {
	ops := &fakeOps{}
	p := newTestPool(t, ops, func(cfg *Config[*testResource]) {
		cfg.Min = 0
		cfg.Max = 2
		cfg.SyncInterval = NoTimeout
	})

	resource := waitAcquire(t, startAcquire(t, p))
	require.NoError(t, p.Release(resource))

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, p.Stats().Allocated)
	require.Empty(t, ops.disposedResources())
}
