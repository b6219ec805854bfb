package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPool_EndWaitsForOutstandingResources(t *testing.T) {
	ops := &fakeOps{}
	p := newTestPool(t, ops, func(cfg *Config[*testResource]) {
		cfg.Min = 1
		cfg.Max = 2
	})

	a := waitAcquire(t, startAcquire(t, p))
	b := waitAcquire(t, startAcquire(t, p))

	var ended atomic.Bool
	done := make(chan []error, 1)
	p.End(func(errs []error) {
		ended.Store(true)
		done <- errs
	})

	time.Sleep(30 * time.Millisecond)
	require.False(t, ended.Load(), "end completed while resources still on loan")

	require.NoError(t, p.Release(a))
	time.Sleep(50 * time.Millisecond)
	require.False(t, ended.Load(), "end completed with one resource still on loan")

	require.NoError(t, p.Release(b))
	select {
	case errs := <-done:
		require.Nil(t, errs)
	case <-time.After(2 * time.Second):
		t.Fatal("end callback never fired")
	}

	require.Equal(t, 0, p.Stats().Allocated)
	require.Len(t, ops.disposedResources(), 2)
	require.Equal(t, StatusDestroyed, p.Status())
}

func TestPool_EndServesQueuedRequestsFirst(t *testing.T) {
	ops := &fakeOps{}
	p := newTestPool(t, ops, func(cfg *Config[*testResource]) {
		cfg.Max = 1
	})

	held := waitAcquire(t, startAcquire(t, p))
	queued := startAcquire(t, p)

	done := make(chan []error, 1)
	p.End(func(errs []error) { done <- errs })

	// The queued request was admitted before end and still gets served.
	require.NoError(t, p.Release(held))
	resource := waitAcquire(t, queued)
	require.Same(t, held, resource)

	require.NoError(t, p.Release(resource))
	select {
	case errs := <-done:
		require.Nil(t, errs)
	case <-time.After(2 * time.Second):
		t.Fatal("end callback never fired")
	}
}

func TestPool_EndAggregatesTeardownErrors(t *testing.T) {
	ops := &fakeOps{}
	ops.disposeErr = func(_ *testResource) error {
		return errors.New("close failed")
	}
	p := newTestPool(t, ops, func(cfg *Config[*testResource]) {
		cfg.Max = 2
	})

	a := waitAcquire(t, startAcquire(t, p))
	b := waitAcquire(t, startAcquire(t, p))
	require.NoError(t, p.Release(a))
	require.NoError(t, p.Release(b))

	done := make(chan []error, 1)
	p.End(func(errs []error) { done <- errs })

	select {
	case errs := <-done:
		require.Len(t, errs, 2)
		require.ErrorContains(t, errs[0], "close failed")
	case <-time.After(2 * time.Second):
		t.Fatal("end callback never fired")
	}
}

func TestPool_EndOnEmptyPoolCompletesImmediately(t *testing.T) {
	ops := &fakeOps{}
	p := newTestPool(t, ops, nil)

	done := make(chan []error, 1)
	p.End(func(errs []error) { done <- errs })

	select {
	case errs := <-done:
		require.Nil(t, errs)
	case <-time.After(time.Second):
		t.Fatal("end callback never fired")
	}
	require.Equal(t, StatusDestroyed, p.Status())
}

func TestPool_EndDuringMinFillCompletes(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	ops := &fakeOps{}
	ops.factory = func(ctx context.Context, call int) (*testResource, error) {
		close(started)
		<-release
		return &testResource{id: call}, nil
	}
	p := newTestPool(t, ops, func(cfg *Config[*testResource]) {
		cfg.Min = 1
	})

	<-started
	done := make(chan []error, 1)
	p.End(func(errs []error) { done <- errs })
	close(release)

	// The in-flight allocation completes, its resource is torn down, and
	// the end routine proceeds through the synthetic drain.
	select {
	case errs := <-done:
		require.Nil(t, errs)
	case <-time.After(2 * time.Second):
		t.Fatal("end callback never fired")
	}
	require.Eventually(t, func() bool {
		return len(ops.disposedResources()) == 1
	}, time.Second, 5*time.Millisecond)
}
