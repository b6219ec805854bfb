package cluster

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"poold/internal/domain"
	"poold/internal/infra/pool"
)

type testConn struct {
	pool string
	id   int
}

type fakeBackend struct {
	name string

	mu       sync.Mutex
	created  int
	disposed int
}

func (f *fakeBackend) acquire(_ context.Context) (*testConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return &testConn{pool: f.name, id: f.created}, nil
}

func (f *fakeBackend) dispose(_ context.Context, _ *testConn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disposed++
	return nil
}

func newTestPool(t *testing.T, name string, capabilities []string, mutate func(*pool.Config[*testConn])) (*pool.Pool[*testConn], *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{name: name}
	cfg := pool.Config[*testConn]{
		Name:         name,
		Acquire:      backend.acquire,
		Dispose:      backend.dispose,
		Capabilities: capabilities,
		Max:          2,
		SyncInterval: pool.NoTimeout,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := pool.New(cfg)
	require.NoError(t, err)
	t.Cleanup(p.DestroyPool)
	return p, backend
}

type acquireResult struct {
	conn *testConn
	err  error
}

func clusterAcquire(t *testing.T, c *Cluster[*testConn], capabilities []string) chan acquireResult {
	t.Helper()
	results := make(chan acquireResult, 1)
	_, err := c.Acquire(capabilities, func(err error, conn *testConn) {
		results <- acquireResult{conn: conn, err: err}
	})
	require.NoError(t, err)
	return results
}

func waitResult(t *testing.T, results chan acquireResult) acquireResult {
	t.Helper()
	select {
	case result := <-results:
		return result
	case <-time.After(2 * time.Second):
		t.Fatal("cluster acquire never completed")
		return acquireResult{}
	}
}

func TestCluster_RejectsNilPool(t *testing.T) {
	_, err := New[*testConn](nil, nil)
	require.ErrorContains(t, err, "required")
}

func TestCluster_CapabilityMatching(t *testing.T) {
	sslPool, _ := newTestPool(t, "ssl", []string{"ssl"}, nil)
	burstPool, _ := newTestPool(t, "burst", []string{"burst"}, nil)
	c, err := New(nil, sslPool, burstPool)
	require.NoError(t, err)

	result := waitResult(t, clusterAcquire(t, c, []string{"ssl"}))
	require.NoError(t, result.err)
	require.Equal(t, "ssl", result.conn.pool)

	result = waitResult(t, clusterAcquire(t, c, []string{"burst"}))
	require.NoError(t, result.err)
	require.Equal(t, "burst", result.conn.pool)

	result = waitResult(t, clusterAcquire(t, c, []string{"gpu"}))
	require.ErrorIs(t, result.err, domain.ErrNoCapablePool)
}

func TestCluster_EmptyRequirementMatchesAll(t *testing.T) {
	p, _ := newTestPool(t, "any", []string{"ssl"}, nil)
	c, err := New(nil, p)
	require.NoError(t, err)

	result := waitResult(t, clusterAcquire(t, c, nil))
	require.NoError(t, result.err)
	require.Equal(t, "any", result.conn.pool)
}

func TestCluster_PrefersPoolWithMostHeadroom(t *testing.T) {
	small, _ := newTestPool(t, "small", nil, func(cfg *pool.Config[*testConn]) {
		cfg.Max = 1
	})
	large, _ := newTestPool(t, "large", nil, func(cfg *pool.Config[*testConn]) {
		cfg.Max = 4
	})
	c, err := New(nil, small, large)
	require.NoError(t, err)

	// Saturate the small pool directly so the cluster must prefer the
	// large one.
	heldResults := make(chan acquireResult, 1)
	_, err = small.Acquire(func(err error, conn *testConn) {
		heldResults <- acquireResult{conn: conn, err: err}
	})
	require.NoError(t, err)
	held := waitResult(t, heldResults)
	require.NoError(t, held.err)

	result := waitResult(t, clusterAcquire(t, c, nil))
	require.NoError(t, result.err)
	require.Equal(t, "large", result.conn.pool)
}

func TestCluster_TieBreaksByRegistrationOrder(t *testing.T) {
	first, _ := newTestPool(t, "first", nil, nil)
	second, _ := newTestPool(t, "second", nil, nil)
	c, err := New(nil, first, second)
	require.NoError(t, err)

	result := waitResult(t, clusterAcquire(t, c, nil))
	require.NoError(t, result.err)
	require.Equal(t, "first", result.conn.pool)
}

func TestCluster_ReleaseRoutesToOwningPool(t *testing.T) {
	p, backend := newTestPool(t, "only", nil, func(cfg *pool.Config[*testConn]) {
		cfg.Max = 1
	})
	c, err := New(nil, p)
	require.NoError(t, err)

	result := waitResult(t, clusterAcquire(t, c, nil))
	require.NoError(t, result.err)
	require.NoError(t, c.Release(result.conn))

	// The same connection serves the next request, proving it landed
	// back in its pool.
	next := waitResult(t, clusterAcquire(t, c, nil))
	require.NoError(t, next.err)
	require.Same(t, result.conn, next.conn)
	require.Equal(t, 1, func() int {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return backend.created
	}())
}

func TestCluster_ReleaseUnknownResource(t *testing.T) {
	p, _ := newTestPool(t, "only", nil, nil)
	c, err := New(nil, p)
	require.NoError(t, err)

	err = c.Release(&testConn{pool: "nowhere"})
	require.ErrorIs(t, err, domain.ErrNotMember)
}

func TestCluster_NoPoolAvailableWhenSaturated(t *testing.T) {
	p, _ := newTestPool(t, "tiny", nil, func(cfg *pool.Config[*testConn]) {
		cfg.Max = 1
		cfg.MaxRequests = 1
	})
	c, err := New(nil, p)
	require.NoError(t, err)

	held := waitResult(t, clusterAcquire(t, c, nil))
	require.NoError(t, held.err)

	// Fill the queue.
	_ = clusterAcquire(t, c, nil)
	require.Eventually(t, func() bool {
		return p.Stats().Queued == 1
	}, time.Second, 5*time.Millisecond)

	result := waitResult(t, clusterAcquire(t, c, nil))
	require.ErrorIs(t, result.err, domain.ErrNoPoolAvailable)
}

func TestCluster_EndRejectsFurtherAcquires(t *testing.T) {
	p, _ := newTestPool(t, "only", nil, nil)
	c, err := New(nil, p)
	require.NoError(t, err)

	done := make(chan []error, 1)
	c.End(func(errs []error) { done <- errs })
	select {
	case errs := <-done:
		require.Empty(t, errs)
	case <-time.After(2 * time.Second):
		t.Fatal("cluster end never completed")
	}

	result := waitResult(t, clusterAcquire(t, c, nil))
	require.ErrorIs(t, result.err, domain.ErrClusterEnded)
	require.Equal(t, pool.StatusDestroyed, p.Status())
}

func TestCluster_RemoveDetachesPool(t *testing.T) {
	a, _ := newTestPool(t, "a", nil, nil)
	b, _ := newTestPool(t, "b", nil, nil)
	c, err := New(nil, a, b)
	require.NoError(t, err)

	removed := c.Remove("a")
	require.Same(t, a, removed)
	require.Nil(t, c.Remove("a"))

	result := waitResult(t, clusterAcquire(t, c, nil))
	require.NoError(t, result.err)
	require.Equal(t, "b", result.conn.pool)
}
