// Package cluster load-balances resource requests across several pools
// by declared capability tags and remaining headroom.
package cluster

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"poold/internal/domain"
	"poold/internal/infra/pool"
	"poold/internal/infra/telemetry"
)

// Cluster fronts an ordered set of pools. It owns no resources itself;
// it records which pool produced each outstanding resource so release
// routes correctly.
type Cluster[R comparable] struct {
	logger *zap.Logger

	mu    sync.Mutex
	pools []*pool.Pool[R]
	owned map[R]*pool.Pool[R]
	ended bool
}

// New builds a cluster over the given pools. Nil entries fail
// construction.
func New[R comparable](logger *zap.Logger, pools ...*pool.Pool[R]) (*Cluster[R], error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cluster[R]{
		logger: logger.Named("cluster"),
		owned:  make(map[R]*pool.Pool[R]),
	}
	for _, p := range pools {
		if err := c.Add(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers a pool at the end of the selection order.
func (c *Cluster[R]) Add(p *pool.Pool[R]) error {
	if p == nil {
		return errors.New("cluster pool is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return domain.Wrap(domain.CodeUnavailable, "cluster add", domain.ErrClusterEnded)
	}
	c.pools = append(c.pools, p)
	return nil
}

// Remove detaches the named pool from selection and returns it, or nil
// when unknown. Resources already on loan keep routing to it on release.
func (c *Cluster[R]) Remove(name string) *pool.Pool[R] {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pools {
		if p.Name() == name {
			c.pools = append(c.pools[:i], c.pools[i+1:]...)
			return p
		}
	}
	return nil
}

// Pools returns the pools in registration order.
func (c *Cluster[R]) Pools() []*pool.Pool[R] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*pool.Pool[R], len(c.pools))
	copy(out, c.pools)
	return out
}

// Acquire selects the capable pool with the most remaining headroom and
// delegates. Ties break by registration order.
func (c *Cluster[R]) Acquire(capabilities []string, callback pool.Callback[R]) (*pool.Request[R], error) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		return c.rejectWith(callback, domain.Wrap(domain.CodeUnavailable, "cluster acquire", domain.ErrClusterEnded))
	}

	var chosen *pool.Pool[R]
	bestScore := 0
	capable := false
	for _, p := range c.pools {
		if !p.HasCapabilities(capabilities) {
			continue
		}
		capable = true
		stats := p.Stats()
		if stats.MaxRequests > 0 && stats.Queued >= stats.MaxRequests {
			continue
		}
		score := stats.Available - stats.Queued
		if chosen == nil || score > bestScore {
			chosen = p
			bestScore = score
		}
	}
	c.mu.Unlock()

	if !capable {
		return c.rejectWith(callback, domain.Wrap(domain.CodeFailedPrecond, "cluster acquire", domain.ErrNoCapablePool))
	}
	if chosen == nil {
		return c.rejectWith(callback, domain.Wrap(domain.CodeUnavailable, "cluster acquire", domain.ErrNoPoolAvailable))
	}

	c.logger.Debug("pool selected",
		telemetry.PoolField(chosen.Name()),
		telemetry.CapabilityField(capabilities),
	)
	return chosen.AcquireCapability(capabilities, func(err error, resource R) {
		if err == nil {
			c.mu.Lock()
			c.owned[resource] = chosen
			c.mu.Unlock()
		}
		callback(err, resource)
	})
}

// Release routes the resource back to the pool that produced it.
func (c *Cluster[R]) Release(resource R) error {
	c.mu.Lock()
	owner, ok := c.owned[resource]
	if ok {
		delete(c.owned, resource)
	}
	c.mu.Unlock()
	if !ok {
		err := domain.Wrap(domain.CodeInvalidArgument, "cluster release", domain.ErrNotMember)
		c.logger.Error("release of unknown resource", zap.Error(err))
		return err
	}
	return owner.Release(resource)
}

// End drains every pool; callback receives the aggregated teardown
// errors once all pools have finished.
func (c *Cluster[R]) End(callback func([]error)) {
	c.mu.Lock()
	if c.ended {
		c.mu.Unlock()
		if callback != nil {
			go callback(nil)
		}
		return
	}
	c.ended = true
	pools := make([]*pool.Pool[R], len(c.pools))
	copy(pools, c.pools)
	c.mu.Unlock()

	if len(pools) == 0 {
		if callback != nil {
			go callback(nil)
		}
		return
	}

	var wg sync.WaitGroup
	var errMu sync.Mutex
	var all []error
	wg.Add(len(pools))
	for _, p := range pools {
		p.End(func(errs []error) {
			errMu.Lock()
			all = append(all, errs...)
			errMu.Unlock()
			wg.Done()
		})
	}
	go func() {
		wg.Wait()
		if callback != nil {
			callback(all)
		}
	}()
}

// Status returns a snapshot of every pool for status queries.
func (c *Cluster[R]) Status() []domain.PoolInfo {
	pools := c.Pools()
	out := make([]domain.PoolInfo, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Snapshot())
	}
	return out
}

func (c *Cluster[R]) rejectWith(callback pool.Callback[R], err error) (*pool.Request[R], error) {
	req, reqErr := pool.NewRequest[R](pool.NoTimeout, callback)
	if reqErr != nil {
		return nil, reqErr
	}
	req.Reject(err)
	return req, nil
}
